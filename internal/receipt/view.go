package receipt

import (
	"sort"
	"strings"
)

// Tab is the client-side view filter over the receipt list
type Tab string

const (
	TabUploaded  Tab = "uploaded"
	TabValidate  Tab = "validate"
	TabProcessed Tab = "processed"
	TabFinal     Tab = "final"
)

// DisplayStatus maps a file to its human-readable status label for a tab.
// The final tab always shows "Completed" regardless of the record's flags.
func DisplayStatus(f *ReceiptFile, tab Tab) string {
	if tab == TabFinal {
		return "Completed"
	}
	if f.Status.Valid() {
		if f.Status.Processed() {
			return "Processed"
		}
		return "Validated"
	}
	return "Pending Validation"
}

// Groups is a partition of a receipt list by pipeline position. Every file
// lands in exactly one group.
type Groups struct {
	Pending   []*ReceiptFile
	Validated []*ReceiptFile
	Processed []*ReceiptFile
}

// Partition splits files into pending, validated-only and processed groups,
// preserving input order within each group.
func Partition(files []*ReceiptFile) Groups {
	var g Groups
	for _, f := range files {
		switch {
		case !f.Status.Valid():
			g.Pending = append(g.Pending, f)
		case !f.Status.Processed():
			g.Validated = append(g.Validated, f)
		default:
			g.Processed = append(g.Processed, f)
		}
	}
	return g
}

// Section is one titled group of receipts rendered on a tab
type Section struct {
	Title string
	Files []*ReceiptFile
}

// SectionsForTab returns the groups a tab renders, in display order. Empty
// groups are omitted. Tabs outside the three staged views render nothing.
func SectionsForTab(g Groups, tab Tab) []Section {
	var sections []Section
	add := func(title string, files []*ReceiptFile) {
		if len(files) > 0 {
			sections = append(sections, Section{Title: title, Files: files})
		}
	}
	switch tab {
	case TabValidate:
		add("Pending Validation", g.Pending)
		add("Validated Receipts", g.Validated)
	case TabProcessed:
		add("Pending Processing", g.Validated)
		add("Processed Receipts", g.Processed)
	case TabFinal:
		add("Completed Receipts", g.Processed)
	}
	return sections
}

// Search filters files whose merchant name or file name contains the query,
// case-insensitively. An empty query returns the input unchanged.
func Search(files []*ReceiptFile, query string) []*ReceiptFile {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return files
	}
	matched := make([]*ReceiptFile, 0, len(files))
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.MerchantName()), query) ||
			strings.Contains(strings.ToLower(f.FileName), query) {
			matched = append(matched, f)
		}
	}
	return matched
}

// SortKey identifies a receipt field to order by
type SortKey string

const (
	SortByCreatedAt   SortKey = "createdAt"
	SortByPurchasedAt SortKey = "purchasedAt"
	SortByMerchant    SortKey = "merchantName"
	SortByAmount      SortKey = "totalAmount"
	SortByFileName    SortKey = "fileName"
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// NormalizeSortKey maps the snake_case spellings some backend responses use
// onto the canonical keys. Unknown keys fall back to createdAt.
func NormalizeSortKey(key string) SortKey {
	switch key {
	case "createdAt", "created_at":
		return SortByCreatedAt
	case "purchasedAt", "purchased_at":
		return SortByPurchasedAt
	case "merchantName", "merchant_name":
		return SortByMerchant
	case "totalAmount", "total_amount":
		return SortByAmount
	case "fileName", "file_name":
		return SortByFileName
	default:
		return SortByCreatedAt
	}
}

// Sort orders files by the given key and direction and returns a new slice.
// Amounts compare numerically, timestamps by time, everything else as
// strings. No secondary key: ties keep an arbitrary order.
func Sort(files []*ReceiptFile, key SortKey, order SortOrder) []*ReceiptFile {
	sorted := make([]*ReceiptFile, len(files))
	copy(sorted, files)

	less := func(a, b *ReceiptFile) bool {
		switch key {
		case SortByAmount:
			return a.TotalAmount() < b.TotalAmount()
		case SortByCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortByPurchasedAt:
			return a.PurchasedAt().Before(b.PurchasedAt())
		case SortByMerchant:
			return a.MerchantName() < b.MerchantName()
		case SortByFileName:
			return a.FileName < b.FileName
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.Slice(sorted, func(i, j int) bool {
		if order == Descending {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})
	return sorted
}

// UniqueMerchants counts distinct merchant names across processed files
func UniqueMerchants(files []*ReceiptFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		if name := f.MerchantName(); name != "" {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}
