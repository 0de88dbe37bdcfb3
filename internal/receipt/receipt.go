package receipt

import (
	"encoding/json"
	"time"
)

// Stage is the lifecycle bucket of an uploaded file. It is the canonical
// status representation; the validity/processing booleans on the wire are
// derived from it (see Status.UnmarshalJSON).
type Stage string

const (
	StagePendingValidation Stage = "pending_validation"
	StagePendingProcessing Stage = "pending_processing"
	StageFinal             Stage = "final"
)

// Status describes where a file sits in the validate -> process pipeline
type Status struct {
	CurrentStage  Stage  `json:"currentStage"`
	IsValid       bool   `json:"isValid"`
	IsProcessed   bool   `json:"isProcessed"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// Valid reports whether the file passed backend validation
func (s Status) Valid() bool {
	return s.CurrentStage != StagePendingValidation
}

// Processed reports whether extraction has completed for the file
func (s Status) Processed() bool {
	return s.CurrentStage == StageFinal
}

// normalize makes the stage canonical. A recognized stage wins over the
// booleans; an unknown or empty stage is reconstructed from them. The
// booleans are then overwritten so the three fields can never disagree.
func (s *Status) normalize() {
	switch s.CurrentStage {
	case StagePendingValidation, StagePendingProcessing, StageFinal:
	default:
		switch {
		case s.IsProcessed:
			s.CurrentStage = StageFinal
		case s.IsValid:
			s.CurrentStage = StagePendingProcessing
		default:
			s.CurrentStage = StagePendingValidation
		}
	}
	s.IsValid = s.Valid()
	s.IsProcessed = s.Processed()
}

// UnmarshalJSON decodes a status and reconciles the redundant wire fields
func (s *Status) UnmarshalJSON(data []byte) error {
	type alias Status
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Status(a)
	s.normalize()
	return nil
}

// ReceiptItem is a single line item extracted from a receipt
type ReceiptItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Receipt holds the structured data extracted from a processed file
type Receipt struct {
	ID           string        `json:"id"`
	MerchantName string        `json:"merchantName"`
	TotalAmount  float64       `json:"totalAmount"`
	PurchasedAt  time.Time     `json:"purchasedAt"`
	Confidence   float64       `json:"confidence"`
	Items        []ReceiptItem `json:"items"`
}

// ReceiptFile is an uploaded document and its extraction state. The backend
// owns the record; the client holds it only as long as the current fetch.
type ReceiptFile struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	FileURL   string    `json:"fileUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Status    Status    `json:"status"`
	Receipt   *Receipt  `json:"receipt"`
}

// MerchantName returns the extracted merchant, or "" before processing
func (f *ReceiptFile) MerchantName() string {
	if f.Receipt == nil {
		return ""
	}
	return f.Receipt.MerchantName
}

// TotalAmount returns the extracted total, or 0 before processing
func (f *ReceiptFile) TotalAmount() float64 {
	if f.Receipt == nil {
		return 0
	}
	return f.Receipt.TotalAmount
}

// PurchasedAt returns the extracted purchase time, or the zero time
func (f *ReceiptFile) PurchasedAt() time.Time {
	if f.Receipt == nil {
		return time.Time{}
	}
	return f.Receipt.PurchasedAt
}

// ListStats are the aggregate counters returned alongside every list fetch
type ListStats struct {
	TotalFiles     int     `json:"totalFiles"`
	ValidFiles     int     `json:"validFiles"`
	ProcessedFiles int     `json:"processedFiles"`
	TotalAmount    float64 `json:"totalAmount"`
}

// SpendStats are the spend aggregates from the stats endpoint. Breakdown
// keys are month identifiers (YYYY-MM) and category names respectively.
type SpendStats struct {
	TotalSpent        float64            `json:"totalSpent"`
	AverageAmount     float64            `json:"averageAmount"`
	TotalReceipts     int                `json:"totalReceipts"`
	MonthlyBreakdown  map[string]float64 `json:"monthlyBreakdown"`
	CategoryBreakdown map[string]float64 `json:"categoryBreakdown"`
}
