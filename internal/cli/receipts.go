package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/feed"
	"github.com/example/receipt-console/internal/receipt"
)

// UploadCmd uploads one or more files sequentially
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [file]...",
		Short: "Upload receipt files",
		Long:  "Upload one or more PDF or image receipts. Files go up one at a time; a failed file does not stop the rest of the batch.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			files := make([]feed.File, 0, len(args))
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening %s: %w", path, err)
				}
				defer f.Close()
				info, err := f.Stat()
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				files = append(files, feed.File{Name: filepath.Base(path), Size: info.Size(), Data: f})
			}

			uploader := feed.NewUploader(api, nil)
			report := uploader.UploadAll(cmd.Context(), files)
			for _, entry := range report.Files {
				if entry.Err != nil {
					color.Red("✗ %s: %v", entry.Name, entry.Err)
					continue
				}
				color.Green("✓ %s (id %s)", entry.Name, entry.ID)
			}

			fmt.Printf("%d of %d files uploaded\n", report.Succeeded(), len(report.Files))
			if report.Failed() > 0 {
				return fmt.Errorf("%d uploads failed", report.Failed())
			}
			return nil
		},
	}
}

// ListCmd lists receipts for a status filter
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List receipts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			sortBy, _ := cmd.Flags().GetString("sort-by")
			sortOrder, _ := cmd.Flags().GetString("sort-order")
			search, _ := cmd.Flags().GetString("search")

			api, _, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := api.ListReceipts(cmd.Context(), backend.ListQuery{
				Status:    receipt.Tab(status),
				SortBy:    receipt.NormalizeSortKey(sortBy),
				SortOrder: receipt.SortOrder(sortOrder),
				Search:    search,
			})
			if err != nil {
				return err
			}

			if len(result.Receipts) == 0 {
				fmt.Println("No receipts found")
				return nil
			}

			for _, f := range result.Receipts {
				printReceipt(f)
			}
			fmt.Printf("\n%d files, %d valid, %d processed, $%.2f total\n",
				result.Stats.TotalFiles,
				result.Stats.ValidFiles,
				result.Stats.ProcessedFiles,
				result.Stats.TotalAmount,
			)
			return nil
		},
	}
	cmd.Flags().String("status", "", "Filter by stage tab (uploaded, validate, processed, final)")
	cmd.Flags().String("sort-by", "createdAt", "Sort key (createdAt, purchasedAt, merchantName, totalAmount, fileName)")
	cmd.Flags().String("sort-order", "desc", "Sort order (asc, desc)")
	cmd.Flags().String("search", "", "Filter by merchant or file name")
	return cmd
}

func printReceipt(f *receipt.ReceiptFile) {
	label := receipt.DisplayStatus(f, "")
	switch f.Status.CurrentStage {
	case receipt.StagePendingValidation:
		label = color.YellowString(label)
	case receipt.StagePendingProcessing:
		label = color.BlueString(label)
	case receipt.StageFinal:
		label = color.GreenString(label)
	}
	fmt.Printf("%s  %s  %s\n", f.ID, label, f.FileName)
	if f.Receipt != nil {
		fmt.Printf("    %s  $%.2f  %s\n",
			f.Receipt.MerchantName,
			f.Receipt.TotalAmount,
			f.Receipt.PurchasedAt.Format("2006-01-02"),
		)
	}
	if f.Status.InvalidReason != "" {
		color.Red("    %s", f.Status.InvalidReason)
	}
}

// ValidateCmd validates one uploaded receipt
func ValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [id]",
		Short: "Validate an uploaded receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := api.Validate(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("✓ Receipt %s validated", args[0])
			return nil
		},
	}
}

// ProcessCmd runs extraction for one validated receipt
func ProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process [id]",
		Short: "Run extraction for a validated receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := api.Process(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("processing failed: %s", result.Message)
			}
			color.Green("✓ Receipt %s processed", args[0])
			return nil
		},
	}
}

// DeleteCmd removes one receipt
func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := api.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Receipt %s deleted\n", args[0])
			return nil
		},
	}
}

// StatsCmd prints the server-computed spend aggregates
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show spend statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, cleanup, err := env()
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := api.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Total spent:    $%.2f\n", stats.TotalSpent)
			fmt.Printf("Average amount: $%.2f\n", stats.AverageAmount)
			fmt.Printf("Receipts:       %d\n", stats.TotalReceipts)

			if len(stats.MonthlyBreakdown) > 0 {
				fmt.Println("\nMonthly:")
				for _, month := range sortedKeys(stats.MonthlyBreakdown) {
					fmt.Printf("  %s  $%.2f\n", month, stats.MonthlyBreakdown[month])
				}
			}
			if len(stats.CategoryBreakdown) > 0 {
				fmt.Println("\nBy category:")
				for _, category := range sortedKeys(stats.CategoryBreakdown) {
					fmt.Printf("  %-16s $%.2f\n", category, stats.CategoryBreakdown[category])
				}
			}
			return nil
		},
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
