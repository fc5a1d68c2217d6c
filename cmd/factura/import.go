package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/facturio/factura/internal/cli"
	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/workflow"
)

// extractedInvoice mirrors the payload produced by the external OCR step.
type extractedInvoice struct {
	SupplierName  string          `json:"supplier_name"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	Currency      string          `json:"currency"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []extractedLine `json:"lines"`
}

type extractedLine struct {
	RawDescription string          `json:"raw_description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	OCRConfidence  float64         `json:"ocr_confidence"`
}

func importCmd() *cobra.Command {
	var (
		skipReview bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "import <extracted-lines.json>",
		Short: "Import an extracted invoice, review its lines, and save it",
		Long: `Read the line items extracted from a supplier invoice, match each raw
description against the catalog, walk through the lines needing review, and
append validated prices to the ledger.

High-confidence lines are validated automatically; the rest are reviewed
interactively, least confident first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			payload, err := readExtractedInvoice(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			products, err := store.GetProducts(ctx)
			if err != nil {
				return fmt.Errorf("failed to get products: %w", err)
			}

			wf := newWorkflow(store)

			meta, rawLines, err := payload.toDomain()
			if err != nil {
				return err
			}

			inv, err := wf.PrepareInvoice(meta, rawLines, products)
			if err != nil {
				return err
			}

			autoValidated := len(inv.Lines) - len(inv.PendingLines())
			fmt.Println(cli.FormatInfo(fmt.Sprintf(
				"Matched %d line(s): %d auto-validated, %d need review.",
				len(inv.Lines), autoValidated, len(inv.PendingLines()))))

			if !skipReview {
				prompter := cli.NewReviewPrompter(os.Stdin, os.Stdout, wf)
				if err := prompter.ReviewInvoice(ctx, inv, products); err != nil {
					return err
				}
			}

			if dryRun {
				fmt.Println(cli.FormatInfo("Dry run, nothing saved."))
				return nil
			}

			invoiceID, err := wf.Finalize(ctx, inv)
			if err != nil {
				var incomplete *common.IncompleteValidationError
				if errors.As(err, &incomplete) {
					return common.NewUserError(
						fmt.Sprintf("cannot save: %d line(s) still pending; re-run the import or review them", len(incomplete.Indices)),
						err)
				}
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Invoice saved with id %s.", invoiceID)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipReview, "no-review", false, "skip interactive review (pending lines will block saving)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "match and review without writing anything")

	return cmd
}

func readExtractedInvoice(path string) (*extractedInvoice, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var payload extractedInvoice
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", common.ErrInvalidInput, path, err)
	}
	return &payload, nil
}

// toDomain converts the OCR payload into workflow inputs. The date falls
// back to today when the extractor could not read one.
func (e *extractedInvoice) toDomain() (workflow.InvoiceMeta, []model.RawInvoiceLine, error) {
	meta := workflow.InvoiceMeta{
		SupplierName:  e.SupplierName,
		InvoiceNumber: e.InvoiceNumber,
		Currency:      e.Currency,
		TotalAmount:   e.TotalAmount,
	}

	if e.Date != "" {
		date, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return workflow.InvoiceMeta{}, nil, fmt.Errorf("%w: invalid invoice date %q", common.ErrInvalidInput, e.Date)
		}
		meta.Date = date
	}

	lines := make([]model.RawInvoiceLine, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, model.RawInvoiceLine{
			RawDescription: l.RawDescription,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			TotalPrice:     l.TotalPrice,
			OCRConfidence:  l.OCRConfidence,
		})
	}

	return meta, lines, nil
}
