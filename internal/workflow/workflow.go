// Package workflow drives extracted invoice lines through matching,
// human review, and finalization into the price ledger.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/matcher"
	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// Config holds the auto-resolution thresholds.
type Config struct {
	// AutoAccept is the minimum top-candidate similarity for skipping human
	// review.
	AutoAccept float64
	// OCRFloor is the minimum extraction confidence required before a line
	// may be auto-validated at all.
	OCRFloor float64
}

// DefaultConfig returns the tuned thresholds.
func DefaultConfig() Config {
	return Config{
		AutoAccept: 0.9,
		OCRFloor:   0.7,
	}
}

// Workflow owns the line-validation state machine. Transitions mutate only
// the in-memory invoice; the catalog and ledger are touched exclusively by
// CreateProductAndAccept and Finalize.
type Workflow struct {
	matcher *matcher.Matcher
	storage service.Storage
	cfg     Config
}

// New creates a Workflow.
func New(cfg Config, m *matcher.Matcher, storage service.Storage) *Workflow {
	if cfg.AutoAccept <= 0 {
		cfg.AutoAccept = DefaultConfig().AutoAccept
	}
	if cfg.OCRFloor <= 0 {
		cfg.OCRFloor = DefaultConfig().OCRFloor
	}
	return &Workflow{
		cfg:     cfg,
		matcher: m,
		storage: storage,
	}
}

// InvoiceMeta carries the extracted invoice header fields.
type InvoiceMeta struct {
	Date          time.Time
	SupplierName  string
	InvoiceNumber string
	Currency      string
	TotalAmount   decimal.Decimal
}

// PrepareInvoice matches every raw line against the catalog snapshot and
// assembles a draft invoice. High-confidence lines are auto-validated; the
// rest stay pending for review.
func (w *Workflow) PrepareInvoice(meta InvoiceMeta, rawLines []model.RawInvoiceLine, products []model.Product) (*model.Invoice, error) {
	if strings.TrimSpace(meta.SupplierName) == "" {
		return nil, fmt.Errorf("%w: supplier name is required", common.ErrInvalidInput)
	}
	if len(rawLines) == 0 {
		return nil, fmt.Errorf("%w: invoice has no lines", common.ErrInvalidInput)
	}

	inv := &model.Invoice{
		ID:            uuid.NewString(),
		SupplierName:  meta.SupplierName,
		InvoiceNumber: meta.InvoiceNumber,
		Date:          meta.Date,
		TotalAmount:   meta.TotalAmount,
		Currency:      meta.Currency,
		Status:        model.InvoiceDraft,
	}
	if inv.Date.IsZero() {
		inv.Date = time.Now()
	}

	for i := range rawLines {
		line, err := w.PrepareLine(rawLines[i], products)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		inv.Lines = append(inv.Lines, line)
	}

	inv.GlobalConfidence = inv.ComputeGlobalConfidence()

	slog.Info("prepared invoice",
		"id", inv.ID,
		"supplier", inv.SupplierName,
		"lines", len(inv.Lines),
		"pending", len(inv.PendingLines()))
	return inv, nil
}

// PrepareLine creates a LineValidation for one raw line, applying the
// auto-resolution rule: top similarity at or above AutoAccept combined with
// extraction confidence at or above OCRFloor validates without review.
func (w *Workflow) PrepareLine(raw model.RawInvoiceLine, products []model.Product) (model.LineValidation, error) {
	candidates, err := w.matcher.Match(raw.RawDescription, products)
	if err != nil {
		return model.LineValidation{}, err
	}

	line := model.LineValidation{
		Raw:        raw,
		Candidates: candidates,
		Status:     model.StatusPending,
		Quantity:   raw.Quantity,
		UnitPrice:  raw.UnitPrice,
		TotalPrice: raw.TotalPrice,
	}

	if len(candidates) > 0 &&
		candidates[0].Similarity >= w.cfg.AutoAccept &&
		raw.OCRConfidence >= w.cfg.OCRFloor {
		productID := candidates[0].ProductID
		line.ChosenProductID = &productID
		line.Status = model.StatusValidated
		line.AutoValidated = true
	}

	return line, nil
}

// ReviewQueue returns the indices of pending lines ordered by ascending
// confidence, so the reviewer sees the least certain lines first. Ties fall
// back to line order.
func (w *Workflow) ReviewQueue(inv *model.Invoice) []int {
	queue := inv.PendingLines()
	sort.SliceStable(queue, func(i, j int) bool {
		return inv.Lines[queue[i]].Confidence() < inv.Lines[queue[j]].Confidence()
	})
	return queue
}

// Accept resolves a line to an existing catalog product.
func (w *Workflow) Accept(ctx context.Context, line *model.LineValidation, productID int64) error {
	if line.Status.Terminal() {
		return fmt.Errorf("%w: cannot accept a %s line", common.ErrLineFinalized, line.Status)
	}

	product, err := w.storage.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}

	line.ChosenProductID = &product.ID
	line.Status = model.StatusValidated
	line.AutoValidated = false
	return nil
}

// Reject discards a line. Rejected lines never reach the ledger.
func (w *Workflow) Reject(line *model.LineValidation) error {
	if line.Status.Terminal() {
		return fmt.Errorf("%w: cannot reject a %s line", common.ErrLineFinalized, line.Status)
	}

	line.ChosenProductID = nil
	line.Status = model.StatusRejected
	return nil
}

// EditFields holds the human-editable amounts. Nil fields stay unchanged.
type EditFields struct {
	Quantity   *decimal.Decimal
	UnitPrice  *decimal.Decimal
	TotalPrice *decimal.Decimal
}

// Edit updates quantities and prices on a line before acceptance. Status is
// untouched.
func (w *Workflow) Edit(line *model.LineValidation, fields EditFields) error {
	if line.Status.Terminal() {
		return fmt.Errorf("%w: cannot edit a %s line", common.ErrLineFinalized, line.Status)
	}

	if fields.Quantity != nil {
		if fields.Quantity.IsNegative() {
			return fmt.Errorf("%w: quantity cannot be negative", common.ErrInvalidInput)
		}
		line.Quantity = *fields.Quantity
	}
	if fields.UnitPrice != nil {
		if fields.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: unit price cannot be negative", common.ErrInvalidInput)
		}
		line.UnitPrice = *fields.UnitPrice
	}
	if fields.TotalPrice != nil {
		if fields.TotalPrice.IsNegative() {
			return fmt.Errorf("%w: total price cannot be negative", common.ErrInvalidInput)
		}
		line.TotalPrice = *fields.TotalPrice
	}
	return nil
}

// CreateProductAndAccept atomically creates a catalog product for a
// description the catalog does not know yet, then accepts the line against
// it. A normalized-name collision surfaces as DuplicateProductError so the
// caller can add an alias to the existing product instead.
func (w *Workflow) CreateProductAndAccept(ctx context.Context, line *model.LineValidation, name, category, unit string) (*model.Product, error) {
	if line.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot accept a %s line", common.ErrLineFinalized, line.Status)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: product name is required", common.ErrInvalidInput)
	}

	normalized := matcher.Normalize(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: product name %q has no matchable content", common.ErrInvalidInput, name)
	}

	product, err := w.storage.CreateProduct(ctx, name, normalized, category, unit)
	if err != nil {
		return nil, err
	}

	line.ChosenProductID = &product.ID
	line.Status = model.StatusValidated
	line.AutoValidated = false

	slog.Info("created product from review",
		"product_id", product.ID,
		"name", name,
		"raw_description", line.Raw.RawDescription)
	return product, nil
}

// AddAlias records a confirmed raw description as an alias of an existing
// product, growing the catalog's matching surface for future invoices.
func (w *Workflow) AddAlias(ctx context.Context, productID int64, alias string) error {
	if strings.TrimSpace(alias) == "" {
		return fmt.Errorf("%w: alias is required", common.ErrInvalidInput)
	}
	return w.storage.AddProductAlias(ctx, productID, alias)
}
