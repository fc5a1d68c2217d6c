package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/matcher"
	"github.com/facturio/factura/internal/model"
)

// Finalize commits a fully reviewed invoice: the supplier is upserted, the
// invoice and its lines are persisted, and each validated line yields one
// price observation. All writes happen in a single transaction; rejected
// lines leave no ledger trace. Replaying a finalize that already committed
// returns the saved id without appending anything twice.
func (w *Workflow) Finalize(ctx context.Context, inv *model.Invoice) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("%w: invoice is nil", common.ErrInvalidInput)
	}
	if inv.Status == model.InvoiceSaved {
		return inv.ID, nil
	}

	if pending := inv.PendingLines(); len(pending) > 0 {
		return "", common.NewIncompleteValidationError(pending)
	}

	tx, err := w.storage.BeginTx(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	// Crash-replay guard: the in-memory invoice may not know a previous
	// attempt committed.
	existing, err := tx.GetInvoiceByID(ctx, inv.ID)
	if err != nil && !errors.Is(err, common.ErrUnknownInvoice) {
		return "", err
	}
	if existing != nil {
		if existing.Status == model.InvoiceSaved {
			inv.Status = model.InvoiceSaved
			slog.Info("finalize replay detected, invoice already saved", "id", inv.ID)
			return inv.ID, nil
		}
		return "", fmt.Errorf("%w: invoice %s exists but is not saved", common.ErrConcurrencyConflict, inv.ID)
	}

	supplier, err := tx.UpsertSupplier(ctx, inv.SupplierName, matcher.NormalizeSupplier(inv.SupplierName))
	if err != nil {
		return "", err
	}

	inv.GlobalConfidence = inv.ComputeGlobalConfidence()

	saved := *inv
	saved.Status = model.InvoiceSaved
	if err := tx.SaveInvoice(ctx, &saved, supplier.ID); err != nil {
		return "", err
	}

	var observations []model.PriceObservation
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if line.Status != model.StatusValidated {
			continue
		}
		if line.ChosenProductID == nil {
			return "", fmt.Errorf("%w: validated line %d has no chosen product", common.ErrInvalidInput, i)
		}
		observations = append(observations, model.PriceObservation{
			ProductID:  *line.ChosenProductID,
			SupplierID: supplier.ID,
			InvoiceID:  inv.ID,
			Date:       inv.Date,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
		})
	}

	if len(observations) > 0 {
		if err := tx.AppendObservations(ctx, observations); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	inv.Status = model.InvoiceSaved

	slog.Info("finalized invoice",
		"id", inv.ID,
		"supplier_id", supplier.ID,
		"observations", len(observations))
	return inv.ID, nil
}
