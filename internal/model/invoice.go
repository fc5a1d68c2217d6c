package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidationStatus tracks where a line sits in the review lifecycle.
type ValidationStatus string

// Line validation statuses. Validated and rejected are terminal; a line never
// leaves a terminal state (re-opening means creating a fresh LineValidation).
const (
	StatusPending   ValidationStatus = "pending"
	StatusValidated ValidationStatus = "validated"
	StatusRejected  ValidationStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s ValidationStatus) Terminal() bool {
	return s == StatusValidated || s == StatusRejected
}

// InvoiceStatus tracks the invoice aggregate lifecycle.
type InvoiceStatus string

// Invoice statuses.
const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSaved InvoiceStatus = "saved"
)

// RawInvoiceLine is one line as produced by the external extraction step.
// It is the transient input artifact for a LineValidation and is never
// persisted on its own.
type RawInvoiceLine struct {
	RawDescription string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TotalPrice     decimal.Decimal
	OCRConfidence  float64
}

// MatchCandidate pairs a catalog product with the similarity the matcher
// assigned to it for a given raw description.
type MatchCandidate struct {
	ProductID  int64
	Similarity float64
}

// LineValidation is the human-reviewable decision record linking one raw
// invoice line to zero or one canonical product.
type LineValidation struct {
	Raw             RawInvoiceLine
	Status          ValidationStatus
	Candidates      []MatchCandidate
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	ChosenProductID *int64
	AutoValidated   bool
}

// TopSimilarity returns the best candidate similarity, or 0 when the matcher
// found nothing above the floor.
func (l *LineValidation) TopSimilarity() float64 {
	if len(l.Candidates) == 0 {
		return 0
	}
	return l.Candidates[0].Similarity
}

// Confidence combines match and OCR confidence for review-queue ordering.
// Least confident lines surface first so reviewer attention goes where it is
// most needed.
func (l *LineValidation) Confidence() float64 {
	return l.TopSimilarity()*0.7 + l.Raw.OCRConfidence*0.3
}

// Invoice aggregates the extracted metadata and the per-line validation
// records for one uploaded supplier invoice.
type Invoice struct {
	Date             time.Time
	CreatedAt        time.Time
	ID               string
	SupplierName     string
	InvoiceNumber    string
	Currency         string
	Status           InvoiceStatus
	Lines            []LineValidation
	TotalAmount      decimal.Decimal
	GlobalConfidence float64
}

// PendingLines returns the indices of lines still awaiting a decision.
func (inv *Invoice) PendingLines() []int {
	var pending []int
	for i := range inv.Lines {
		if !inv.Lines[i].Status.Terminal() {
			pending = append(pending, i)
		}
	}
	return pending
}

// ComputeGlobalConfidence recomputes the invoice-level confidence as the mean
// of per-line OCR confidences. Zero when the invoice has no lines.
func (inv *Invoice) ComputeGlobalConfidence() float64 {
	if len(inv.Lines) == 0 {
		return 0
	}
	var sum float64
	for i := range inv.Lines {
		sum += inv.Lines[i].Raw.OCRConfidence
	}
	return sum / float64(len(inv.Lines))
}
