package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/workflow"
)

// ReviewPrompter walks a human reviewer through the pending lines of an
// invoice, least-confident first.
type ReviewPrompter struct {
	reader   *bufio.Reader
	writer   io.Writer
	workflow *workflow.Workflow
}

// NewReviewPrompter creates a prompter over the given streams. Nil streams
// default to stdin/stdout.
func NewReviewPrompter(reader io.Reader, writer io.Writer, wf *workflow.Workflow) *ReviewPrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &ReviewPrompter{
		reader:   bufio.NewReader(reader),
		writer:   writer,
		workflow: wf,
	}
}

// ReviewInvoice prompts for every pending line. Skipped lines stay pending;
// the caller decides whether to finalize. Products is the catalog snapshot
// used to display candidate names.
func (p *ReviewPrompter) ReviewInvoice(ctx context.Context, inv *model.Invoice, products []model.Product) error {
	queue := p.workflow.ReviewQueue(inv)
	if len(queue) == 0 {
		fmt.Fprintln(p.writer, FormatInfo("No lines need review."))
		return nil
	}

	index := make(map[int64]model.Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}

	bar := progressbar.NewOptions(len(queue),
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription("Reviewing lines"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for _, lineIdx := range queue {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.reviewLine(ctx, inv, lineIdx, index); err != nil {
			return err
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if pending := inv.PendingLines(); len(pending) > 0 {
		fmt.Fprintln(p.writer, FormatWarning(fmt.Sprintf("%d line(s) skipped and still pending.", len(pending))))
	}
	return nil
}

func (p *ReviewPrompter) reviewLine(ctx context.Context, inv *model.Invoice, lineIdx int, products map[int64]model.Product) error {
	line := &inv.Lines[lineIdx]

	for line.Status == model.StatusPending {
		fmt.Fprintln(p.writer, RenderBox(fmt.Sprintf("Line %d", lineIdx+1), p.formatLine(line, products)))
		fmt.Fprintln(p.writer, FormatPrompt("Options:"))
		if len(line.Candidates) > 0 {
			fmt.Fprintf(p.writer, "  [A] Accept best match: %s\n", SuccessStyle.Render(p.productName(products, line.Candidates[0].ProductID)))
			fmt.Fprintf(p.writer, "  [1-%d] Accept another candidate\n", len(line.Candidates))
		}
		fmt.Fprintln(p.writer, "  [N] Create a new product")
		fmt.Fprintln(p.writer, "  [E] Edit quantity/prices")
		fmt.Fprintln(p.writer, "  [R] Reject this line")
		fmt.Fprintln(p.writer, "  [S] Skip for now")

		choice, err := p.readLine()
		if err != nil {
			return err
		}

		switch strings.ToUpper(choice) {
		case "A":
			if len(line.Candidates) == 0 {
				fmt.Fprintln(p.writer, FormatError("No candidates to accept."))
				continue
			}
			if err := p.workflow.Accept(ctx, line, line.Candidates[0].ProductID); err != nil {
				return err
			}
		case "N":
			if err := p.createProduct(ctx, line); err != nil {
				return err
			}
		case "E":
			if err := p.editLine(line); err != nil {
				return err
			}
		case "R":
			if err := p.workflow.Reject(line); err != nil {
				return err
			}
		case "S":
			return nil
		default:
			n, convErr := strconv.Atoi(choice)
			if convErr != nil || n < 1 || n > len(line.Candidates) {
				fmt.Fprintln(p.writer, FormatError("Unrecognized option."))
				continue
			}
			if err := p.workflow.Accept(ctx, line, line.Candidates[n-1].ProductID); err != nil {
				return err
			}
		}
	}
	return nil
}

// createProduct prompts for new-product fields. On a normalized-name
// collision it offers to alias the description onto the existing product
// instead.
func (p *ReviewPrompter) createProduct(ctx context.Context, line *model.LineValidation) error {
	fmt.Fprint(p.writer, FormatPrompt("Product name"))
	name, err := p.readLine()
	if err != nil {
		return err
	}
	fmt.Fprint(p.writer, FormatPrompt("Category"))
	category, err := p.readLine()
	if err != nil {
		return err
	}
	fmt.Fprint(p.writer, FormatPrompt("Unit"))
	unit, err := p.readLine()
	if err != nil {
		return err
	}

	product, err := p.workflow.CreateProductAndAccept(ctx, line, name, category, unit)
	if err != nil {
		var dup *common.DuplicateProductError
		if errors.As(err, &dup) {
			fmt.Fprintln(p.writer, FormatWarning(fmt.Sprintf("Product already exists (id %d).", dup.ConflictingID)))
			fmt.Fprint(p.writer, FormatPrompt("Add this description as an alias and accept? [y/N]"))
			answer, readErr := p.readLine()
			if readErr != nil {
				return readErr
			}
			if strings.EqualFold(answer, "y") {
				if aliasErr := p.workflow.AddAlias(ctx, dup.ConflictingID, line.Raw.RawDescription); aliasErr != nil {
					return aliasErr
				}
				return p.workflow.Accept(ctx, line, dup.ConflictingID)
			}
			return nil
		}
		return err
	}

	fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf("Created product %q (id %d).", product.Name, product.ID)))
	return nil
}

// editLine prompts for replacement amounts. Empty input keeps a field.
func (p *ReviewPrompter) editLine(line *model.LineValidation) error {
	fields := workflow.EditFields{}

	for _, field := range []struct {
		target  **decimal.Decimal
		label   string
		current decimal.Decimal
	}{
		{&fields.Quantity, "Quantity", line.Quantity},
		{&fields.UnitPrice, "Unit price", line.UnitPrice},
		{&fields.TotalPrice, "Total price", line.TotalPrice},
	} {
		fmt.Fprint(p.writer, FormatPrompt(fmt.Sprintf("%s [%s]", field.label, field.current)))
		input, err := p.readLine()
		if err != nil {
			return err
		}
		if input == "" {
			continue
		}
		value, parseErr := decimal.NewFromString(input)
		if parseErr != nil {
			fmt.Fprintln(p.writer, FormatError(fmt.Sprintf("Invalid number %q, keeping %s.", input, field.current)))
			continue
		}
		*field.target = &value
	}

	if err := p.workflow.Edit(line, fields); err != nil {
		fmt.Fprintln(p.writer, FormatError(err.Error()))
	}
	return nil
}

func (p *ReviewPrompter) formatLine(line *model.LineValidation, products map[int64]model.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Description: %s\n", line.Raw.RawDescription)
	fmt.Fprintf(&b, "Quantity: %s   Unit price: %s   Total: %s\n",
		line.Quantity, line.UnitPrice, line.TotalPrice)
	fmt.Fprintf(&b, "Extraction confidence: %.0f%%\n", line.Raw.OCRConfidence*100)

	if len(line.Candidates) == 0 {
		b.WriteString(SubtleStyle.Render("No catalog candidates above the similarity floor."))
		return b.String()
	}

	b.WriteString("Candidates:\n")
	for i, candidate := range line.Candidates {
		fmt.Fprintf(&b, "  %d. %s (%.0f%%)\n",
			i+1, p.productName(products, candidate.ProductID), candidate.Similarity*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *ReviewPrompter) productName(products map[int64]model.Product, id int64) string {
	if product, ok := products[id]; ok {
		return product.Name
	}
	slog.Warn("candidate references unknown product", "product_id", id)
	return fmt.Sprintf("product %d", id)
}

func (p *ReviewPrompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}
