package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facturio/factura/internal/cli"
)

func invoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Browse saved invoices",
	}

	cmd.AddCommand(listInvoicesCmd())
	cmd.AddCommand(showInvoiceCmd())

	return cmd
}

func listInvoicesCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved invoices, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			invoices, err := store.ListInvoices(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list invoices: %w", err)
			}

			if len(invoices) == 0 {
				fmt.Println(cli.FormatInfo("No invoices saved yet. Use 'factura import' to process one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tSupplier\tNumber\tDate\tTotal\tConfidence\tStatus")
			for _, inv := range invoices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%.0f%%\t%s\n",
					inv.ID, inv.SupplierName, inv.InvoiceNumber,
					inv.Date.Format("2006-01-02"), inv.TotalAmount.StringFixed(2),
					inv.Currency, inv.GlobalConfidence*100, inv.Status)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum invoices to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "invoices to skip")

	return cmd
}

func showInvoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Show one invoice with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			inv, err := store.GetInvoiceByID(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Invoice %s", inv.ID)))
			fmt.Printf("Supplier: %s\n", inv.SupplierName)
			if inv.InvoiceNumber != "" {
				fmt.Printf("Number: %s\n", inv.InvoiceNumber)
			}
			fmt.Printf("Date: %s\n", inv.Date.Format("2006-01-02"))
			fmt.Printf("Total: %s %s\n", inv.TotalAmount.StringFixed(2), inv.Currency)
			fmt.Printf("Confidence: %.0f%%\n", inv.GlobalConfidence*100)
			fmt.Printf("Status: %s\n", inv.Status)

			if len(inv.Lines) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "#\tDescription\tQty\tUnit price\tTotal\tStatus\tProduct")
			for i := range inv.Lines {
				line := &inv.Lines[i]
				product := "-"
				if line.ChosenProductID != nil {
					product = fmt.Sprintf("%d", *line.ChosenProductID)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					i+1, line.Raw.RawDescription, line.Quantity.String(),
					line.UnitPrice.StringFixed(2), line.TotalPrice.StringFixed(2),
					line.Status, product)
			}
			return nil
		},
	}
}
