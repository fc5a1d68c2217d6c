package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facturio/factura/internal/cli"
	"github.com/facturio/factura/internal/matcher"
)

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage the canonical product catalog",
		Long:  `List catalog products, create new ones, and record aliases confirmed during review.`,
	}

	cmd.AddCommand(listProductsCmd())
	cmd.AddCommand(addProductCmd())
	cmd.AddCommand(addAliasCmd())
	cmd.AddCommand(deprecateProductCmd())

	return cmd
}

func listProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all catalog products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			products, err := store.GetProducts(ctx)
			if err != nil {
				return fmt.Errorf("failed to get products: %w", err)
			}

			if len(products) == 0 {
				fmt.Println(cli.FormatInfo("No products found. Use 'factura products add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tName\tCategory\tUnit\tAliases\tActive")
			for _, p := range products {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%v\n",
					p.ID, p.Name, p.Category, p.Unit, strings.Join(p.Aliases, ", "), p.IsActive)
			}

			return nil
		},
	}
}

func addProductCmd() *cobra.Command {
	var (
		category string
		unit     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new catalog product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			product, err := store.CreateProduct(ctx, name, matcher.Normalize(name), category, unit)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created product %q (id %d).", product.Name, product.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "free-text product grouping")
	cmd.Flags().StringVar(&unit, "unit", "", "measurement unit (e.g. tonne, ml)")

	return cmd
}

func addAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias <product-id> <alias>",
		Short: "Record an alternate description for a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.AddProductAlias(ctx, productID, args[1]); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added alias %q to product %d.", args[1], productID)))
			return nil
		},
	}
}

func deprecateProductCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deprecate <product-id>",
		Short: "Soft-deprecate a product (history is preserved)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeprecateProduct(ctx, productID); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deprecated product %d.", productID)))
			return nil
		},
	}
}

func suppliersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suppliers",
		Short: "Manage suppliers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all suppliers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			suppliers, err := store.GetSuppliers(ctx)
			if err != nil {
				return fmt.Errorf("failed to get suppliers: %w", err)
			}

			if len(suppliers) == 0 {
				fmt.Println(cli.FormatInfo("No suppliers registered yet."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tName")
			for _, s := range suppliers {
				fmt.Fprintf(w, "%d\t%s\n", s.ID, s.Name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Register a supplier explicitly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			supplier, err := store.UpsertSupplier(ctx, args[0], matcher.NormalizeSupplier(args[0]))
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Supplier %q registered (id %d).", supplier.Name, supplier.ID)))
			return nil
		},
	})

	return cmd
}
