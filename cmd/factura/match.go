package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facturio/factura/internal/cli"
	"github.com/facturio/factura/internal/model"
)

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <raw-description>",
		Short: "Match a raw line description against the catalog",
		Long:  `Run the reconciliation matcher on a single raw description and print the ranked candidates with their similarity scores.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			candidates, err := newMatcher().Match(args[0], products)
			if err != nil {
				return err
			}

			if len(candidates) == 0 {
				fmt.Println(cli.FormatInfo("No candidates above the similarity floor."))
				return nil
			}

			index := make(map[int64]model.Product, len(products))
			for _, p := range products {
				index[p.ID] = p
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "Rank\tProduct\tSimilarity")
			for i, c := range candidates {
				fmt.Fprintf(w, "%d\t%s\t%.0f%%\n", i+1, index[c.ProductID].Name, c.Similarity*100)
			}
			return nil
		},
	}
}
