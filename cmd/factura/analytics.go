package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facturio/factura/internal/analytics"
	"github.com/facturio/factura/internal/cli"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the headline KPIs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			kpis, err := newAnalytics(store).DashboardKPIs(ctx)
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render("Dashboard"))
			fmt.Printf("Invoices: %d total, %d this month\n", kpis.TotalInvoices, kpis.MonthlyInvoices)
			fmt.Printf("Catalog: %d products, %d suppliers\n", kpis.TotalProducts, kpis.TotalSuppliers)
			fmt.Printf("Global price variation (12 months): %+.1f%%\n", kpis.GlobalPriceVariation)

			if len(kpis.PriceTrend) > 0 {
				fmt.Println(cli.TitleStyle.Render("Monthly average price"))
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "Month\tAverage")
				for _, point := range kpis.PriceTrend {
					fmt.Fprintf(w, "%s\t%.2f\n", point.Month.Format("2006-01"), point.AveragePrice)
				}
				_ = w.Flush()
			}

			if len(kpis.TopVolatileProducts) > 0 {
				fmt.Println(cli.TitleStyle.Render("Most volatile products"))
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "Product\tCV\tTier")
				for _, stats := range kpis.TopVolatileProducts {
					fmt.Fprintf(w, "%s\t%.1f%%\t%s\n",
						stats.Product.Name, *stats.CoefficientVariation, stats.VolatilityLevel)
				}
				_ = w.Flush()
			}

			return nil
		},
	}
}

func alertsCmd() *cobra.Command {
	var (
		threshold float64
		days      int
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Detect significant price variations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			alerts, err := newAnalytics(store).PriceAlerts(ctx, threshold, days)
			if err != nil {
				return err
			}

			if len(alerts) == 0 {
				fmt.Println(cli.FormatInfo(fmt.Sprintf("No price variations above %.0f%% in the last %d days.", threshold, days)))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "Product\tSupplier\tPrevious\tCurrent\tVariation\tType\tSeverity\tDate")
			for _, a := range alerts {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%+.1f%%\t%s\t%s\t%s\n",
					a.Product.Name, a.Supplier.Name, a.PreviousPrice, a.CurrentPrice,
					a.VariationPercent, a.AlertType, a.Severity, a.Date.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 15, "variation threshold in percent")
	cmd.Flags().IntVar(&days, "days", 30, "lookback window in days")

	return cmd
}

func evolutionCmd() *cobra.Command {
	var (
		granularity string
		supplierID  int64
	)

	cmd := &cobra.Command{
		Use:   "evolution <product-id>",
		Short: "Show the bucketed price evolution of a product",
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

			var supplierFilter *int64
			if supplierID > 0 {
				supplierFilter = &supplierID
			}

			evolution, err := newAnalytics(store).PriceEvolution(ctx, productID, analytics.Granularity(granularity), supplierFilter)
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("%s (%s, %d observations)",
				evolution.Product.Name, evolution.Granularity, evolution.TotalDataPoints)))

			if len(evolution.Buckets) == 0 {
				fmt.Println(cli.FormatInfo("No price history for this product."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "Period\tAverage\tMin\tMax\tPoints\tVariation\tSignificant")
			for _, bucket := range evolution.Buckets {
				variation := "-"
				if bucket.VariationPercent != nil {
					variation = fmt.Sprintf("%+.1f%%", *bucket.VariationPercent)
				}
				significant := ""
				if bucket.IsSignificant {
					significant = cli.WarningStyle.Render("yes")
				}
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t%s\t%s\n",
					bucket.Period.Format("2006-01-02"), bucket.AveragePrice,
					bucket.MinPrice, bucket.MaxPrice, bucket.DataPoints, variation, significant)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&granularity, "granularity", "monthly", "bucket size: monthly, quarterly, or yearly")
	cmd.Flags().Int64Var(&supplierID, "supplier", 0, "restrict to one supplier id")

	return cmd
}

func volatilityCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "volatility",
		Short: "Rank products by price volatility",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ranked, err := newAnalytics(store).PriceVolatility(ctx, limit)
			if err != nil {
				return err
			}

			if len(ranked) == 0 {
				fmt.Println(cli.FormatInfo("Not enough price history to measure volatility."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "Product\tMean\tStdDev\tCV\tMin\tMax\tPoints\tSuppliers\tTier")
			for _, stats := range ranked {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.1f%%\t%.2f\t%.2f\t%d\t%d\t%s\n",
					stats.Product.Name, stats.MeanPrice, stats.StdDeviation,
					*stats.CoefficientVariation, stats.MinPrice, stats.MaxPrice,
					stats.DataPoints, stats.SuppliersCount, stats.VolatilityLevel)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of products to show")

	return cmd
}

func compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <product-id>",
		Short: "Compare supplier pricing for a product",
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

			comparisons, err := newAnalytics(store).CompareSuppliers(ctx, productID)
			if err != nil {
				return err
			}

			if len(comparisons) == 0 {
				fmt.Println(cli.FormatInfo("No supplier has delivered this product yet."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "Supplier\tAverage\tMin\tMax\tPoints\tTrend\tBest price")
			for _, c := range comparisons {
				best := ""
				if c.IsBestPrice {
					best = cli.SuccessStyle.Render("★")
				}
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t%s\t%s\n",
					c.Supplier.Name, c.AveragePrice, c.MinPrice, c.MaxPrice,
					c.DataPoints, c.RecentTrend, best)
			}
			return nil
		},
	}
}
