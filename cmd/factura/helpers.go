package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/facturio/factura/internal/analytics"
	"github.com/facturio/factura/internal/config"
	"github.com/facturio/factura/internal/matcher"
	"github.com/facturio/factura/internal/service"
	"github.com/facturio/factura/internal/storage"
	"github.com/facturio/factura/internal/workflow"
)

// initStorage initializes the storage service with proper path expansion
// and runs pending migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newMatcher builds a matcher from configured thresholds.
func newMatcher() *matcher.Matcher {
	return matcher.New(matcher.Config{
		MinSimilarity: viper.GetFloat64("match.min_similarity"),
		MaxCandidates: viper.GetInt("match.max_candidates"),
	})
}

// newWorkflow builds the validation workflow over the given store.
func newWorkflow(store service.Storage) *workflow.Workflow {
	return workflow.New(workflow.Config{
		AutoAccept: viper.GetFloat64("match.auto_accept"),
		OCRFloor:   viper.GetFloat64("match.ocr_floor"),
	}, newMatcher(), store)
}

// newAnalytics builds the analytics engine over the given store.
func newAnalytics(store service.Storage) *analytics.Engine {
	return analytics.New(analytics.Config{
		SignificantVariation: viper.GetFloat64("analytics.significant_variation"),
		VolatilityMedium:     viper.GetFloat64("analytics.volatility.medium"),
		VolatilityHigh:       viper.GetFloat64("analytics.volatility.high"),
		TrendTolerance:       viper.GetFloat64("analytics.trend_tolerance"),
		AlertSeverityHigh:    viper.GetFloat64("analytics.alert_severity"),
	}, store)
}
