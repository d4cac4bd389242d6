package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stationmap-cli/internal/config"
	"github.com/sells-group/stationmap-cli/internal/extract"
	"github.com/sells-group/stationmap-cli/internal/model"
	"github.com/sells-group/stationmap-cli/internal/reconcile"
	"github.com/sells-group/stationmap-cli/internal/store"
	"github.com/sells-group/stationmap-cli/pkg/geocode"
)

// region returns the selected region's config. Callers run validateConfig first.
func region() config.RegionConfig {
	return cfg.Regions[cfg.Region]
}

// regionDir is the per-region output directory.
func regionDir() string {
	return filepath.Join(cfg.Export.OutputDir, cfg.Region)
}

// validateConfig fails fast, before any processing or side effects.
func validateConfig() error {
	return cfg.Validate()
}

// openInput builds a feature source from a file or a directory of files.
func openInput(ctx context.Context, path string) (extract.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stat input %s", path)
	}
	if info.IsDir() {
		return extract.OpenDir(ctx, path)
	}
	return extract.Open(ctx, path)
}

// extractFeatures streams matching features out of the input. Extraction
// failures are fail-soft: features produced before the failure are kept and
// the error count is reported in the summary.
func extractFeatures(ctx context.Context, input, tag string) ([]*model.Feature, int, error) {
	pred, err := extract.ParsePredicate(tag)
	if err != nil {
		return nil, 0, err
	}

	src, err := openInput(ctx, input)
	if err != nil {
		return nil, 0, err
	}
	defer src.Close() //nolint:errcheck

	features, err := extract.Drain(ctx, extract.Filter(src, pred))
	if err != nil {
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) {
			zap.L().Error("extraction aborted, keeping partial results",
				zap.String("input", input),
				zap.Int("features_kept", len(features)),
				zap.Error(err),
			)
			return features, 1, nil
		}
		return features, 0, err
	}

	zap.L().Info("extraction complete",
		zap.String("input", input),
		zap.Int("features", len(features)),
	)
	return features, 0, nil
}

// loadFeatures reads back a pipeline GeoJSON file without tag filtering.
func loadFeatures(ctx context.Context, path string) ([]*model.Feature, error) {
	src, err := extract.OpenGeoJSON(path)
	if err != nil {
		return nil, err
	}
	defer src.Close() //nolint:errcheck
	return extract.Drain(ctx, src)
}

// buildReconciler wires the geocode client, cache, and reconciler from config
// and the command's mode flags.
func buildReconciler(ctx context.Context, interactive, forward bool) (*reconcile.Reconciler, store.Cache, error) {
	client, err := geocode.NewNominatim(cfg.Geocode.UserAgent,
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithMinInterval(cfg.Geocode.MinInterval()),
		geocode.WithRetryConfig(cfg.Geocode.RetryConfig()),
		geocode.WithHTTPClient(httpClient()),
	)
	if err != nil {
		return nil, nil, err
	}

	cache, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	opts := []reconcile.Option{
		reconcile.WithForwardFallback(forward),
		reconcile.WithConcurrency(cfg.Reconcile.Concurrency),
		reconcile.WithCoordPrecision(cfg.Reconcile.CoordPrecision),
	}
	if interactive {
		opts = append(opts, reconcile.WithPrompter(
			reconcile.NewTerminalPrompter(os.Stdin, os.Stdout),
		))
	}

	return reconcile.New(client, cache, opts...), cache, nil
}

// httpClient applies the per-call timeout from config. Timeouts bound each
// network call, not the whole run.
func httpClient() *http.Client {
	return &http.Client{Timeout: cfg.Geocode.Timeout()}
}

// recordRun persists the summary when the cache backend is durable.
func recordRun(ctx context.Context, cache store.Cache, summary model.Summary) {
	recorder, ok := cache.(store.RunRecorder)
	if !ok {
		return
	}
	id, err := recorder.RecordRun(ctx, cfg.Region, summary)
	if err != nil {
		zap.L().Warn("failed to record run summary", zap.Error(err))
		return
	}
	zap.L().Info("run recorded", zap.String("run_id", id))
}
