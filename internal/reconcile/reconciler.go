// Package reconcile drives each feature through the address reconciliation
// state machine: completeness check, reverse lookup, optional forward
// fallback, and interactive repair.
package reconcile

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/stationmap-cli/internal/model"
	"github.com/sells-group/stationmap-cli/internal/store"
	"github.com/sells-group/stationmap-cli/pkg/geocode"
)

// Reconciler backfills missing postal address fields via geocoding, with
// cache-first lookups and per-feature failure isolation.
type Reconciler struct {
	client    geocode.Client
	cache     store.Cache
	prompter  Prompter // nil means non-interactive
	forward   bool
	precision int
	workers   int

	// Interactive prompts stay coherent: one outstanding at a time,
	// regardless of lookup concurrency.
	promptMu sync.Mutex
}

// Option configures the Reconciler.
type Option func(*Reconciler)

// WithPrompter enables interactive mode with the given operator prompter.
func WithPrompter(p Prompter) Option {
	return func(r *Reconciler) {
		r.prompter = p
	}
}

// WithForwardFallback enables forward (text-search) lookup after a reverse miss.
func WithForwardFallback(enabled bool) Option {
	return func(r *Reconciler) {
		r.forward = enabled
	}
}

// WithConcurrency sets the number of parallel lookups across distinct
// features. The provider rate limit is shared, so this bounds in-flight
// work, not request rate.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithCoordPrecision sets the decimal places used for coordinate cache keys.
func WithCoordPrecision(p int) Option {
	return func(r *Reconciler) {
		r.precision = p
	}
}

// New creates a Reconciler over the given geocoding client and cache.
func New(client geocode.Client, cache store.Cache, opts ...Option) *Reconciler {
	r := &Reconciler{
		client:    client,
		cache:     cache,
		precision: 5,
		workers:   1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReconcileAll processes every feature and returns the run summary. A run
// may be interrupted between features; per-feature failures never abort the
// whole run.
func (r *Reconciler) ReconcileAll(ctx context.Context, features []*model.Feature) (model.Summary, error) {
	var runErr error
	if r.workers <= 1 {
		for _, f := range features {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			r.reconcileIsolated(ctx, f)
		}
	} else {
		eg, gCtx := errgroup.WithContext(ctx)
		eg.SetLimit(r.workers)
		for _, f := range features {
			eg.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				r.reconcileIsolated(gCtx, f)
				return nil
			})
		}
		runErr = eg.Wait()
	}

	var summary model.Summary
	for _, f := range features {
		summary.Add(f)
	}
	return summary, runErr
}

// reconcileIsolated runs one feature, downgrading any failure to UNRESOLVED.
func (r *Reconciler) reconcileIsolated(ctx context.Context, f *model.Feature) {
	if err := r.Reconcile(ctx, f); err != nil {
		zap.L().Warn("feature reconciliation failed",
			zap.String("id", f.ID),
			zap.Error(err),
		)
		if f.Decision.Status == model.StatusPending {
			f.Decision.Status = model.StatusUnresolved
		}
	}
}

// Reconcile runs the state machine for one feature. Mutation is append-only:
// address fields are filled, never retracted.
func (r *Reconciler) Reconcile(ctx context.Context, f *model.Feature) error {
	// COMPLETE short-circuit: no lookup, no network.
	if f.Address.Complete() {
		if f.Decision.Status == model.StatusPending {
			f.Decision = model.Decision{
				Status: model.StatusComplete,
				Source: model.SourceOriginal,
			}
		}
		return nil
	}

	// REVERSE_LOOKUP, cache-first.
	done, err := r.lookupStage(ctx, f, CoordKey(f.Lat, f.Lon, r.precision), model.SourceReverse,
		func(ctx context.Context) (*geocode.Result, error) {
			return r.client.Reverse(ctx, f.Lat, f.Lon)
		})
	if err != nil || done {
		return err
	}

	// FORWARD_LOOKUP, feature-flagged.
	if r.forward {
		query := ForwardQuery(f)
		done, err = r.lookupStage(ctx, f, QueryKey(query), model.SourceForward,
			func(ctx context.Context) (*geocode.Result, error) {
				return r.client.Forward(ctx, query)
			})
		if err != nil || done {
			return err
		}
	}

	// UNRESOLVED_STATE.
	if r.prompter != nil {
		return r.promptManual(ctx, f)
	}
	f.Decision.Status = model.StatusUnresolved
	return nil
}

// lookupStage resolves one candidate source (cache, then network) and feeds
// it to the acceptance step. done=true means the feature reached a terminal
// state and later stages must not run.
func (r *Reconciler) lookupStage(
	ctx context.Context,
	f *model.Feature,
	key string,
	source model.DecisionSource,
	lookup func(ctx context.Context) (*geocode.Result, error),
) (done bool, err error) {
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		entry = nil
	}

	if entry != nil {
		if !entry.Found {
			return false, nil // cached definitive miss: no call, next stage
		}
		// A cached prior answer is reused silently, even in interactive mode.
		return r.accept(ctx, f, entry.Address, source, key, true)
	}

	result, err := lookup(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		// Transient failure exhausted its retries: downgrade to no-result
		// for this run, but do not cache a network failure as definitive.
		zap.L().Warn("lookup failed after retries",
			zap.String("id", f.ID),
			zap.String("stage", string(source)),
			zap.Error(err),
		)
		return false, nil
	}

	if !result.Matched {
		// Definitive miss is cached to avoid repeated useless calls.
		r.putCache(ctx, store.Entry{Key: key, Found: false, Source: result.Source})
		return false, nil
	}

	candidate := model.Address{
		HouseNumber: result.HouseNumber,
		Street:      result.Street,
		City:        result.City,
		State:       result.State,
		PostalCode:  result.PostalCode,
	}
	return r.accept(ctx, f, candidate, source, key, false)
}

// accept applies a candidate address to the feature. Complete candidates
// resolve directly; partial ones are ambiguous and go to the operator in
// interactive mode or are taken as best-available otherwise.
func (r *Reconciler) accept(
	ctx context.Context,
	f *model.Feature,
	candidate model.Address,
	source model.DecisionSource,
	key string,
	fromCache bool,
) (done bool, err error) {
	merged := f.Address
	merged.Merge(candidate)

	if merged.Complete() {
		f.Address = merged
		f.Decision = model.Decision{Status: model.StatusResolved, Source: source}
		if !fromCache {
			r.putCache(ctx, store.Entry{
				Key: key, Found: true, Address: candidate, Source: string(source),
			})
		}
		return true, nil
	}

	// Ambiguous candidate: soft signal, never blocks the pipeline.
	zap.L().Warn("ambiguous address candidate",
		zap.String("id", f.ID),
		zap.String("candidate", candidate.OneLine()),
	)

	// Cached entries were accepted once already; they are reused silently
	// rather than re-prompting the operator.
	if r.prompter != nil && !fromCache {
		accepted, ok, promptErr := r.confirmSerialized(f, merged)
		if promptErr != nil {
			return false, promptErr
		}
		if !ok {
			// Rejection: leave unresolved-so-far and keep the cache clean.
			return false, nil
		}
		f.Address = accepted
		f.Decision = model.Decision{
			Status:    model.StatusResolved,
			Source:    model.SourceUser,
			Ambiguous: true,
		}
		r.putCache(ctx, store.Entry{
			Key: key, Found: true, Address: accepted, Source: string(model.SourceUser),
		})
		return true, nil
	}

	// Non-interactive: take the best available automated result.
	f.Address = merged
	f.Decision.Ambiguous = true
	if !fromCache {
		r.putCache(ctx, store.Entry{
			Key: key, Found: true, Address: candidate, Source: string(source),
		})
	}
	if f.Address.Complete() {
		f.Decision.Status = model.StatusResolved
		f.Decision.Source = source
		return true, nil
	}
	// Partial fill: keep going through later stages.
	return false, nil
}

// promptManual is the interactive arm of UNRESOLVED_STATE.
func (r *Reconciler) promptManual(ctx context.Context, f *model.Feature) error {
	r.promptMu.Lock()
	entered, ok, err := r.prompter.Enter(f)
	r.promptMu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		f.Decision.Status = model.StatusUnresolved
		return nil
	}

	f.Address.Merge(entered)
	f.Decision = model.Decision{
		Status:    model.StatusResolved,
		Source:    model.SourceUser,
		Ambiguous: f.Decision.Ambiguous,
	}
	// Confirmed answers are cached so a re-run does not re-prompt.
	r.putCache(ctx, store.Entry{
		Key:     CoordKey(f.Lat, f.Lon, r.precision),
		Found:   true,
		Address: f.Address,
		Source:  string(model.SourceUser),
	})
	return nil
}

func (r *Reconciler) confirmSerialized(f *model.Feature, candidate model.Address) (model.Address, bool, error) {
	r.promptMu.Lock()
	defer r.promptMu.Unlock()
	return r.prompter.Confirm(f, candidate)
}

func (r *Reconciler) putCache(ctx context.Context, entry store.Entry) {
	if err := r.cache.Put(ctx, entry); err != nil {
		zap.L().Warn("cache write failed",
			zap.String("key", entry.Key),
			zap.Error(err),
		)
	}
}
