// Package cache keeps the news listing between requests. Detail lookups are
// never cached.
package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/metrics"
	"github.com/quilpalta/alpalo/news"
)

// Backend holds one cached listing. Every Clear starts a new generation; a
// listing read from the store under an older generation is never saved.
type Backend interface {
	// Load returns the cached listing and whether one was present.
	Load(ctx context.Context) ([]news.Item, bool, error)
	// Generation returns the current invalidation counter.
	Generation(ctx context.Context) (uint64, error)
	// Save stores items if the generation is still gen and reports whether
	// it did.
	Save(ctx context.Context, items []news.Item, gen uint64) (bool, error)
	// Clear drops the listing and advances the generation.
	Clear(ctx context.Context) error
}

// Records wraps a RecordStore and serves ListNews from a Backend. A
// successful Insert clears the cached listing. Failed listings are never
// cached.
type Records struct {
	news.RecordStore

	backend Backend
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Wrap returns store with its listing cached in backend.
func Wrap(store news.RecordStore, backend Backend, m *metrics.Metrics, logger *zap.Logger) *Records {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{RecordStore: store, backend: backend, metrics: m, logger: logger}
}

// ListNews returns the cached listing or loads and caches it. Cache errors
// fall through to the store.
func (r *Records) ListNews(ctx context.Context) ([]news.Item, error) {
	items, ok, err := r.backend.Load(ctx)
	if err != nil {
		r.logger.Warn("listing cache load failed", zap.Error(err))
	}
	r.metrics.CacheLookup(ok)
	if ok {
		return items, nil
	}

	// The generation is read before the query so that an Insert landing
	// while the query runs keeps this result out of the cache.
	gen, genErr := r.backend.Generation(ctx)
	if genErr != nil {
		r.logger.Warn("listing cache generation failed", zap.Error(genErr))
	}
	items, err = r.RecordStore.ListNews(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return items, nil
	}
	saved, err := r.backend.Save(ctx, items, gen)
	switch {
	case err != nil:
		r.logger.Warn("listing cache save failed", zap.Error(err))
	case !saved:
		r.logger.Debug("stale listing not cached", zap.Uint64("generation", gen))
	}
	return items, nil
}

// Insert stores d and drops the cached listing.
func (r *Records) Insert(ctx context.Context, d news.Draft) (news.Item, error) {
	it, err := r.RecordStore.Insert(ctx, d)
	if err != nil {
		return it, err
	}
	r.Invalidate(ctx)
	return it, nil
}

// Invalidate drops the cached listing.
func (r *Records) Invalidate(ctx context.Context) {
	if err := r.backend.Clear(ctx); err != nil {
		r.logger.Warn("listing cache clear failed", zap.Error(err))
	}
}
