package templatecache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/services"
	"docbatch/internal/telemetry"
)

// Fetcher downloads template bytes from the origin store.
type Fetcher interface {
	DownloadContent(ctx context.Context, id string) ([]byte, error)
}

// Loader resolves templates through the cache, fetching misses once per key
// regardless of how many callers ask concurrently.
type Loader struct {
	cache   *Cache
	fetcher Fetcher
	sink    telemetry.Sink
	logger  *slog.Logger
	group   singleflight.Group
}

// NewLoader wires a cache to its origin.
func NewLoader(cache *Cache, fetcher Fetcher, sink telemetry.Sink, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		cache:   cache,
		fetcher: fetcher,
		sink:    telemetry.OrNop(sink),
		logger:  logging.NewComponentLogger(logger, "templatecache"),
	}
}

// Cache exposes the underlying cache for stats and purges.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Load returns template bytes for contentID.
func (l *Loader) Load(ctx context.Context, contentID string) ([]byte, error) {
	if data, ok := l.cache.Get(contentID); ok {
		l.sink.Count(telemetry.CounterCacheHit, 1)
		return data, nil
	}
	l.sink.Count(telemetry.CounterCacheMiss, 1)

	result, err, shared := l.group.Do(contentID, func() (any, error) {
		// A concurrent flight may have filled the entry between our miss and now.
		if data, ok := l.cache.lookup(contentID, false); ok {
			return data, nil
		}
		start := time.Now()
		data, err := l.fetcher.DownloadContent(ctx, contentID)
		l.sink.RecordDependency(ctx, telemetry.Dependency{
			JobType:  telemetry.JobTypeTemplate,
			Duration: time.Since(start),
			Success:  err == nil,
			Detail:   contentID,
		})
		if err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				return nil, services.Wrap(services.KindTemplateNotFound, "template load", "template "+contentID+" does not exist", err)
			}
			return nil, services.Wrap(services.KindTransient, "template load", "download template "+contentID, err)
		}
		l.cache.Set(contentID, data)
		l.logger.Debug("template cached",
			logging.String(logging.FieldContentID, contentID),
			logging.Int("bytes", len(data)),
			logging.Duration("fetch_duration", time.Since(start)),
		)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("template fetch shared", logging.String(logging.FieldContentID, contentID))
	}
	return result.([]byte), nil
}
