package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-aggregator-go/internal/domain"
	"github.com/boddenberg/account-aggregator-go/internal/infra/observability"
	"github.com/boddenberg/account-aggregator-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/aggregator")

// Accumulator collects unique entries in first-seen order.
// len(entries) == len(seen) at all times.
type Accumulator struct {
	keyField string
	entries  []domain.Entry
	seen     map[string]struct{}
}

// NewAccumulator creates an empty accumulator keyed on keyField.
func NewAccumulator(keyField string) *Accumulator {
	return &Accumulator{
		keyField: keyField,
		entries:  []domain.Entry{},
		seen:     make(map[string]struct{}),
	}
}

// Merge appends the entries whose key has not been seen yet, keeping their
// relative order, and returns how many were dropped as duplicates.
// If any entry lacks its key the accumulator is left untouched.
func (a *Accumulator) Merge(entries []domain.Entry) (int, error) {
	keys := make([]string, len(entries))
	for i, e := range entries {
		k, err := e.Key(a.keyField)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		keys[i] = k
	}

	dropped := 0
	for i, e := range entries {
		if _, dup := a.seen[keys[i]]; dup {
			dropped++
			continue
		}
		a.seen[keys[i]] = struct{}{}
		a.entries = append(a.entries, e)
	}
	return dropped, nil
}

// Entries returns the unique entries collected so far.
func (a *Accumulator) Entries() []domain.Entry {
	return a.entries
}

// Len returns the number of unique entries.
func (a *Accumulator) Len() int {
	return len(a.entries)
}

// Aggregator walks every page of a resource and deduplicates its entries.
type Aggregator struct {
	fetcher  port.PageFetcher
	maxPages int
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAggregator creates an Aggregator. maxPages <= 0 leaves walks unbounded.
func NewAggregator(fetcher port.PageFetcher, maxPages int, metrics *observability.Metrics, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		fetcher:  fetcher,
		maxPages: maxPages,
		metrics:  metrics,
		logger:   logger,
	}
}

// Aggregate fetches firstLink and every page it chains to, one page at a
// time, and returns the entries with duplicate keys removed. The first
// occurrence of a key wins. Any failure aborts the walk; no partial result
// is returned.
func (a *Aggregator) Aggregate(ctx context.Context, resource domain.Resource, token domain.AccessToken, firstLink string) ([]domain.Entry, error) {
	ctx, span := tracer.Start(ctx, "Aggregator.Aggregate")
	defer span.End()
	span.SetAttributes(attribute.String("resource", string(resource)))

	keyField := resource.KeyField()
	if keyField == "" {
		return nil, &domain.ErrFetch{
			Resource: resource,
			Link:     firstLink,
			Err:      fmt.Errorf("no unique key defined for resource %q", resource),
		}
	}

	acc := NewAccumulator(keyField)
	visited := make(map[string]struct{})
	link := firstLink

	for pages := 0; ; pages++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.ErrFetch{Resource: resource, Link: link, Err: err}
		}
		if a.maxPages > 0 && pages >= a.maxPages {
			return nil, &domain.ErrFetch{
				Resource: resource,
				Link:     link,
				Err:      &domain.ErrPageLimit{Resource: resource, MaxPages: a.maxPages},
			}
		}
		if _, ok := visited[link]; ok {
			return nil, &domain.ErrFetch{
				Resource: resource,
				Link:     link,
				Err:      &domain.ErrPaginationCycle{Resource: resource, Link: link},
			}
		}
		visited[link] = struct{}{}

		page, err := a.fetcher.FetchPage(ctx, token, resource, link)
		if err != nil {
			return nil, err
		}
		a.metrics.IncrPagesFetched(resource)

		dropped, err := acc.Merge(page.Entries)
		if err != nil {
			return nil, &domain.ErrFetch{Resource: resource, Link: link, Err: err}
		}
		if dropped > 0 {
			a.metrics.AddDuplicatesDropped(resource, dropped)
			runLogger(ctx, a.logger).Debug("dropped duplicate entries",
				zap.String("resource", string(resource)),
				zap.String("link", link),
				zap.Int("dropped", dropped),
			)
		}

		if !page.HasNext() {
			span.SetAttributes(
				attribute.Int("pages", pages+1),
				attribute.Int("entries", acc.Len()),
			)
			return acc.Entries(), nil
		}
		link = page.Next
	}
}

// runLogger tags logger with the run ID carried by ctx.
func runLogger(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		return logger.With(zap.String("run_id", runID))
	}
	return logger
}
