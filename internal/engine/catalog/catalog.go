// Package catalog caches connector manifests fetched from the manifest registry.
//
// A Catalog is the only state shared between resolution calls. Reads are
// lock-free, concurrent fetches of the same connector are collapsed into one
// registry call, and transient registry failures are retried with bounded
// exponential backoff.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultPrefetchConcurrency bounds the registry calls issued by Prefetch.
const DefaultPrefetchConcurrency = 8

// Catalog is a concurrent, lazily populated cache of connector versions.
type Catalog struct {
	registry ports.ManifestRegistry
	metrics  ports.Metrics
	logger   ports.Logger

	retry       domain.RetryPolicy
	ttl         time.Duration
	now         func() time.Time
	concurrency int

	entries sync.Map // domain.ConnectorID -> entry
	group   singleflight.Group
}

type entry struct {
	versions  []domain.ConnectorVersion
	fetchedAt time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRetryPolicy sets the backoff policy around registry calls.
func WithRetryPolicy(policy domain.RetryPolicy) Option {
	return func(c *Catalog) {
		c.retry = policy
	}
}

// WithTTL expires cached entries after d. Zero keeps entries until Forget.
func WithTTL(d time.Duration) Option {
	return func(c *Catalog) {
		c.ttl = d
	}
}

// WithMetrics records every lookup.
func WithMetrics(m ports.Metrics) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// WithLogger reports retries at debug level.
func WithLogger(l ports.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

// WithClock replaces time.Now for TTL bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithPrefetchConcurrency bounds the registry calls issued by Prefetch.
func WithPrefetchConcurrency(n int) Option {
	return func(c *Catalog) {
		c.concurrency = n
	}
}

// New creates a Catalog in front of registry.
func New(registry ports.ManifestRegistry, opts ...Option) (*Catalog, error) {
	if registry == nil {
		return nil, zerr.WithStack(zerr.Wrap(domain.ErrNilRegistry, "catalog needs a manifest registry"))
	}
	c := &Catalog{
		registry:    registry,
		retry:       domain.DefaultRetryPolicy(),
		now:         time.Now,
		concurrency: DefaultPrefetchConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c, nil
}

// Versions returns every version of the connector in ascending order.
// The returned slice is shared and must not be modified.
func (c *Catalog) Versions(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "registry lookup interrupted"), "connector", string(id))
	}
	if cached, ok := c.lookup(id); ok {
		c.observe(ports.FetchHit)
		return cached, nil
	}

	ch := c.group.DoChan(string(id), func() (any, error) {
		// Another caller may have stored the entry while this one waited.
		if cached, ok := c.lookup(id); ok {
			return cached, nil
		}
		return c.fetchAndStore(ctx, id)
	})

	select {
	case <-ctx.Done():
		return nil, zerr.With(zerr.Wrap(ctx.Err(), "registry lookup interrupted"), "connector", string(id))
	case res := <-ch:
		if res.Err != nil && res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
			// The caller that led the shared fetch went away; fetch on our own context.
			return c.fetchAndStore(ctx, id)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		c.observe(ports.FetchMiss)
		versions, _ := res.Val.([]domain.ConnectorVersion)
		return versions, nil
	}
}

// Forget drops the cached entries of the given connectors.
func (c *Catalog) Forget(ids ...domain.ConnectorID) {
	for _, id := range ids {
		c.entries.Delete(id)
	}
}

// Lookup is the outcome of one prefetched connector.
type Lookup struct {
	ConnectorID domain.ConnectorID
	Versions    []domain.ConnectorVersion
	Err         error
}

// Prefetch looks up the connectors concurrently and returns the outcomes in input order.
// A failed lookup does not stop the others.
func (c *Catalog) Prefetch(ctx context.Context, ids []domain.ConnectorID) []Lookup {
	results := make([]Lookup, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			versions, err := c.Versions(gctx, id)
			results[i] = Lookup{ConnectorID: id, Versions: versions, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Catalog) lookup(id domain.ConnectorID) ([]domain.ConnectorVersion, bool) {
	raw, ok := c.entries.Load(id)
	if !ok {
		return nil, false
	}
	e, _ := raw.(entry)
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) > c.ttl {
		c.entries.CompareAndDelete(id, raw)
		return nil, false
	}
	return e.versions, true
}

func (c *Catalog) fetchAndStore(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error) {
	versions, err := c.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	c.entries.Store(id, entry{versions: versions, fetchedAt: c.now()})
	return versions, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Catalog) fetch(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error) {
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.retry.InitialInterval),
		backoff.WithMaxInterval(c.retry.MaxInterval),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retry.MaxAttempts-1)), ctx) //nolint:gosec // MaxAttempts >= 1

	attempts := 0
	operation := func() ([]domain.ConnectorVersion, error) {
		attempts++
		versions, err := c.registry.GetVersions(ctx, id)
		if err == nil {
			return versions, nil
		}
		if errors.Is(err, domain.ErrConnectorNotFound) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	notify := func(err error, wait time.Duration) {
		c.observe(ports.FetchRetry)
		if c.logger != nil {
			c.logger.Debug(fmt.Sprintf("registry lookup for %s failed, retrying in %s: %v", id, wait, err))
		}
	}

	versions, err := backoff.RetryNotifyWithData(operation, b, notify)
	switch {
	case err == nil:
		return normalize(id, versions), nil
	case errors.Is(err, domain.ErrConnectorNotFound):
		c.observe(ports.FetchNotFound)
		return nil, zerr.With(zerr.Wrap(err, "registry lookup failed"), "connector", string(id))
	case ctx.Err() != nil:
		return nil, zerr.With(zerr.Wrap(ctx.Err(), "registry lookup interrupted"), "connector", string(id))
	default:
		c.observe(ports.FetchError)
		e := zerr.With(zerr.Wrap(domain.ErrRegistryUnavailable, err.Error()), "connector", string(id))
		return nil, zerr.With(e, "attempts", attempts)
	}
}

// normalize stamps the connector id, sorts ascending and drops duplicate versions.
func normalize(id domain.ConnectorID, versions []domain.ConnectorVersion) []domain.ConnectorVersion {
	out := make([]domain.ConnectorVersion, 0, len(versions))
	for _, cv := range versions {
		if cv.Version.IsZero() {
			continue
		}
		cv.ConnectorID = id
		out = append(out, cv)
	}
	slices.SortStableFunc(out, func(a, b domain.ConnectorVersion) int {
		return a.Version.Compare(b.Version)
	})
	return slices.CompactFunc(out, func(a, b domain.ConnectorVersion) bool {
		return a.Version.Equal(b.Version)
	})
}

func (c *Catalog) observe(result string) {
	if c.metrics != nil {
		c.metrics.ObserveRegistryFetch(result)
	}
}
