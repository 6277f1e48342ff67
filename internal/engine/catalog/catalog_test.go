package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/core/ports"
	"go.trai.ch/connres/internal/core/ports/mocks"
	"go.trai.ch/connres/internal/engine/catalog"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

var fastRetry = domain.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func manifest(id domain.ConnectorID, version string) domain.ConnectorVersion {
	return domain.ConnectorVersion{ConnectorID: id, Version: domain.MustParseVersion(version), IsStable: true}
}

func TestNew_NilRegistry(t *testing.T) {
	_, err := catalog.New(nil)
	require.ErrorIs(t, err, domain.ErrNilRegistry)
}

func TestCatalog_VersionsAreSortedAndCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)
	metrics := mocks.NewMockMetrics(ctrl)

	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("http")).Return([]domain.ConnectorVersion{
		manifest("http", "1.5.0"),
		manifest("http", "1.0.0"),
		manifest("", "1.2.0"),
		manifest("http", "1.0.0"),
	}, nil).Times(1)
	metrics.EXPECT().ObserveRegistryFetch(ports.FetchMiss).Times(1)
	metrics.EXPECT().ObserveRegistryFetch(ports.FetchHit).Times(1)

	c, err := catalog.New(registry, catalog.WithMetrics(metrics))
	require.NoError(t, err)

	first, err := c.Versions(context.Background(), "http")
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "1.0.0", first[0].Version.String())
	assert.Equal(t, "1.2.0", first[1].Version.String())
	assert.Equal(t, domain.ConnectorID("http"), first[1].ConnectorID, "connector id is stamped")
	assert.Equal(t, "1.5.0", first[2].Version.String())

	second, err := c.Versions(context.Background(), "http")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCatalog_ConcurrentLookupsShareOneFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)

	release := make(chan struct{})
	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("slack")).
		DoAndReturn(func(context.Context, domain.ConnectorID) ([]domain.ConnectorVersion, error) {
			<-release
			return []domain.ConnectorVersion{manifest("slack", "2.0.0")}, nil
		}).Times(1)

	c, err := catalog.New(registry)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]domain.ConnectorVersion, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			versions, err := c.Versions(context.Background(), "slack")
			assert.NoError(t, err)
			results[i] = versions
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, versions := range results {
		require.Len(t, versions, 1)
		assert.Equal(t, "2.0.0", versions[0].Version.String())
	}
}

func TestCatalog_RetriesTransientErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	gomock.InOrder(
		registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("db")).Return(nil, errors.New("connection reset")),
		registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("db")).Return(
			[]domain.ConnectorVersion{manifest("db", "3.0.0")}, nil),
	)
	logger.EXPECT().Debug(gomock.Any()).Times(1)

	c, err := catalog.New(registry, catalog.WithRetryPolicy(fastRetry), catalog.WithLogger(logger))
	require.NoError(t, err)

	versions, err := c.Versions(context.Background(), "db")
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestCatalog_RetriesAreBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)

	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("db")).
		Return(nil, errors.New("503 service unavailable")).Times(3)

	c, err := catalog.New(registry, catalog.WithRetryPolicy(fastRetry))
	require.NoError(t, err)

	_, err = c.Versions(context.Background(), "db")
	require.ErrorIs(t, err, domain.ErrRegistryUnavailable)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "db", zErr.Metadata()["connector"])
	assert.Equal(t, 3, zErr.Metadata()["attempts"])
}

func TestCatalog_NotFoundIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)

	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("ghost")).
		Return(nil, domain.ErrConnectorNotFound).Times(1)

	c, err := catalog.New(registry, catalog.WithRetryPolicy(fastRetry))
	require.NoError(t, err)

	_, err = c.Versions(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrConnectorNotFound)
	assert.NotErrorIs(t, err, domain.ErrRegistryUnavailable)
}

func TestCatalog_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)
	registry.EXPECT().GetVersions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.ConnectorID) ([]domain.ConnectorVersion, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).AnyTimes()

	c, err := catalog.New(registry, catalog.WithRetryPolicy(fastRetry))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Versions(ctx, "slow")
	require.ErrorIs(t, err, context.Canceled)
}

func TestCatalog_TTLAndForget(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("http")).
		Return([]domain.ConnectorVersion{manifest("http", "1.0.0")}, nil).Times(3)

	c, err := catalog.New(registry, catalog.WithTTL(time.Minute), catalog.WithClock(clock))
	require.NoError(t, err)

	_, err = c.Versions(context.Background(), "http")
	require.NoError(t, err)
	_, err = c.Versions(context.Background(), "http")
	require.NoError(t, err, "served from cache")

	now = now.Add(2 * time.Minute)
	_, err = c.Versions(context.Background(), "http")
	require.NoError(t, err, "expired entry is fetched again")

	c.Forget("http")
	_, err = c.Versions(context.Background(), "http")
	require.NoError(t, err, "forgotten entry is fetched again")
}

func TestCatalog_Prefetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockManifestRegistry(ctrl)

	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("a")).
		Return([]domain.ConnectorVersion{manifest("a", "1.0.0")}, nil)
	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("missing")).
		Return(nil, zerr.Wrap(domain.ErrConnectorNotFound, "no such connector"))
	registry.EXPECT().GetVersions(gomock.Any(), domain.ConnectorID("b")).
		Return([]domain.ConnectorVersion{manifest("b", "2.0.0")}, nil)

	c, err := catalog.New(registry, catalog.WithPrefetchConcurrency(2))
	require.NoError(t, err)

	lookups := c.Prefetch(context.Background(), []domain.ConnectorID{"a", "missing", "b"})
	require.Len(t, lookups, 3)
	assert.Equal(t, domain.ConnectorID("a"), lookups[0].ConnectorID)
	require.NoError(t, lookups[0].Err)
	require.ErrorIs(t, lookups[1].Err, domain.ErrConnectorNotFound)
	assert.Equal(t, domain.ConnectorID("b"), lookups[2].ConnectorID)
	require.Len(t, lookups[2].Versions, 1)
}
