package service_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/UnknownOlympus/propgeo/internal/geocoding"
	"github.com/UnknownOlympus/propgeo/internal/metrics"
	"github.com/UnknownOlympus/propgeo/internal/models"
	"github.com/UnknownOlympus/propgeo/internal/service"
	"github.com/UnknownOlympus/propgeo/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

type progressCounter struct {
	ticks int
}

func (p *progressCounter) Add(num int) error {
	p.ticks += num
	return nil
}

func newTestService(
	t *testing.T,
	pause time.Duration,
	opts ...service.Option,
) (*service.LookupService, *mocks.Provider, *metrics.Metrics, *bytes.Buffer) {
	t.Helper()

	provider := mocks.NewProvider(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	diag := &bytes.Buffer{}

	svc := service.NewLookupService(logger, provider, "nominatim", appMetrics, pause, diag, opts...)

	return svc, provider, appMetrics, diag
}

func TestLookupService_Run(t *testing.T) {
	placeA := &models.Place{Query: "A", DisplayName: "A Street, Austin, TX", Lat: "30.1", Lon: "-97.1"}
	placeB := &models.Place{Query: "B", DisplayName: "B Street, Austin, TX", Lat: "30.2", Lon: "-97.2"}

	t.Run("repeated name hits the cache", func(t *testing.T) {
		sleeps := &sleepRecorder{}
		progress := &progressCounter{}
		svc, provider, appMetrics, diag := newTestService(t, time.Second,
			service.WithSleep(sleeps.sleep), service.WithProgress(progress))
		ctx := context.Background()

		provider.On("Geocode", ctx, "A").Return(placeA, nil).Once()
		provider.On("Geocode", ctx, "B").Return(placeB, nil).Once()

		results, err := svc.Run(ctx, []string{"A", "B", "A"})

		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Same(t, placeA, results[0])
		assert.Same(t, placeB, results[1])
		assert.Equal(t, results[0], results[2])
		assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps.calls)
		assert.Equal(t, 3, progress.ticks)
		assert.Empty(t, diag.String())
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.LookupsTotal.WithLabelValues(metrics.StatusCacheHit)), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(appMetrics.LookupsTotal.WithLabelValues(metrics.StatusSuccess)), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(appMetrics.PauseSeconds), 0)
	})

	t.Run("debug log names the query behind each match", func(t *testing.T) {
		var logs bytes.Buffer
		provider := mocks.NewProvider(t)
		logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		svc := service.NewLookupService(logger, provider, "nominatim",
			metrics.NewMetrics(prometheus.NewRegistry()), 0, &bytes.Buffer{})
		ctx := context.Background()

		provider.On("Geocode", ctx, "A").Return(placeA, nil).Once()

		_, err := svc.Run(ctx, []string{"A", "A"})

		require.NoError(t, err)
		assert.Contains(t, logs.String(), `msg=Geocoded index=0 query=A label="A Street, Austin, TX" lat=30.1 lon=-97.1`)
		assert.Contains(t, logs.String(), `msg="Cache hit" index=1 query=A`)
	})

	t.Run("miss is reported and processing continues", func(t *testing.T) {
		sleeps := &sleepRecorder{}
		svc, provider, appMetrics, diag := newTestService(t, time.Second, service.WithSleep(sleeps.sleep))
		ctx := context.Background()

		provider.On("Geocode", ctx, "Nowhere").Return(nil, geocoding.NotFound("Nowhere")).Once()
		provider.On("Geocode", ctx, "B").Return(placeB, nil).Once()

		results, err := svc.Run(ctx, []string{"Nowhere", "B"})

		require.NoError(t, err)
		assert.Equal(t, []*models.Place{placeB}, results)
		assert.Equal(t, "No results for 'Nowhere'.\n", diag.String())
		assert.Len(t, sleeps.calls, 2, "a miss still pauses")
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.LookupsTotal.WithLabelValues(metrics.StatusNotFound)), 0)
	})

	t.Run("misses are not cached", func(t *testing.T) {
		svc, provider, _, diag := newTestService(t, 0)
		ctx := context.Background()

		provider.On("Geocode", ctx, "Nowhere").Return(nil, geocoding.NotFound("Nowhere")).Twice()

		results, err := svc.Run(ctx, []string{"Nowhere", "Nowhere"})

		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Equal(t, "No results for 'Nowhere'.\nNo results for 'Nowhere'.\n", diag.String())
	})

	t.Run("zero pause never sleeps", func(t *testing.T) {
		sleeps := &sleepRecorder{}
		svc, provider, _, _ := newTestService(t, 0, service.WithSleep(sleeps.sleep))
		ctx := context.Background()

		provider.On("Geocode", ctx, "A").Return(placeA, nil).Once()
		provider.On("Geocode", ctx, "B").Return(placeB, nil).Once()
		provider.On("Geocode", ctx, "C").Return(&models.Place{DisplayName: "C"}, nil).Once()

		start := time.Now()
		results, err := svc.Run(ctx, []string{"A", "B", "C"})

		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.Empty(t, sleeps.calls)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("pause follows the last request too", func(t *testing.T) {
		svc, provider, _, _ := newTestService(t, 20*time.Millisecond)
		ctx := context.Background()

		provider.On("Geocode", ctx, "A").Return(placeA, nil).Once()
		provider.On("Geocode", ctx, "B").Return(placeB, nil).Once()

		start := time.Now()
		_, err := svc.Run(ctx, []string{"A", "B"})

		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("empty name list", func(t *testing.T) {
		svc, _, _, diag := newTestService(t, time.Second)

		results, err := svc.Run(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Empty(t, diag.String())
	})

	t.Run("transport error aborts the run", func(t *testing.T) {
		sleeps := &sleepRecorder{}
		svc, provider, appMetrics, _ := newTestService(t, time.Second, service.WithSleep(sleeps.sleep))
		ctx := context.Background()

		provider.On("Geocode", ctx, "A").Return(placeA, nil).Once()
		provider.On("Geocode", ctx, "B").Return(nil, assert.AnError).Once()

		results, err := svc.Run(ctx, []string{"A", "B", "C"})

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, results)
		assert.Len(t, sleeps.calls, 1)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.APIErrors), 0)
	})

	t.Run("cancelled pause aborts the run", func(t *testing.T) {
		svc, provider, _, _ := newTestService(t, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())

		provider.On("Geocode", ctx, "A").Run(func(_ mock.Arguments) { cancel() }).Return(placeA, nil).Once()

		results, err := svc.Run(ctx, []string{"A", "B"})

		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, results)
	})
}

func TestSleep(t *testing.T) {
	t.Run("waits for the duration", func(t *testing.T) {
		start := time.Now()

		require.NoError(t, service.Sleep(context.Background(), 10*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := service.Sleep(ctx, time.Hour)

		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
