package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/propgeo/internal/geocoding"
	"github.com/UnknownOlympus/propgeo/internal/metrics"
	"github.com/UnknownOlympus/propgeo/internal/models"
)

// Progress receives one tick per processed property name.
type Progress interface {
	Add(num int) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// LookupService geocodes an ordered list of property names one at a time,
// caching successful matches for the duration of a run and pausing between
// provider requests.
type LookupService struct {
	log          *slog.Logger       // Logger for logging service activities
	provider     geocoding.Provider // Geocoding provider for external geocoding services
	providerName string             // Name of the provider for metrics labeling
	metrics      *metrics.Metrics   // Metrics for tracking service performance
	pause        time.Duration      // Pause after each provider request
	diag         io.Writer          // Destination of per-name diagnostics
	progress     Progress           // Optional progress reporter
	sleep        SleepFunc          // Pause implementation
}

// Option customizes a LookupService.
type Option func(*LookupService)

// WithProgress reports each processed name to p.
func WithProgress(p Progress) Option {
	return func(ls *LookupService) {
		ls.progress = p
	}
}

// WithSleep replaces the pause implementation.
func WithSleep(fn SleepFunc) Option {
	return func(ls *LookupService) {
		ls.sleep = fn
	}
}

// NewLookupService creates a new instance of LookupService.
// Diagnostics about names without results are written to diag, one line each.
func NewLookupService(
	log *slog.Logger,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	pause time.Duration,
	diag io.Writer,
	opts ...Option,
) *LookupService {
	ls := &LookupService{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
		pause:        pause,
		diag:         diag,
		sleep:        Sleep,
	}
	for _, opt := range opts {
		opt(ls)
	}

	return ls
}

// Run geocodes names in order and returns the matches in the same order.
//
// A name seen earlier in the run is answered from the cache without a request
// or a pause. Otherwise the provider is queried and the service pauses
// afterwards, whether or not a match was found. Names without a match are
// reported to the diagnostics writer and skipped. Misses are not cached. Any
// other provider error aborts the run and discards the collected results.
func (ls *LookupService) Run(ctx context.Context, names []string) ([]*models.Place, error) {
	cache := make(map[string]*models.Place)
	results := make([]*models.Place, 0, len(names))

	ls.log.InfoContext(ctx, "Lookup started", "names", len(names), "provider", ls.providerName)

	for idx, name := range names {
		if place, ok := cache[name]; ok {
			ls.log.DebugContext(ctx, "Cache hit", "index", idx, "query", place.Query, "label", place.Label())
			ls.metrics.LookupsTotal.WithLabelValues(metrics.StatusCacheHit).Inc()
			results = append(results, place)
			ls.tick(ctx)
			continue
		}

		place, err := ls.geocode(ctx, name)
		switch {
		case err == nil:
			ls.log.DebugContext(ctx, "Geocoded", "index", idx, "query", place.Query,
				"label", place.Label(), "lat", place.Lat.String(), "lon", place.Lon.String())
			ls.metrics.LookupsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
			cache[name] = place
			results = append(results, place)
		case errors.Is(err, geocoding.ErrNotFound):
			ls.log.DebugContext(ctx, "No match", "index", idx, "query", name)
			ls.metrics.LookupsTotal.WithLabelValues(metrics.StatusNotFound).Inc()
			if _, werr := fmt.Fprintln(ls.diag, err.Error()); werr != nil {
				ls.log.WarnContext(ctx, "Failed to write diagnostic", "error", werr)
			}
		default:
			ls.metrics.LookupsTotal.WithLabelValues(metrics.StatusError).Inc()
			ls.metrics.APIErrors.Inc()
			ls.log.ErrorContext(ctx, "Failed to geocode", "index", idx, "query", name, "error", err)
			return nil, fmt.Errorf("geocode %q: %w", name, err)
		}
		ls.tick(ctx)

		if err = ls.wait(ctx); err != nil {
			return nil, err
		}
	}

	ls.log.InfoContext(ctx, "Lookup finished", "names", len(names), "results", len(results))

	return results, nil
}

func (ls *LookupService) geocode(ctx context.Context, name string) (*models.Place, error) {
	startTime := time.Now()
	place, err := ls.provider.Geocode(ctx, name)
	duration := time.Since(startTime).Seconds()
	ls.metrics.RequestSeconds.WithLabelValues(ls.providerName).Observe(duration)

	return place, err
}

func (ls *LookupService) wait(ctx context.Context) error {
	if ls.pause <= 0 {
		return nil
	}

	if err := ls.sleep(ctx, ls.pause); err != nil {
		return fmt.Errorf("pause interrupted: %w", err)
	}
	ls.metrics.PauseSeconds.Add(ls.pause.Seconds())

	return nil
}

func (ls *LookupService) tick(ctx context.Context) {
	if ls.progress == nil {
		return
	}
	if err := ls.progress.Add(1); err != nil {
		ls.log.DebugContext(ctx, "Failed to update progress", "error", err)
	}
}

// Sleep blocks for d or until ctx is canceled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
