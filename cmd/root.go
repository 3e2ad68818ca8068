package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/UnknownOlympus/propgeo/internal/config"
	"github.com/UnknownOlympus/propgeo/internal/geocoding"
	"github.com/UnknownOlympus/propgeo/internal/input"
	"github.com/UnknownOlympus/propgeo/internal/metrics"
	"github.com/UnknownOlympus/propgeo/internal/models"
	"github.com/UnknownOlympus/propgeo/internal/output"
	"github.com/UnknownOlympus/propgeo/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// errReported marks a failure whose message has already been written to stderr.
var errReported = errors.New("reported")

// streams are the process's standard streams plus what is known about them.
type streams struct {
	in          io.Reader
	out         io.Writer
	err         io.Writer
	interactive bool // stdin is a terminal
	progress    bool // stderr is a terminal that can show a progress bar
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, s streams) int {
	cmd := newRootCmd(s)
	cmd.SetArgs(args)
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(s.err, "Error:", err)
		}
		return 1
	}

	return 0
}

func newRootCmd(s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propgeo [flags] [property ...]",
		Short: "Geocode property names using Nominatim (OpenStreetMap)",
		Long: `propgeo looks up property names and writes the best matching address and
coordinates of each as CSV.

Names are read from --file, else from the positional arguments, else from
standard input when it is not a terminal.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, args, s)
		},
	}
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, args []string, s streams) error {
	cfg, err := config.Load(cmd.Flags(), args)
	if err != nil {
		fmt.Fprintf(s.err, "Invalid configuration: %v\n", err)
		return errReported
	}

	logger := setupLogger(cfg.Env, s.err)

	names, err := input.Collect(input.Source{
		File:        cfg.File,
		Args:        cfg.Properties,
		Stdin:       s.in,
		Interactive: s.interactive,
	})
	if err != nil {
		fmt.Fprintln(s.err, inputFailure(err, cfg.File))
		return errReported
	}

	// Create a separate registry for the run's metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)
	if cfg.MetricsFile != "" {
		defer writeMetrics(ctx, logger, cfg.MetricsFile, reg)
	}

	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Provider),
		APIKey:    cfg.APIKey,
		Endpoint:  cfg.Endpoint,
		UserAgent: cfg.UserAgent,
		Country:   cfg.Country,
		Language:  cfg.Language,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(s.err, "Failed to create geocoding provider: %v\n", err)
		return errReported
	}

	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Provider, "country", cfg.Country)

	var opts []service.Option
	var bar *progressbar.ProgressBar
	if s.progress && len(names) > 0 {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(s.err),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts, service.WithProgress(bar))
	}

	lookup := service.NewLookupService(logger, provider, cfg.Provider, appMetrics, cfg.Pause, s.err, opts...)
	results, err := lookup.Run(ctx, names)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		fmt.Fprintf(s.err, "Geocoding failed: %v\n", err)
		return errReported
	}

	if len(results) == 0 {
		fmt.Fprintln(s.err, "No properties were successfully geocoded.")
		return errReported
	}

	if err = writeResults(cfg.Output, s.out, results); err != nil {
		fmt.Fprintf(s.err, "Failed to write output: %v\n", err)
		return errReported
	}
	appMetrics.ResultsWritten.Set(float64(len(results)))

	return nil
}

// inputFailure renders an error from collecting property names as the
// message shown to the user.
func inputFailure(err error, file string) string {
	switch {
	case errors.Is(err, input.ErrFileNotFound):
		return "Property file not found: " + file
	case errors.Is(err, input.ErrNoInput):
		return "No properties provided. Use --file, positional arguments, or pipe input."
	default:
		return fmt.Sprintf("Failed to read properties: %v", err)
	}
}

func writeResults(path string, stdout io.Writer, results []*models.Place) error {
	if path == "" {
		return output.WriteCSV(stdout, results)
	}

	return output.WriteFile(path, results)
}

func writeMetrics(ctx context.Context, logger *slog.Logger, path string, reg *prometheus.Registry) {
	if err := metrics.WriteTextfile(path, reg); err != nil {
		logger.ErrorContext(ctx, "Failed to write metrics", "error", err)
	}
}
