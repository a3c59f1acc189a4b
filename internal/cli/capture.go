package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hyp3rd/ewrap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hyp3rd/netlog"
	"github.com/hyp3rd/netlog/internal/constants"
	"github.com/hyp3rd/netlog/pkg/configloader"
	"github.com/hyp3rd/netlog/pkg/metrics"
)

// CaptureOptions holds the flags of the capture command.
type CaptureOptions struct {
	ConfigFile     string
	Events         int
	MaxTotalSize   int64
	NumEventFiles  int
	FlushThreshold int
	CaptureMode    string
	Compress       bool
	Metrics        bool
}

// CaptureResult is printed once the capture completes.
type CaptureResult struct {
	Path    string       `json:"path"`
	Bounded bool         `json:"bounded"`
	Events  int          `json:"events"`
	Stats   netlog.Stats `json:"stats"`
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{}

	cmd := &cobra.Command{
		Use:   "capture <output>",
		Short: "Record a synthetic session",
		Long: `Record a synthetic session of begin/end event pairs into a netlog file.

Settings are read from --config (YAML, NETLOG_* environment overrides) and
then from the flags given on the command line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := captureConfig(cmd, opts, args[0])
			if err != nil {
				return err
			}

			cfg.Logger = rootOpts.Logger()

			registry := prometheus.NewRegistry()

			if opts.Metrics {
				recorder, err := metrics.NewPrometheus(registry, "", "netlogctl")
				if err != nil {
					return err
				}

				cfg.Metrics = recorder
			}

			result, err := runCapture(cmd.Context(), cfg, opts.Events)
			if err != nil {
				return err
			}

			err = writeResult(rootOpts, cmd.OutOrStdout(), result, func(w io.Writer) error {
				return printCapture(w, result)
			})
			if err != nil || !opts.Metrics {
				return err
			}

			// Metrics go to stderr so that JSON output stays parseable.
			return metrics.WriteText(cmd.ErrOrStderr(), registry)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML configuration file")
	cmd.Flags().IntVarP(&opts.Events, "events", "n", 1000, "number of events to record")
	cmd.Flags().Int64Var(&opts.MaxTotalSize, "max-total-size", 0, "bytes kept on disk, 0 for unbounded")
	cmd.Flags().IntVar(&opts.NumEventFiles, "num-files", netlog.DefaultNumEventFiles, "rotation slots in bounded mode")
	cmd.Flags().IntVar(&opts.FlushThreshold, "flush-threshold", netlog.DefaultFlushThreshold, "queue length that triggers a flush")
	cmd.Flags().StringVar(&opts.CaptureMode, "capture-mode", "default", "capture mode (default|include_sensitive|everything)")
	cmd.Flags().BoolVar(&opts.Compress, "compress", false, "gzip the final log")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics of the session to stderr")

	return cmd
}

func captureConfig(cmd *cobra.Command, opts *CaptureOptions, path string) (netlog.Config, error) {
	cfg := netlog.DefaultConfig(path)

	if opts.ConfigFile != "" {
		loaded, err := configloader.FromFile(opts.ConfigFile)
		if err != nil {
			return netlog.Config{}, err
		}

		cfg = *loaded
		cfg.Path = path
	}

	flags := cmd.Flags()

	if flags.Changed("max-total-size") {
		cfg.MaxTotalSize = opts.MaxTotalSize
		if cfg.MaxTotalSize == 0 {
			cfg.MaxTotalSize = netlog.NoLimit
		}
	}

	if flags.Changed("num-files") {
		cfg.NumEventFiles = opts.NumEventFiles
	}

	if flags.Changed("flush-threshold") {
		cfg.FlushThreshold = opts.FlushThreshold
	}

	if flags.Changed("capture-mode") {
		mode, err := netlog.ParseCaptureMode(opts.CaptureMode)
		if err != nil {
			return netlog.Config{}, err
		}

		cfg.CaptureMode = mode
	}

	if flags.Changed("compress") {
		cfg.Compress = opts.Compress
	}

	if opts.Events < 0 {
		return netlog.Config{}, ewrap.New("events must not be negative").
			WithMetadata("events", opts.Events)
	}

	return cfg, cfg.Validate()
}

// runCapture records events synthetic entries: a begin and an end entry for
// every request, plus a sensitive entry only kept by wider capture modes.
func runCapture(ctx context.Context, cfg netlog.Config, events int) (CaptureResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	observer, err := netlog.New(cfg)
	if err != nil {
		return CaptureResult{}, err
	}

	defer observer.Close()

	bus := netlog.NewBus()

	err = observer.Start(bus)
	if err != nil {
		return CaptureResult{}, err
	}

	for i := range events {
		entry := netlog.Entry{
			Type:   "SYNTHETIC_REQUEST",
			Source: netlog.EntrySource{ID: uint64(i/2 + 1), Type: "CAPTURE"},
			Phase:  netlog.PhaseBegin,
			Params: map[string]any{"index": i},
		}

		switch i % 3 {
		case 1:
			entry.Phase = netlog.PhaseEnd
		case 2:
			entry.Type = "SYNTHETIC_HEADERS"
			entry.Phase = netlog.PhaseNone
			entry.Mode = netlog.CaptureModeIncludeSensitive
		}

		bus.AddEntry(entry)
	}

	stopCtx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	err = observer.Stop(stopCtx, map[string]any{"capture": map[string]any{"events": events}})
	if err != nil {
		return CaptureResult{}, err
	}

	// Close waits for the background goroutine, making Stats final.
	observer.Close()

	path := cfg.Path
	if cfg.Compress {
		path += constants.CompressedExt
	}

	return CaptureResult{
		Path:    path,
		Bounded: cfg.IsBounded(),
		Events:  events,
		Stats:   observer.Stats(),
	}, nil
}

func printCapture(w io.Writer, result CaptureResult) error {
	mode := "unbounded"
	if result.Bounded {
		mode = "bounded"
	}

	_, err := fmt.Fprintf(w,
		"wrote %s (%s)\n  published: %d\n  queued:    %d\n  evicted:   %d\n  dropped:   %d\n  flushes:   %d\n  bytes:     %d\n  rotations: %d\n",
		result.Path, mode, result.Events,
		result.Stats.Queued, result.Stats.Evicted, result.Stats.RenderDropped,
		result.Stats.Flushes, result.Stats.BytesWritten, result.Stats.Rotations)
	if err != nil {
		return ewrap.Wrap(err, "writing output")
	}

	return nil
}
