// Package cli implements the netlogctl command: capture a synthetic session,
// recover an abandoned bounded session and inspect a finished log.
package cli

import (
	"slices"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"

	"github.com/hyp3rd/netlog/pkg/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	logger log.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for netlogctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "netlogctl",
		Short: "Capture, recover and inspect netlog files",
		Long: `netlogctl works with the JSON event logs written by netlog file observers.

It can record a synthetic session, assemble the staging directory left behind
by a bounded session that never stopped, and summarize a finished log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return ewrap.New("invalid output format").
					WithMetadata("format", opts.Format).
					WithMetadata("valid", ValidFormats)
			}

			environment := "production"
			if opts.Verbose {
				environment = log.NonProductionEnvironment
			}

			opts.logger = log.New(environment, cmd.Root().Name(), cmd.ErrOrStderr())

			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.logger == nil {
				return nil
			}

			return opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose diagnostics on stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewRecoverCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// Logger returns the diagnostic logger, a no-op before the command runs.
func (o *RootOptions) Logger() log.Logger {
	if o.logger == nil {
		return log.NewNoop()
	}

	return o.logger
}
