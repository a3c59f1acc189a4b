package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"

	"github.com/hyp3rd/netlog/internal/filewriter"
)

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	var fileMode uint32

	cmd := &cobra.Command{
		Use:   "recover <log-file>",
		Short: "Assemble a bounded session that never stopped",
		Long: `Assemble <log-file> from <log-file>.inprogress, the staging directory of a
bounded session whose process exited before stopping.

Event files are stitched in rotation order, or oldest first by modification
time when the ring position was not recorded. An event cut short by the crash
is dropped. A missing header or footer is replaced by an empty one, so the
result is always valid JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rootOpts.Logger().WithField("path", args[0])
			logger.Debug("recovering netlog session")

			result, err := filewriter.Recover(args[0], os.FileMode(fileMode))
			if err != nil {
				return err
			}

			if !result.HadFooter {
				logger.Warn("session ended without a footer")
			}

			if result.DroppedBytes > 0 {
				logger.WithField("dropped_bytes", result.DroppedBytes).Warn("dropped a partially written event")
			}

			return writeResult(rootOpts, cmd.OutOrStdout(), result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "recovered %s\n  event files: %d\n  event bytes: %d\n  dropped:     %d\n  order:       %s\n  header:      %s\n  footer:      %s\n",
					result.Path, result.EventFiles, result.EventBytes, result.DroppedBytes,
					ordering(result.RingOrdered), presence(result.HadConstants), presence(result.HadFooter))
				if err != nil {
					return ewrap.Wrap(err, "writing output")
				}

				return nil
			})
		},
	}

	cmd.Flags().Uint32Var(&fileMode, "file-mode", 0o600, "permissions of the recovered file")

	return cmd
}

func presence(found bool) string {
	if found {
		return "found"
	}

	return "synthesized"
}

func ordering(ringOrdered bool) string {
	if ringOrdered {
		return "ring position"
	}

	return "modification time"
}
