package cli

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"

	"github.com/hyp3rd/netlog/internal/constants"
)

// InspectResult summarizes a netlog file.
type InspectResult struct {
	Path          string         `json:"path"`
	Events        int            `json:"events"`
	ConstantKeys  []string       `json:"constant_keys"`
	EventTypes    map[string]int `json:"event_types"`
	HasPolledData bool           `json:"has_polled_data"`
}

type document struct {
	Constants  json.RawMessage   `json:"constants"`
	Events     []json.RawMessage `json:"events"`
	PolledData json.RawMessage   `json:"polledData"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <log-file>",
		Short: "Summarize a netlog file",
		Long: `Parse a finished netlog file, gzipped or not, and report the number of
events per type, the keys of the constants block and whether polled data
was recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := inspect(args[0])
			if err != nil {
				return err
			}

			return writeResult(rootOpts, cmd.OutOrStdout(), result, func(w io.Writer) error {
				return printInspect(w, result)
			})
		},
	}

	return cmd
}

func inspect(path string) (InspectResult, error) {
	//nolint:gosec // G304: the path is provided by the user on purpose.
	file, err := os.Open(path)
	if err != nil {
		return InspectResult{}, ewrap.Wrap(err, "opening netlog file").
			WithMetadata("path", path)
	}

	defer file.Close()

	var reader io.Reader = file

	if strings.HasSuffix(path, constants.CompressedExt) {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return InspectResult{}, ewrap.Wrap(err, "opening gzip stream").
				WithMetadata("path", path)
		}

		defer gz.Close()

		reader = gz
	}

	var doc document

	err = json.NewDecoder(reader).Decode(&doc)
	if err != nil {
		return InspectResult{}, ewrap.Wrap(err, "decoding netlog file").
			WithMetadata("path", path)
	}

	result := InspectResult{
		Path:          path,
		Events:        len(doc.Events),
		ConstantKeys:  constantKeys(doc.Constants),
		EventTypes:    make(map[string]int),
		HasPolledData: len(doc.PolledData) > 0 && string(doc.PolledData) != "null",
	}

	for _, raw := range doc.Events {
		var event struct {
			Type string `json:"type"`
		}

		if json.Unmarshal(raw, &event) != nil || event.Type == "" {
			result.EventTypes["(untyped)"]++

			continue
		}

		result.EventTypes[event.Type]++
	}

	return result, nil
}

// constantKeys lists the sorted keys of the header. Headers that are not JSON
// objects have no keys.
func constantKeys(raw json.RawMessage) []string {
	var members map[string]json.RawMessage

	if json.Unmarshal(raw, &members) != nil {
		return []string{}
	}

	keys := make([]string, 0, len(members))
	for key := range members {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func printInspect(w io.Writer, result InspectResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n  events:      %d\n  constants:   %s\n  polled data: %t\n",
		result.Path, result.Events, strings.Join(result.ConstantKeys, ", "), result.HasPolledData)

	types := make([]string, 0, len(result.EventTypes))
	for eventType := range result.EventTypes {
		types = append(types, eventType)
	}

	slices.Sort(types)

	for _, eventType := range types {
		fmt.Fprintf(&b, "    %-24s %d\n", eventType, result.EventTypes[eventType])
	}

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return ewrap.Wrap(err, "writing output")
	}

	return nil
}
