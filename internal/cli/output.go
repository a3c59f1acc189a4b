package cli

import (
	"encoding/json"
	"io"

	"github.com/hyp3rd/ewrap"
)

// writeResult prints data as indented JSON, or through text otherwise.
func writeResult(opts *RootOptions, w io.Writer, data any, text func(io.Writer) error) error {
	if opts.Format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(data)
		if err != nil {
			return ewrap.Wrap(err, "encoding output")
		}

		return nil
	}

	return text(w)
}
