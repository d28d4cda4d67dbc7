// Package iojson writes command output as JSON: one compact object per line
// for streams, indented documents for single records.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteWith writes obj to w as indented JSON. A value that cannot be encoded
// is reported on ew as a JSON error object and is not treated as a failure.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, werr := fmt.Fprintln(ew, encodeFailure(err))
		return werr
	}

	_, err = fmt.Fprintf(w, "%s\n", bits)
	return err
}

// WriteLine writes obj as a single line of compact JSON to w.
func WriteLine(w io.Writer, obj any) error {
	bits, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s\n", bits)
	return err
}

func encodeFailure(cause error) string {
	bits, _ := json.Marshal(map[string]any{
		"message": "cannot encode output",
		"data":    map[string]string{"json_error": cause.Error()},
	})
	return string(bits)
}
