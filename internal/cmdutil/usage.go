package cmdutil

import (
	"encoding/json"
	"errors"
	"io"
)

// UsageError marks a usage or configuration error (exit code 2).
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// IsUsage reports whether err is a UsageError, directly or wrapped.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// WriteJSON writes v as JSON to w, followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
