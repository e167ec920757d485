package wit

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Result is the Go form of a WIT result<T, E>. On the wire it is an
// externally tagged object: {"Ok": value} or {"Err": value}.
//
// A Result is a value returned by the remote operation. Whether the call
// itself went through is reported separately by the stub's error return.
type Result[T, E any] struct {
	ok    bool
	value T
	err   E
}

// Ok returns a successful Result holding v.
func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{ok: true, value: v}
}

// Err returns a failed Result holding e.
func Err[T, E any](e E) Result[T, E] {
	return Result[T, E]{err: e}
}

func (r Result[T, E]) IsOk() bool { return r.ok }

// Value returns the success value and whether r is Ok.
func (r Result[T, E]) Value() (T, bool) { return r.value, r.ok }

// Error returns the error value and whether r is Err.
func (r Result[T, E]) Error() (E, bool) { return r.err, !r.ok }

type resultWire struct {
	Ok  json.RawMessage `json:"Ok,omitempty"`
	Err json.RawMessage `json:"Err,omitempty"`
}

var errResultShape = errors.New("result: expected exactly one of Ok or Err")

func (r Result[T, E]) MarshalJSON() ([]byte, error) {
	if r.ok {
		b, err := encodeValue(r.value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resultWire{Ok: b})
	}
	b, err := encodeValue(r.err)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resultWire{Err: b})
}

var null = json.RawMessage("null")

// encodeValue writes the unit type as null, matching {"Ok": null} on the wire.
func encodeValue(v any) (json.RawMessage, error) {
	if _, unit := v.(struct{}); unit {
		return null, nil
	}
	return json.Marshal(v)
}

func (r *Result[T, E]) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	okRaw, hasOk := fields["Ok"]
	errRaw, hasErr := fields["Err"]
	if hasOk == hasErr || len(fields) != 1 {
		return errResultShape
	}
	var out Result[T, E]
	if hasOk {
		out.ok = true
		if err := decodeValue(okRaw, &out.value); err != nil {
			return err
		}
	} else if err := decodeValue(errRaw, &out.err); err != nil {
		return err
	}
	*r = out
	return nil
}

// decodeValue treats null as the zero value so unit payloads ({"Ok": null})
// decode into struct{}.
func decodeValue(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
