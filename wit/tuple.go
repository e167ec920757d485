package wit

import (
	"encoding/json"
	"fmt"
)

// Tuples marshal as JSON arrays with one element per field, in order.

type Tuple1[T0 any] struct {
	V0 T0
}

type Tuple2[T0, T1 any] struct {
	V0 T0
	V1 T1
}

type Tuple3[T0, T1, T2 any] struct {
	V0 T0
	V1 T1
	V2 T2
}

type Tuple4[T0, T1, T2, T3 any] struct {
	V0 T0
	V1 T1
	V2 T2
	V3 T3
}

type Tuple5[T0, T1, T2, T3, T4 any] struct {
	V0 T0
	V1 T1
	V2 T2
	V3 T3
	V4 T4
}

type Tuple6[T0, T1, T2, T3, T4, T5 any] struct {
	V0 T0
	V1 T1
	V2 T2
	V3 T3
	V4 T4
	V5 T5
}

type Tuple7[T0, T1, T2, T3, T4, T5, T6 any] struct {
	V0 T0
	V1 T1
	V2 T2
	V3 T3
	V4 T4
	V5 T5
	V6 T6
}

type Tuple8[T0, T1, T2, T3, T4, T5, T6, T7 any] struct {
	V0 T0
	V1 T1
	V2 T2
	V3 T3
	V4 T4
	V5 T5
	V6 T6
	V7 T7
}

func (t Tuple1[T0]) MarshalJSON() ([]byte, error) { return json.Marshal([]any{t.V0}) }
func (t *Tuple1[T0]) UnmarshalJSON(b []byte) error { return unmarshalTuple(b, &t.V0) }

func (t Tuple2[T0, T1]) MarshalJSON() ([]byte, error) { return json.Marshal([]any{t.V0, t.V1}) }
func (t *Tuple2[T0, T1]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1)
}

func (t Tuple3[T0, T1, T2]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.V0, t.V1, t.V2})
}
func (t *Tuple3[T0, T1, T2]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1, &t.V2)
}

func (t Tuple4[T0, T1, T2, T3]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.V0, t.V1, t.V2, t.V3})
}
func (t *Tuple4[T0, T1, T2, T3]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1, &t.V2, &t.V3)
}

func (t Tuple5[T0, T1, T2, T3, T4]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.V0, t.V1, t.V2, t.V3, t.V4})
}
func (t *Tuple5[T0, T1, T2, T3, T4]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1, &t.V2, &t.V3, &t.V4)
}

func (t Tuple6[T0, T1, T2, T3, T4, T5]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.V0, t.V1, t.V2, t.V3, t.V4, t.V5})
}
func (t *Tuple6[T0, T1, T2, T3, T4, T5]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1, &t.V2, &t.V3, &t.V4, &t.V5)
}

func (t Tuple7[T0, T1, T2, T3, T4, T5, T6]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.V0, t.V1, t.V2, t.V3, t.V4, t.V5, t.V6})
}
func (t *Tuple7[T0, T1, T2, T3, T4, T5, T6]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1, &t.V2, &t.V3, &t.V4, &t.V5, &t.V6)
}

func (t Tuple8[T0, T1, T2, T3, T4, T5, T6, T7]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.V0, t.V1, t.V2, t.V3, t.V4, t.V5, t.V6, t.V7})
}
func (t *Tuple8[T0, T1, T2, T3, T4, T5, T6, T7]) UnmarshalJSON(b []byte) error {
	return unmarshalTuple(b, &t.V0, &t.V1, &t.V2, &t.V3, &t.V4, &t.V5, &t.V6, &t.V7)
}

func unmarshalTuple(b []byte, dst ...any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("tuple: expected %d elements, got %d", len(dst), len(raw))
	}
	for i, r := range raw {
		if err := decodeValue(r, dst[i]); err != nil {
			return fmt.Errorf("tuple element %d: %w", i, err)
		}
	}
	return nil
}
