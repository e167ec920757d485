// Package jsonframe reads and writes JSON messages prefixed with a 4-byte
// big-endian length.
package jsonframe

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"

	"github.com/hyperware-ai/hyper-bindgen/internal/defaults"
)

var ErrFrameTooLarge = errors.New("json frame too large")

// DefaultMaxBytes is the frame cap used when callers pass no limit of their own.
const DefaultMaxBytes = defaults.MaxFrameBytes

// Write marshals v and writes it as one frame. Header and body go out in a
// single Write so concurrent writers on a locked stream never interleave.
func Write(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(b)))
	copy(buf[4:], b)
	_, err = w.Write(buf)
	return err
}

// Read reads one frame body. maxLen <= 0 selects DefaultMaxBytes.
func Read(r io.Reader, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxBytes
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(maxLen) {
		return nil, ErrFrameTooLarge
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadInto reads one frame and decodes it into v.
func ReadInto(r io.Reader, maxLen int, v any) error {
	b, err := Read(r, maxLen)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
