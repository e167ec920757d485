// Package streamhello is the greeting written first on every yamux stream,
// naming what the stream carries.
package streamhello

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/hyperware-ai/hyper-bindgen/framing/jsonframe"
	"github.com/hyperware-ai/hyper-bindgen/internal/defaults"
)

const (
	Version = 1
	// KindRPC marks a stream carrying rpc envelopes.
	KindRPC = "rpc"
)

var ErrBadHello = errors.New("bad stream hello")

type Hello struct {
	Kind string `json:"kind"`
	V    int    `json:"v"`
}

func Write(w io.Writer, kind string) error {
	return jsonframe.Write(w, Hello{Kind: kind, V: Version})
}

// Read reads and validates the greeting.
func Read(r io.Reader) (Hello, error) {
	b, err := jsonframe.Read(r, defaults.MaxHelloBytes)
	if err != nil {
		return Hello{}, err
	}
	var h Hello
	if err := json.Unmarshal(b, &h); err != nil {
		return Hello{}, ErrBadHello
	}
	if h.V != Version || h.Kind == "" {
		return Hello{}, ErrBadHello
	}
	return h, nil
}
