// Package yamux creates the multiplexed sessions node connections run on.
package yamux

import (
	"io"
	"net"
	"time"

	"github.com/hashicorp/yamux"
)

// Config returns the session config used for node sessions: yamux defaults
// with library logging silenced and keepalives every keepAlive (0 keeps the
// default interval).
func Config(keepAlive time.Duration) *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.LogOutput = io.Discard
	if keepAlive > 0 {
		cfg.KeepAliveInterval = keepAlive
	}
	return cfg
}

// NewClient creates a yamux client session; a nil cfg selects Config(0).
func NewClient(conn net.Conn, cfg *yamux.Config) (*yamux.Session, error) {
	if cfg == nil {
		cfg = Config(0)
	}
	return yamux.Client(conn, cfg)
}

// NewServer creates a yamux server session; a nil cfg selects Config(0).
func NewServer(conn net.Conn, cfg *yamux.Config) (*yamux.Session, error) {
	if cfg == nil {
		cfg = Config(0)
	}
	return yamux.Server(conn, cfg)
}
