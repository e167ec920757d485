package defaults

import "time"

const (
	// DispatchTimeoutSeconds is the per-call timeout baked into generated stubs.
	DispatchTimeoutSeconds = 30
	// DialTimeout bounds establishing a node session (websocket + yamux + hello).
	DialTimeout = 10 * time.Second
	// HelloTimeout bounds reading the stream hello on an accepted stream.
	HelloTimeout = 5 * time.Second
	// MaxFrameBytes caps one length-prefixed JSON frame.
	MaxFrameBytes = 1 << 20
	// MaxHelloBytes caps the stream hello frame.
	MaxHelloBytes = 8 * 1024
)
