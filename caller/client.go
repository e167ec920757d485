package caller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/hyperware-ai/hyper-bindgen/internal/contextutil"
	"github.com/hyperware-ai/hyper-bindgen/internal/defaults"
	"github.com/hyperware-ai/hyper-bindgen/internal/logging"
	muxyamux "github.com/hyperware-ai/hyper-bindgen/mux/yamux"
	"github.com/hyperware-ai/hyper-bindgen/observability"
	"github.com/hyperware-ai/hyper-bindgen/realtime/ws"
	"github.com/hyperware-ai/hyper-bindgen/rpc"
	"github.com/hyperware-ai/hyper-bindgen/streamhello"
	"github.com/hyperware-ai/hyper-bindgen/wit"
)

// Resolver maps a node name to the websocket URL its handler listens on.
type Resolver interface {
	Resolve(ctx context.Context, node string) (string, error)
}

type ResolverFunc func(ctx context.Context, node string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, node string) (string, error) { return f(ctx, node) }

// StaticResolver is a fixed node -> URL table. Unknown nodes are offline.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, node string) (string, error) {
	u, ok := r[node]
	if !ok {
		return "", fmt.Errorf("%w: unknown node %q", ErrOffline, node)
	}
	return u, nil
}

type ClientOptions struct {
	Resolver Resolver
	Observer observability.RPCObserver
	Logger   *slog.Logger
	Header   http.Header

	// DialTimeout bounds connecting a node session; 0 selects the default.
	DialTimeout time.Duration
	// KeepAlive is the yamux keepalive interval; 0 keeps the yamux default.
	KeepAlive     time.Duration
	MaxFrameBytes int
}

// Client is a Dispatcher holding one session per node. A session is a
// websocket carrying a yamux client with a single rpc stream; sessions that
// break are dropped and redialed on the next call.
type Client struct {
	opts ClientOptions
	obs  *observability.AtomicRPCObserver
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
}

type sessionEntry struct {
	ready chan struct{}
	s     *session
	err   error
}

type session struct {
	node string
	conn *ws.Conn
	mux  *yamux.Session
	rpc  *rpc.Client
}

func (s *session) close() {
	_ = s.rpc.Close()
	_ = s.mux.Close()
	_ = s.conn.Close()
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Resolver == nil {
		return nil, errors.New("caller: missing resolver")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaults.DialTimeout
	}
	obs := observability.NewAtomicRPCObserver()
	obs.Set(opts.Observer)
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Client{opts: opts, obs: obs, log: log, sessions: make(map[string]*sessionEntry)}, nil
}

// SetObserver replaces the metrics observer of the client and of its live
// sessions; nil disables metrics.
func (c *Client) SetObserver(obs observability.RPCObserver) {
	c.obs.Set(obs)
}

// Dispatch implements Dispatcher.
func (c *Client) Dispatch(ctx context.Context, target wit.Address, payload json.RawMessage) (json.RawMessage, error) {
	start := time.Now()
	e, err := c.session(ctx, target.Node)
	if err != nil {
		c.observeCall(ctx, resultOf(err), time.Since(start))
		return nil, err
	}
	out, err := e.s.rpc.Call(ctx, target.Process, payload)
	c.observeCall(ctx, resultOf(err), time.Since(start))
	if err != nil {
		var ce *rpc.CallError
		if !errors.As(err, &ce) && ctx.Err() == nil {
			c.log.Warn("node session failed", "node", target.Node, "err", err)
			c.evict(target.Node, e)
			return nil, fmt.Errorf("%w: %w", ErrOffline, err)
		}
		return nil, err
	}
	return out, nil
}

// Sessions returns the number of established node sessions.
func (c *Client) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked()
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := c.sessions
	c.sessions = make(map[string]*sessionEntry)
	c.mu.Unlock()
	for _, e := range entries {
		<-e.ready
		if e.s != nil {
			e.s.close()
		}
	}
	c.obs.Sessions(0)
	return nil
}

func (c *Client) session(ctx context.Context, node string) (*sessionEntry, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	e := c.sessions[node]
	if e == nil {
		e = &sessionEntry{ready: make(chan struct{})}
		c.sessions[node] = e
		c.mu.Unlock()
		go c.connect(context.WithoutCancel(ctx), node, e)
	} else {
		c.mu.Unlock()
	}
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e, nil
}

// connect dials node and publishes the outcome on e. It runs detached from
// the first caller so a canceled call does not fail others waiting on it.
func (c *Client) connect(ctx context.Context, node string, e *sessionEntry) {
	s, err := c.dial(ctx, node)
	c.mu.Lock()
	switch {
	case err != nil:
		e.err = err
		if c.sessions[node] == e {
			delete(c.sessions, node)
		}
	case c.closed:
		s.close()
		e.err = ErrClientClosed
	default:
		e.s = s
	}
	close(e.ready)
	live := c.liveLocked()
	c.mu.Unlock()
	c.obs.Sessions(live)
	if e.s != nil {
		c.log.Info("node session established", "node", node)
		go c.watch(node, e)
	}
}

func (c *Client) dial(ctx context.Context, node string) (*session, error) {
	ctx, cancel := contextutil.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	url, err := c.opts.Resolver.Resolve(ctx, node)
	if err != nil {
		if errors.Is(err, ErrOffline) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrOffline, node, err)
	}
	conn, _, err := ws.Dial(ctx, url, ws.DialOptions{Header: c.opts.Header})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrOffline, node, err)
	}
	mux, err := muxyamux.NewClient(conn.NetConn(), muxyamux.Config(c.opts.KeepAlive))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrOffline, err)
	}
	stream, err := mux.OpenStream()
	if err != nil {
		_ = mux.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open stream: %w", ErrOffline, err)
	}
	if err := streamhello.Write(stream, streamhello.KindRPC); err != nil {
		_ = mux.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: hello: %w", ErrOffline, err)
	}
	rc := rpc.NewClient(stream)
	rc.SetObserver(c.obs)
	rc.SetMaxFrameBytes(c.opts.MaxFrameBytes)
	return &session{node: node, conn: conn, mux: mux, rpc: rc}, nil
}

func (c *Client) watch(node string, e *sessionEntry) {
	select {
	case <-e.s.rpc.Done():
	case <-e.s.mux.CloseChan():
	}
	c.evict(node, e)
}

func (c *Client) evict(node string, e *sessionEntry) {
	c.mu.Lock()
	removed := c.sessions[node] == e
	if removed {
		delete(c.sessions, node)
	}
	live := c.liveLocked()
	c.mu.Unlock()
	if removed {
		e.s.close()
		c.obs.Sessions(live)
		c.log.Info("node session closed", "node", node)
	}
}

func (c *Client) liveLocked() int {
	n := 0
	for _, e := range c.sessions {
		select {
		case <-e.ready:
			if e.s != nil {
				n++
			}
		default:
		}
	}
	return n
}

// observeCall records one call outcome. Under Send the outcome is handed
// back so a reply that fails to decode is counted once, as a decode error.
func (c *Client) observeCall(ctx context.Context, result observability.RPCResult, d time.Duration) {
	if oc, ok := ctx.Value(outcomeKey{}).(*callOutcome); ok {
		oc.obs, oc.result, oc.d = c.obs, result, d
		return
	}
	c.obs.ClientCall(result, d)
}

func resultOf(err error) observability.RPCResult {
	var ce *rpc.CallError
	switch {
	case err == nil:
		return observability.RPCResultOK
	case errors.As(err, &ce):
		if ce.Code == rpc.CodeNotFound {
			return observability.RPCResultHandlerNotFound
		}
		return observability.RPCResultRPCError
	case errors.Is(err, context.DeadlineExceeded):
		return observability.RPCResultTimeout
	case errors.Is(err, context.Canceled):
		return observability.RPCResultCanceled
	default:
		return observability.RPCResultTransportError
	}
}
