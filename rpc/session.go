// Package rpc runs request/response sessions over a byte stream. Requests
// are routed by process name; each message is one length-prefixed JSON
// envelope.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hyperware-ai/hyper-bindgen/framing/jsonframe"
	"github.com/hyperware-ai/hyper-bindgen/observability"
)

var ErrClosed = errors.New("rpc session closed")

// Envelope is one message on the stream. Requests carry a non-zero
// RequestID; responses carry the request's id in ResponseTo.
type Envelope struct {
	Process    string            `json:"process,omitempty"`
	RequestID  uint64            `json:"request_id,omitempty"`
	ResponseTo uint64            `json:"response_to,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Error      *WireError        `json:"error,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register routes requests for process to h, replacing any previous handler.
func (r *Router) Register(process string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[process] = h
}

func (r *Router) handle(ctx context.Context, process string, payload json.RawMessage) (json.RawMessage, *WireError, observability.RPCResult) {
	r.mu.RLock()
	h := r.handlers[process]
	r.mu.RUnlock()
	if h == nil {
		return nil, &WireError{Code: CodeNotFound, Message: "no handler for process " + process}, observability.RPCResultHandlerNotFound
	}
	out, err := h(ctx, payload)
	if err != nil {
		return nil, ToWireError(err), observability.RPCResultRPCError
	}
	return out, nil, observability.RPCResultOK
}

type Server struct {
	rwc     io.ReadWriteCloser
	router  *Router
	maxLen  int
	obs     observability.RPCObserver
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func NewServer(rwc io.ReadWriteCloser, router *Router) *Server {
	return &Server{rwc: rwc, router: router, obs: observability.NoopRPCObserver}
}

func (s *Server) SetMaxFrameBytes(n int) { s.maxLen = n }

func (s *Server) SetObserver(obs observability.RPCObserver) {
	if obs == nil {
		obs = observability.NoopRPCObserver
	}
	s.obs = obs
}

// Serve handles requests until the stream fails or ctx ends. Each request
// runs on its own goroutine; Serve waits for them before returning.
func (s *Server) Serve(ctx context.Context) error {
	defer s.wg.Wait()
	stop := context.AfterFunc(ctx, func() { _ = s.rwc.Close() })
	defer stop()
	for {
		b, err := jsonframe.Read(s.rwc, s.maxLen)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, io.EOF) {
				s.obs.ServerFrameError(observability.RPCFrameRead)
			}
			return err
		}
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			s.obs.ServerFrameError(observability.RPCFrameRead)
			continue
		}
		if env.ResponseTo != 0 || env.RequestID == 0 {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveOne(ctx, env)
		}()
	}
}

func (s *Server) serveOne(ctx context.Context, env Envelope) {
	if len(env.Meta) > 0 {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(env.Meta))
	}
	payload, werr, result := s.router.handle(ctx, env.Process, env.Payload)
	s.obs.ServerRequest(result)
	resp := Envelope{
		Process:    env.Process,
		ResponseTo: env.RequestID,
		Payload:    payload,
		Error:      werr,
	}
	s.writeMu.Lock()
	err := jsonframe.Write(s.rwc, resp)
	s.writeMu.Unlock()
	if err != nil {
		s.obs.ServerFrameError(observability.RPCFrameWrite)
	}
}

type Client struct {
	rwc    io.ReadWriteCloser
	maxLen int
	obs    observability.RPCObserver

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Envelope
	closed  bool
	done    chan struct{}
	err     error
}

// NewClient starts reading responses from rwc.
func NewClient(rwc io.ReadWriteCloser) *Client {
	c := &Client{
		rwc:     rwc,
		obs:     observability.NoopRPCObserver,
		nextID:  1,
		pending: make(map[uint64]chan Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) SetObserver(obs observability.RPCObserver) {
	if obs == nil {
		obs = observability.NoopRPCObserver
	}
	c.mu.Lock()
	c.obs = obs
	c.mu.Unlock()
}

// SetMaxFrameBytes caps response frames; n <= 0 selects the default.
func (c *Client) SetMaxFrameBytes(n int) {
	c.mu.Lock()
	c.maxLen = n
	c.mu.Unlock()
}

func (c *Client) frameLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxLen
}

func (c *Client) observer() observability.RPCObserver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obs
}

// Done is closed once the client can no longer complete calls.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the read loop, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call sends payload to process and waits for the response. A remote
// failure is returned as *CallError.
func (c *Client) Call(ctx context.Context, process string, payload json.RawMessage) (json.RawMessage, error) {
	reqID, ch, err := c.reserve()
	if err != nil {
		return nil, err
	}
	defer c.release(reqID)

	env := Envelope{Process: process, RequestID: reqID, Payload: payload}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		env.Meta = carrier
	}

	c.writeMu.Lock()
	err = jsonframe.Write(c.rwc, env)
	c.writeMu.Unlock()
	if err != nil {
		c.observer().ClientFrameError(observability.RPCFrameWrite)
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Error != nil {
			return nil, NewCallError(process, resp.Error)
		}
		return resp.Payload, nil
	}
}

func (c *Client) reserve() (uint64, chan Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, ErrClosed
	}
	id := c.nextID
	c.nextID++
	ch := make(chan Envelope, 1)
	c.pending[id] = ch
	return id, ch, nil
}

func (c *Client) release(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		b, err := jsonframe.Read(c.rwc, c.frameLimit())
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				c.observer().ClientFrameError(observability.RPCFrameRead)
			}
			c.closeAll(err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			c.observer().ClientFrameError(observability.RPCFrameRead)
			continue
		}
		if env.ResponseTo == 0 {
			continue
		}
		c.deliver(env)
	}
}

// deliver hands a response to its waiting call. The send happens under mu so
// closeAll cannot close the channel in between.
func (c *Client) deliver(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.pending[env.ResponseTo]
	if ch == nil {
		return
	}
	delete(c.pending, env.ResponseTo)
	select {
	case ch <- env:
	default:
	}
}

func (c *Client) closeAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	c.closed = true
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Client) Close() error {
	err := c.rwc.Close()
	c.closeAll(ErrClosed)
	return err
}
