package caller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"github.com/hyperware-ai/hyper-bindgen/internal/defaults"
	"github.com/hyperware-ai/hyper-bindgen/internal/logging"
	muxyamux "github.com/hyperware-ai/hyper-bindgen/mux/yamux"
	"github.com/hyperware-ai/hyper-bindgen/observability"
	"github.com/hyperware-ai/hyper-bindgen/realtime/ws"
	"github.com/hyperware-ai/hyper-bindgen/rpc"
	"github.com/hyperware-ai/hyper-bindgen/streamhello"
)

type HandlerOptions struct {
	Observer    observability.RPCObserver
	Logger      *slog.Logger
	CheckOrigin func(r *http.Request) bool

	KeepAlive     time.Duration
	MaxFrameBytes int
	// HelloTimeout bounds reading the hello on each accepted stream.
	HelloTimeout time.Duration
}

// NewHandler returns the node side of a caller session: it upgrades the
// request to a websocket, runs a yamux server on it and serves router on
// every rpc stream the peer opens.
func NewHandler(router *rpc.Router, opts HandlerOptions) *Handler {
	obs := observability.NewAtomicRPCObserver()
	obs.Set(opts.Observer)
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.HelloTimeout <= 0 {
		opts.HelloTimeout = defaults.HelloTimeout
	}
	return &Handler{router: router, opts: opts, obs: obs}
}

// Handler is the http.Handler returned by NewHandler.
type Handler struct {
	router *rpc.Router
	opts   HandlerOptions
	obs    *observability.AtomicRPCObserver
}

// SetObserver replaces the metrics observer, including for streams already
// being served; nil disables metrics.
func (h *Handler) SetObserver(obs observability.RPCObserver) {
	h.obs.Set(obs)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrade(w, r, ws.UpgraderOptions{CheckOrigin: h.opts.CheckOrigin})
	if err != nil {
		h.opts.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.CloseWithStatus(websocket.CloseNormalClosure, "")

	sess, err := muxyamux.NewServer(conn.NetConn(), muxyamux.Config(h.opts.KeepAlive))
	if err != nil {
		h.opts.Logger.Warn("yamux server failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		stream, err := sess.AcceptStream()
		if err != nil {
			cancel()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.serveStream(ctx, stream)
		}()
	}
}

func (h *Handler) serveStream(ctx context.Context, stream *yamux.Stream) {
	defer stream.Close()
	_ = stream.SetReadDeadline(time.Now().Add(h.opts.HelloTimeout))
	hello, err := streamhello.Read(stream)
	if err != nil || hello.Kind != streamhello.KindRPC {
		h.opts.Logger.Warn("rejected stream", "kind", hello.Kind, "err", err)
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	srv := rpc.NewServer(stream, h.router)
	srv.SetObserver(h.obs)
	srv.SetMaxFrameBytes(h.opts.MaxFrameBytes)
	_ = srv.Serve(ctx)
}
