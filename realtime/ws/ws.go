// Package ws wraps gorilla/websocket for node sessions: dialing, upgrading
// and exposing a connection as a net.Conn byte stream for yamux.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Conn struct {
	c *websocket.Conn
}

// UpgraderOptions exposes a small set of websocket upgrader controls.
type UpgraderOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// Upgrade upgrades an HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request, opts UpgraderOptions) (*Conn, error) {
	up := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     opts.CheckOrigin,
	}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{c: c}, nil
}

// DialOptions provides optional headers and dialer for websocket dialing.
type DialOptions struct {
	Header http.Header
	Dialer *websocket.Dialer
}

// Dial opens a websocket connection; the handshake honors ctx's deadline.
func Dial(ctx context.Context, urlStr string, opts DialOptions) (*Conn, *http.Response, error) {
	d := websocket.Dialer{}
	if opts.Dialer != nil {
		d = *opts.Dialer
	}
	if deadline, ok := ctx.Deadline(); ok {
		dl := time.Until(deadline)
		if d.HandshakeTimeout == 0 || d.HandshakeTimeout > dl {
			d.HandshakeTimeout = dl
		}
	}
	c, resp, err := d.DialContext(ctx, urlStr, opts.Header)
	if err != nil {
		return nil, resp, err
	}
	return &Conn{c: c}, resp, nil
}

// SetReadLimit caps a single websocket message.
func (c *Conn) SetReadLimit(n int64) {
	c.c.SetReadLimit(n)
}

func (c *Conn) Close() error {
	return c.c.Close()
}

// CloseWithStatus sends a close control frame before closing.
func (c *Conn) CloseWithStatus(code int, text string) error {
	_ = c.c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(2*time.Second))
	return c.c.Close()
}

// Underlying exposes the raw gorilla/websocket connection.
func (c *Conn) Underlying() *websocket.Conn {
	return c.c
}

// NetConn returns a net.Conn carrying a byte stream over binary messages.
// Message boundaries are not preserved; text messages are skipped.
func (c *Conn) NetConn() net.Conn {
	return &netConn{c: c.c}
}

type netConn struct {
	c *websocket.Conn

	readMu sync.Mutex
	r      io.Reader

	writeMu sync.Mutex
}

func (n *netConn) Read(p []byte) (int, error) {
	n.readMu.Lock()
	defer n.readMu.Unlock()
	for {
		if n.r == nil {
			mt, r, err := n.c.NextReader()
			if err != nil {
				if isClose(err) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			n.r = r
		}
		k, err := n.r.Read(p)
		if errors.Is(err, io.EOF) {
			n.r = nil
			if k > 0 {
				return k, nil
			}
			continue
		}
		return k, err
	}
}

func (n *netConn) Write(p []byte) (int, error) {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	if err := n.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (n *netConn) Close() error                       { return n.c.Close() }
func (n *netConn) LocalAddr() net.Addr                { return n.c.LocalAddr() }
func (n *netConn) RemoteAddr() net.Addr               { return n.c.RemoteAddr() }
func (n *netConn) SetReadDeadline(t time.Time) error  { return n.c.SetReadDeadline(t) }
func (n *netConn) SetWriteDeadline(t time.Time) error { return n.c.SetWriteDeadline(t) }

func (n *netConn) SetDeadline(t time.Time) error {
	if err := n.c.SetReadDeadline(t); err != nil {
		return err
	}
	return n.c.SetWriteDeadline(t)
}

func isClose(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, net.ErrClosed)
}
