// Package observability defines the metric events emitted by the rpc
// session layer and the caller runtime.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type RPCResult string

const (
	RPCResultOK              RPCResult = "ok"
	RPCResultRPCError        RPCResult = "rpc_error"
	RPCResultHandlerNotFound RPCResult = "handler_not_found"
	RPCResultTransportError  RPCResult = "transport_error"
	RPCResultTimeout         RPCResult = "timeout"
	RPCResultCanceled        RPCResult = "canceled"
	RPCResultDecodeError     RPCResult = "decode_error"
)

type RPCFrameDirection string

const (
	RPCFrameRead  RPCFrameDirection = "read"
	RPCFrameWrite RPCFrameDirection = "write"
)

// RPCObserver receives RPC-level metric events.
type RPCObserver interface {
	ServerRequest(result RPCResult)
	ServerFrameError(direction RPCFrameDirection)
	ClientFrameError(direction RPCFrameDirection)
	ClientCall(result RPCResult, d time.Duration)
	// Sessions reports the number of live node sessions held by a caller client.
	Sessions(n int)
}

type noopRPCObserver struct{}

func (noopRPCObserver) ServerRequest(RPCResult)             {}
func (noopRPCObserver) ServerFrameError(RPCFrameDirection)  {}
func (noopRPCObserver) ClientFrameError(RPCFrameDirection)  {}
func (noopRPCObserver) ClientCall(RPCResult, time.Duration) {}
func (noopRPCObserver) Sessions(int)                        {}

// NoopRPCObserver is used when metrics are disabled.
var NoopRPCObserver RPCObserver = noopRPCObserver{}

// AtomicRPCObserver swaps its delegate at runtime.
type AtomicRPCObserver struct {
	once sync.Once
	v    atomic.Value
}

type rpcObserverHolder struct {
	obs RPCObserver
}

// NewAtomicRPCObserver returns an observer delegating to NoopRPCObserver.
func NewAtomicRPCObserver() *AtomicRPCObserver {
	a := &AtomicRPCObserver{}
	a.init()
	return a
}

func (a *AtomicRPCObserver) init() {
	a.once.Do(func() { a.v.Store(&rpcObserverHolder{obs: NoopRPCObserver}) })
}

// Set replaces the delegate; nil restores the no-op observer.
func (a *AtomicRPCObserver) Set(obs RPCObserver) {
	if obs == nil {
		obs = NoopRPCObserver
	}
	a.init()
	a.v.Store(&rpcObserverHolder{obs: obs})
}

func (a *AtomicRPCObserver) load() RPCObserver {
	a.init()
	return a.v.Load().(*rpcObserverHolder).obs
}

func (a *AtomicRPCObserver) ServerRequest(result RPCResult) { a.load().ServerRequest(result) }
func (a *AtomicRPCObserver) ServerFrameError(direction RPCFrameDirection) {
	a.load().ServerFrameError(direction)
}
func (a *AtomicRPCObserver) ClientFrameError(direction RPCFrameDirection) {
	a.load().ClientFrameError(direction)
}
func (a *AtomicRPCObserver) ClientCall(result RPCResult, d time.Duration) {
	a.load().ClientCall(result, d)
}
func (a *AtomicRPCObserver) Sessions(n int) { a.load().Sessions(n) }
