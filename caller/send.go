// Package caller is the runtime behind generated caller stubs. Send encodes a
// request, delivers it to a process address through the default Dispatcher
// and decodes the reply.
package caller

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperware-ai/hyper-bindgen/bgerrors"
	"github.com/hyperware-ai/hyper-bindgen/internal/contextutil"
	"github.com/hyperware-ai/hyper-bindgen/observability"
	"github.com/hyperware-ai/hyper-bindgen/wit"
)

const instrumentationName = "github.com/hyperware-ai/hyper-bindgen/caller"

// Target is what a stub may address: a process address or its text form.
type Target interface {
	~string | wit.Address
}

// Dispatcher delivers one encoded request to a process and returns the raw reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, target wit.Address, payload json.RawMessage) (json.RawMessage, error)
}

type dispatcherHolder struct{ d Dispatcher }

var (
	defaultDispatcher atomic.Pointer[dispatcherHolder]
	tracerProvider    atomic.Pointer[tracerHolder]
)

type tracerHolder struct{ tp trace.TracerProvider }

// SetDefault installs the Dispatcher used by Send. nil leaves every target offline.
func SetDefault(d Dispatcher) {
	defaultDispatcher.Store(&dispatcherHolder{d: d})
}

// Default returns the Dispatcher used by Send, or nil.
func Default() Dispatcher {
	if h := defaultDispatcher.Load(); h != nil {
		return h.d
	}
	return nil
}

// SetTracerProvider sets the provider for Send spans. nil selects the global provider.
func SetTracerProvider(tp trace.TracerProvider) {
	tracerProvider.Store(&tracerHolder{tp: tp})
}

func tracer() trace.Tracer {
	if h := tracerProvider.Load(); h != nil && h.tp != nil {
		return h.tp.Tracer(instrumentationName)
	}
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// Send delivers body to target through the default Dispatcher and decodes the
// reply into T. timeoutSeconds <= 0 means no timeout beyond ctx.
//
// Every failure is a *bgerrors.Error with stage dispatch.
func Send[T any, A Target](ctx context.Context, body any, target A, timeoutSeconds int) (T, error) {
	return SendVia[T](ctx, Default(), body, target, timeoutSeconds)
}

// SendVia is Send with an explicit Dispatcher.
func SendVia[T any, A Target](ctx context.Context, d Dispatcher, body any, target A, timeoutSeconds int) (T, error) {
	var zero T
	addr, err := resolveTarget(target)
	if err != nil {
		return zero, bgerrors.Wrap(bgerrors.StageDispatch, bgerrors.CodeInvalidTarget, fmt.Sprint(target), err)
	}
	path := addr.String()

	ctx, cancel := contextutil.WithTimeout(ctx, contextutil.Seconds(timeoutSeconds))
	defer cancel()
	ctx, span := tracer().Start(ctx, "hyperware.send "+addr.Process,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "hyperware"),
			attribute.String("rpc.method", methodOf(body)),
			attribute.String("hyperware.node", addr.Node),
			attribute.String("hyperware.process", addr.Process),
		))
	defer span.End()

	fail := func(err error) (T, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fail(bgerrors.Wrap(bgerrors.StageDispatch, bgerrors.CodeEncodeFailed, path, err))
	}
	if d == nil {
		return fail(dispatchError(path, ErrOffline))
	}
	oc := &callOutcome{}
	defer oc.report()
	reply, err := d.Dispatch(context.WithValue(ctx, outcomeKey{}, oc), addr, payload)
	if err != nil {
		return fail(dispatchError(path, err))
	}
	var out T
	if len(reply) > 0 {
		if err := json.Unmarshal(reply, &out); err != nil {
			oc.result = observability.RPCResultDecodeError
			derr := &DecodeError{Type: fmt.Sprintf("%T", out), Body: reply, Err: err}
			return fail(dispatchError(path, derr))
		}
	}
	return out, nil
}

type outcomeKey struct{}

// callOutcome carries a dispatcher's call result back to Send, which
// records it after decoding the reply.
type callOutcome struct {
	obs    observability.RPCObserver
	result observability.RPCResult
	d      time.Duration
}

func (oc *callOutcome) report() {
	if oc.obs != nil {
		oc.obs.ClientCall(oc.result, oc.d)
	}
}

func resolveTarget[A Target](target A) (wit.Address, error) {
	if a, ok := any(target).(wit.Address); ok {
		return a, a.Validate()
	}
	return wit.ParseAddress(reflect.ValueOf(target).String())
}

// methodOf returns the variant name of a single-key request object.
func methodOf(body any) string {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return ""
	}
	for k := range m {
		return k
	}
	return ""
}
