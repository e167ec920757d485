package caller_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hyperware-ai/hyper-bindgen/bgerrors"
	"github.com/hyperware-ai/hyper-bindgen/caller"
	"github.com/hyperware-ai/hyper-bindgen/wit"
)

type dispatchFunc func(ctx context.Context, target wit.Address, payload json.RawMessage) (json.RawMessage, error)

func (f dispatchFunc) Dispatch(ctx context.Context, target wit.Address, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, target, payload)
}

func useDispatcher(t *testing.T, d caller.Dispatcher) {
	t.Helper()
	prev := caller.Default()
	caller.SetDefault(d)
	t.Cleanup(func() { caller.SetDefault(prev) })
}

func TestSend_EncodesAndDecodes(t *testing.T) {
	var gotTarget wit.Address
	var gotPayload string
	useDispatcher(t, dispatchFunc(func(_ context.Context, target wit.Address, payload json.RawMessage) (json.RawMessage, error) {
		gotTarget, gotPayload = target, string(payload)
		return json.RawMessage(`{"Ok":7}`), nil
	}))

	request := map[string]any{"Add": []any{3, "x"}}
	res, err := caller.Send[wit.Result[uint32, string]](context.Background(), request, "node.os@counter:counter:sys", 30)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := res.Value(); !ok || v != 7 {
		t.Fatalf("result = %v %v", v, ok)
	}
	if gotTarget != (wit.Address{Node: "node.os", Process: "counter:counter:sys"}) {
		t.Fatalf("target = %+v", gotTarget)
	}
	if gotPayload != `{"Add":[3,"x"]}` {
		t.Fatalf("payload = %s", gotPayload)
	}
}

func TestSend_AddressTargetAndUnitReply(t *testing.T) {
	useDispatcher(t, dispatchFunc(func(context.Context, wit.Address, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`null`), nil
	}))
	target := wit.Address{Node: "n", Process: "p"}
	if _, err := caller.Send[struct{}](context.Background(), map[string]any{"Ping": struct{}{}}, target, 30); err != nil {
		t.Fatal(err)
	}
}

func TestSend_Errors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		d      caller.Dispatcher
		code   bgerrors.Code
		is     error
	}{
		{
			name:   "invalid target",
			target: "no-at-sign",
			d:      dispatchFunc(func(context.Context, wit.Address, json.RawMessage) (json.RawMessage, error) { return nil, nil }),
			code:   bgerrors.CodeInvalidTarget,
			is:     wit.ErrInvalidAddress,
		},
		{
			name:   "no dispatcher",
			target: "n@p",
			code:   bgerrors.CodeOffline,
			is:     caller.ErrOffline,
		},
		{
			name:   "timeout",
			target: "n@p",
			d: dispatchFunc(func(ctx context.Context, _ wit.Address, _ json.RawMessage) (json.RawMessage, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
			code: bgerrors.CodeTimeout,
			is:   caller.ErrTimeout,
		},
		{
			name:   "decode",
			target: "n@p",
			d: dispatchFunc(func(context.Context, wit.Address, json.RawMessage) (json.RawMessage, error) {
				return json.RawMessage(`"not a number"`), nil
			}),
			code: bgerrors.CodeDecodeFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			useDispatcher(t, tc.d)
			ctx := context.Background()
			timeout := 30
			if tc.name == "timeout" {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
			}
			_, err := caller.Send[int](ctx, map[string]any{"Op": struct{}{}}, tc.target, timeout)
			var be *bgerrors.Error
			if !errors.As(err, &be) {
				t.Fatalf("err = %v, want *bgerrors.Error", err)
			}
			if be.Stage != bgerrors.StageDispatch || be.Code != tc.code {
				t.Fatalf("stage/code = %s/%s, want dispatch/%s", be.Stage, be.Code, tc.code)
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tc.is)
			}
		})
	}
}

func TestSend_DecodeErrorCarriesBody(t *testing.T) {
	useDispatcher(t, dispatchFunc(func(context.Context, wit.Address, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`[1]`), nil
	}))
	_, err := caller.Send[string](context.Background(), map[string]any{"Op": struct{}{}}, "n@p", 30)
	var de *caller.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v", err)
	}
	if string(de.Body) != "[1]" || de.Type != "string" {
		t.Fatalf("decode error = %+v", de)
	}
}

func TestSend_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	caller.SetTracerProvider(tp)
	t.Cleanup(func() { caller.SetTracerProvider(nil) })

	useDispatcher(t, dispatchFunc(func(context.Context, wit.Address, json.RawMessage) (json.RawMessage, error) {
		return nil, caller.ErrOffline
	}))
	_, _ = caller.Send[int](context.Background(), map[string]any{"GetCount": struct{}{}}, "node.os@counter:counter:sys", 30)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Status().Code != codes.Error {
		t.Fatalf("status = %v", s.Status())
	}
	want := map[attribute.Key]string{
		"rpc.system":        "hyperware",
		"rpc.method":        "GetCount",
		"hyperware.node":    "node.os",
		"hyperware.process": "counter:counter:sys",
	}
	got := map[attribute.Key]string{}
	for _, kv := range s.Attributes() {
		got[kv.Key] = kv.Value.AsString()
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("attribute %s = %q, want %q", k, got[k], v)
		}
	}
}
