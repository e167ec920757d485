package caller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hyperware-ai/hyper-bindgen/bgerrors"
	"github.com/hyperware-ai/hyper-bindgen/caller"
	"github.com/hyperware-ai/hyper-bindgen/observability"
	"github.com/hyperware-ai/hyper-bindgen/observability/prom"
	"github.com/hyperware-ai/hyper-bindgen/rpc"
	"github.com/hyperware-ai/hyper-bindgen/wit"
)

func newNode(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	router := rpc.NewRouter()
	router.Register("counter:counter:sys", func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			Add *[]int `json:"Add"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.Add == nil {
			return nil, &rpc.Error{Code: rpc.CodeBadInput, Message: "bad request"}
		}
		sum := 0
		for _, n := range *req.Add {
			sum += n
		}
		return json.Marshal(wit.Ok[int, string](sum))
	})
	srv := httptest.NewServer(caller.NewHandler(router, caller.HandlerOptions{}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_EndToEnd(t *testing.T) {
	_, url := newNode(t)
	reg := prom.NewRegistry()
	c, err := caller.NewClient(caller.ClientOptions{
		Resolver: caller.StaticResolver{"node.os": url},
		Observer: prom.NewRPCObserver(reg),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		res, err := caller.SendVia[wit.Result[int, string]](ctx, c, map[string]any{"Add": []any{i, 40}}, "node.os@counter:counter:sys", 30)
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := res.Value(); !ok || v != 40+i {
			t.Fatalf("call %d: result = %v %v", i, v, ok)
		}
	}
	if n := c.Sessions(); n != 1 {
		t.Fatalf("sessions = %d, want 1", n)
	}

	_, err = caller.SendVia[int](ctx, c, map[string]any{"Nope": struct{}{}}, "node.os@missing:app:pub", 30)
	var ce *rpc.CallError
	if !errors.As(err, &ce) || ce.Code != rpc.CodeNotFound {
		t.Fatalf("missing process err = %v", err)
	}
	if code, _ := bgerrors.CodeOf(err); code != bgerrors.CodeRemoteError {
		t.Fatalf("code = %s", code)
	}

	if got, err := testutil.GatherAndCount(reg, "hyper_bindgen_rpc_client_calls_total"); err != nil || got != 2 {
		t.Fatalf("client call series = %d, %v", got, err)
	}
}

func TestClient_UnknownNodeIsOffline(t *testing.T) {
	c, err := caller.NewClient(caller.ClientOptions{Resolver: caller.StaticResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_, err = caller.SendVia[int](context.Background(), c, map[string]any{"Op": struct{}{}}, "ghost@p", 30)
	if !errors.Is(err, caller.ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if code, _ := bgerrors.CodeOf(err); code != bgerrors.CodeOffline {
		t.Fatalf("code = %s", code)
	}
}

func TestClient_UnreachableNodeIsOffline(t *testing.T) {
	srv, url := newNode(t)
	srv.Close()
	c, err := caller.NewClient(caller.ClientOptions{
		Resolver:    caller.StaticResolver{"node.os": url},
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_, err = caller.SendVia[int](context.Background(), c, map[string]any{"Op": struct{}{}}, "node.os@p", 30)
	if !errors.Is(err, caller.ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if c.Sessions() != 0 {
		t.Fatal("failed dial left a session behind")
	}
}

func TestClient_Closed(t *testing.T) {
	c, err := caller.NewClient(caller.ClientOptions{Resolver: caller.StaticResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
	_, err = c.Dispatch(context.Background(), wit.Address{Node: "n", Process: "p"}, nil)
	if !errors.Is(err, caller.ErrClientClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewClientRequiresResolver(t *testing.T) {
	if _, err := caller.NewClient(caller.ClientOptions{}); err == nil {
		t.Fatal("expected error")
	}
}

type recordingObserver struct {
	observability.RPCObserver
	mu       sync.Mutex
	calls    []observability.RPCResult
	requests []observability.RPCResult
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{RPCObserver: observability.NoopRPCObserver}
}

func (o *recordingObserver) ClientCall(r observability.RPCResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, r)
}

func (o *recordingObserver) ServerRequest(r observability.RPCResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, r)
}

func (o *recordingObserver) snapshot() ([]observability.RPCResult, []observability.RPCResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]observability.RPCResult(nil), o.calls...), append([]observability.RPCResult(nil), o.requests...)
}

func TestClient_ObserverSwapAndDecodeErrors(t *testing.T) {
	router := rpc.NewRouter()
	router.Register("p", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"Ok":1}`), nil
	})
	h := caller.NewHandler(router, caller.HandlerOptions{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	c, err := caller.NewClient(caller.ClientOptions{
		Resolver: caller.StaticResolver{"n": "ws" + strings.TrimPrefix(srv.URL, "http")},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	body := map[string]any{"Get": struct{}{}}

	// Before any observer is installed nothing is recorded.
	if _, err := caller.SendVia[wit.Result[int, string]](ctx, c, body, "n@p", 30); err != nil {
		t.Fatal(err)
	}

	clientObs, nodeObs := newRecordingObserver(), newRecordingObserver()
	c.SetObserver(clientObs)
	h.SetObserver(nodeObs)

	if _, err := caller.SendVia[wit.Result[int, string]](ctx, c, body, "n@p", 30); err != nil {
		t.Fatal(err)
	}
	_, err = caller.SendVia[string](ctx, c, body, "n@p", 30)
	var de *caller.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}

	calls, _ := clientObs.snapshot()
	want := []observability.RPCResult{observability.RPCResultOK, observability.RPCResultDecodeError}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("client calls = %v, want %v", calls, want)
	}
	_, requests := nodeObs.snapshot()
	if len(requests) != 2 {
		t.Fatalf("node requests = %v, want 2 after the swap", requests)
	}
}

func TestClient_DirectDispatchRecordsCall(t *testing.T) {
	_, url := newNode(t)
	obs := newRecordingObserver()
	c, err := caller.NewClient(caller.ClientOptions{Resolver: caller.StaticResolver{"n": url}, Observer: obs})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Dispatch(ctx, wit.Address{Node: "n", Process: "counter:counter:sys"}, json.RawMessage(`{"Add":[1]}`)); err != nil {
		t.Fatal(err)
	}
	calls, _ := obs.snapshot()
	if !reflect.DeepEqual(calls, []observability.RPCResult{observability.RPCResultOK}) {
		t.Fatalf("calls = %v", calls)
	}
}
