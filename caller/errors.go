package caller

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperware-ai/hyper-bindgen/bgerrors"
	"github.com/hyperware-ai/hyper-bindgen/rpc"
)

type sentinelError struct {
	code bgerrors.Code
	msg  string
}

func (e *sentinelError) Error() string               { return e.msg }
func (e *sentinelError) DispatchCode() bgerrors.Code { return e.code }

var (
	// ErrTimeout is returned when no reply arrives within the stub's timeout.
	ErrTimeout error = &sentinelError{code: bgerrors.CodeTimeout, msg: "request timed out"}
	// ErrOffline is returned when the target node cannot be reached.
	ErrOffline error = &sentinelError{code: bgerrors.CodeOffline, msg: "target node offline"}
	// ErrClientClosed is returned by a Client after Close.
	ErrClientClosed error = &sentinelError{code: bgerrors.CodeOffline, msg: "caller client closed"}
)

// DecodeError reports a reply that does not decode into the stub's return type.
type DecodeError struct {
	Type string
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode reply into %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error               { return e.Err }
func (e *DecodeError) DispatchCode() bgerrors.Code { return bgerrors.CodeDecodeFailed }

// dispatchError wraps err as a dispatch-stage *bgerrors.Error for target.
// An expired deadline is reported as ErrTimeout.
func dispatchError(target string, err error) error {
	var be *bgerrors.Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	code := bgerrors.ClassifyDispatchCode(err)
	var ce *rpc.CallError
	if errors.As(err, &ce) {
		code = bgerrors.CodeRemoteError
	}
	return bgerrors.Wrap(bgerrors.StageDispatch, code, target, err)
}
