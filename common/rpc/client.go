package rpc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Sender sends a single JSON-RPC request.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// BatchSender sends JSON-RPC requests either one by one or in batch.
type BatchSender interface {
	Sender
	SendBatch(ctx context.Context, batch Batch) (BatchResponse, error)
}

// Decode is a generic method to decode the result of a response.
func Decode[T any](resp *Response) (result T, err error) {
	if resp.Error != nil {
		return result, resp.Error
	}

	if err = json.Unmarshal(resp.Result, &result); err != nil {
		err = NewProtocolError("failed to decode result: %v", err)
	}

	return
}

// CallContext is a generic method to call RPC with context.
func CallContext[T any](sender Sender, ctx context.Context, method string, args ...any) (result T, err error) {
	resp, err := sender.Send(ctx, NewRequest(method, args...))
	if err != nil {
		return result, err
	}

	return Decode[T](resp)
}

// CallRaw calls RPC and returns the raw result, which may be JSON null.
func CallRaw(sender Sender, ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	resp, err := sender.Send(ctx, NewRequest(method, args...))
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// MustMarshal marshals the value and panics on error, for statically known payloads.
func MustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(errors.WithMessage(err, "Failed to marshal JSON"))
	}

	return data
}
