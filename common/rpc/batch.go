package rpc

import (
	"context"
)

// Result is the decoded outcome of one request within a batch.
type Result[T any] struct {
	Data  T
	Error error
}

// BatchCallContext is a generic method to call RPC with context in batch. Results are
// returned in the order of requests, regardless of the order node responds.
func BatchCallContext[T any](sender BatchSender, ctx context.Context, requests ...*Request) ([]Result[T], error) {
	batch := Batch(requests)

	responses, err := sender.SendBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	correlated, err := responses.Correlate(batch)
	if err != nil {
		return nil, err
	}

	results := make([]Result[T], len(requests))
	for i, v := range requests {
		resp, ok := correlated[v.ID]
		if !ok {
			results[i].Error = NewProtocolError("response not found for id %v", v.ID)
			continue
		}

		results[i].Data, results[i].Error = Decode[T](resp)
	}

	return results, nil
}
