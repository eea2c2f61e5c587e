package rpc

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const Version = "2.0"

// ErrProtocol indicates a malformed or uncorrelated JSON-RPC response.
var ErrProtocol = errors.New("JSON-RPC protocol violation")

// RequestID correlates a response with its request within a batch.
type RequestID uint64

var lastID atomic.Uint64

// NextID returns a process-wide unique request id.
func NextID() RequestID {
	return RequestID(lastID.Add(1))
}

type Request struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Method  string    `json:"method"`
	Params  []any     `json:"params"`
}

// NewRequest creates a request with a fresh id.
func NewRequest(method string, params ...any) *Request {
	if params == nil {
		params = []any{}
	}

	return &Request{
		JSONRPC: Version,
		ID:      NextID(),
		Method:  method,
		Params:  params,
	}
}

// Fingerprint describes the method and params, regardless of id.
func (r *Request) Fingerprint() string {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Sprintf("%v%v", r.Method, r.Params)
	}

	return r.Method + string(params)
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Validate checks that exactly one of result and error is populated. A JSON null
// result counts as populated.
func (r *Response) Validate() error {
	hasResult := len(r.Result) > 0

	if r.Error == nil && !hasResult {
		return NewProtocolError("neither result nor error in response %v", r.ID)
	}

	if r.Error != nil && hasResult && string(r.Result) != "null" {
		return NewProtocolError("both result and error in response %v", r.ID)
	}

	return nil
}

// IsNull returns true if the result is absent or JSON null.
func (r *Response) IsNull() bool {
	return len(r.Result) == 0 || string(r.Result) == "null"
}

// Error is a JSON-RPC error object, either returned by node or synthesized by transport.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%v (code = %v, data = %s)", e.Message, e.Code, e.Data)
	}

	return fmt.Sprintf("%v (code = %v)", e.Message, e.Code)
}

type Batch []*Request

type BatchResponse []*Response

// ByID correlates responses by id. Servers may reorder responses, so the array
// position is never used.
func (br BatchResponse) ByID() map[RequestID]*Response {
	result := make(map[RequestID]*Response, len(br))
	for _, v := range br {
		if v != nil {
			result[v.ID] = v
		}
	}

	return result
}

// Correlate validates that every response belongs to the given batch, and that at most
// one response is answered for each request.
func (br BatchResponse) Correlate(batch Batch) (map[RequestID]*Response, error) {
	expected := make(map[RequestID]struct{}, len(batch))
	for _, v := range batch {
		expected[v.ID] = struct{}{}
	}

	result := make(map[RequestID]*Response, len(br))

	for _, v := range br {
		if v == nil {
			return nil, NewProtocolError("null item in batch response")
		}

		if _, ok := expected[v.ID]; !ok {
			return nil, NewProtocolError("unexpected response id %v in batch", v.ID)
		}

		if _, ok := result[v.ID]; ok {
			return nil, NewProtocolError("duplicate response id %v in batch", v.ID)
		}

		if err := v.Validate(); err != nil {
			return nil, err
		}

		result[v.ID] = v
	}

	return result, nil
}

// HTTPError is returned when node responds with a non-2xx status code.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
	RetryAfter time.Duration // zero if not provided by server
}

func (e *HTTPError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("HTTP %v from %v", e.Status, e.URL)
	}

	return fmt.Sprintf("HTTP %v from %v: %v", e.Status, e.URL, e.Body)
}

func NewProtocolError(format string, args ...any) error {
	return errors.WithMessagef(ErrProtocol, format, args...)
}
