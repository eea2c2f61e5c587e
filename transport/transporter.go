package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/0glabs/0g-wallet-rpc/common/metrics"
	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/0glabs/0g-wallet-rpc/rpcerror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Requires Transporter implements the rpc.BatchSender interface.
var _ rpc.BatchSender = (*Transporter)(nil)

// Poster posts raw payloads to an endpoint.
type Poster interface {
	Post(ctx context.Context, endpoint Endpoint, body []byte) ([]byte, error)
}

// Transporter delivers JSON-RPC requests to the endpoints of a chain, and rotates to
// the next endpoint when the current one is unavailable.
//
// The current endpoint index is shared by all requests of the chain and sticks after
// rotation. A failing attempt only advances the index it observed, so concurrent
// failures on the same endpoint rotate once.
type Transporter struct {
	chainID     uint64
	chainLabel  string
	endpoints   []Endpoint
	current     atomic.Int64
	poster      Poster
	interceptor Interceptor
}

// MustNewTransporter creates a transporter, and panics if no endpoint configured.
func MustNewTransporter(chainID uint64, endpoints []Endpoint, poster Poster, interceptor ...Interceptor) *Transporter {
	transporter, err := NewTransporter(chainID, endpoints, poster, interceptor...)
	if err != nil {
		logrus.WithError(err).WithField("chain", chainID).Fatal("Failed to create transporter")
	}

	return transporter
}

// NewTransporter creates a transporter for the endpoints of a chain.
func NewTransporter(chainID uint64, endpoints []Endpoint, poster Poster, interceptor ...Interceptor) (*Transporter, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("No endpoint configured")
	}

	transporter := Transporter{
		chainID:    chainID,
		chainLabel: strconv.FormatUint(chainID, 10),
		endpoints:  endpoints,
		poster:     poster,
	}

	if len(interceptor) > 0 {
		transporter.interceptor = interceptor[0]
	}

	return &transporter, nil
}

// ChainID returns the chain id of endpoints.
func (t *Transporter) ChainID() uint64 {
	return t.chainID
}

// CurrentIndex returns the index of endpoint to attempt first.
func (t *Transporter) CurrentIndex() int {
	return int(t.current.Load())
}

// CurrentURL returns the URL of endpoint to attempt first.
func (t *Transporter) CurrentURL() string {
	return t.endpoints[t.current.Load()].URL
}

// Send sends a single request and returns the correlated response. JSON-RPC errors
// answered by node are returned in response rather than as error.
func (t *Transporter) Send(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to marshal request")
	}

	var resp *rpc.Response

	err = t.roundTrip(ctx, []string{req.Method}, body, func(data []byte) error {
		var decoded rpc.Response
		if err := json.Unmarshal(data, &decoded); err != nil {
			return rpc.NewProtocolError("invalid JSON response: %v", err)
		}

		// node may not be able to parse id for malformed requests
		if decoded.ID != req.ID && decoded.Error == nil {
			return rpc.NewProtocolError("response id %v mismatch with request id %v", decoded.ID, req.ID)
		}

		if err := decoded.Validate(); err != nil {
			return err
		}

		decoded.ID = req.ID
		resp = &decoded

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// SendBatch sends requests in batch. Responses are validated to belong to the batch,
// but may be in any order or missing. An HTTP or protocol failure, or a single error
// object in place of the response array, fails the whole batch.
func (t *Transporter) SendBatch(ctx context.Context, batch rpc.Batch) (rpc.BatchResponse, error) {
	if len(batch) == 0 {
		return rpc.BatchResponse{}, nil
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to marshal batch request")
	}

	methods := make([]string, 0, len(batch))
	for _, v := range batch {
		methods = append(methods, v.Method)
	}

	var result rpc.BatchResponse

	err = t.roundTrip(ctx, methods, body, func(data []byte) error {
		data = bytes.TrimSpace(data)

		if len(data) > 0 && data[0] == '{' {
			var single rpc.Response
			if err := json.Unmarshal(data, &single); err != nil {
				return rpc.NewProtocolError("invalid JSON response: %v", err)
			}

			if single.Error == nil {
				return rpc.NewProtocolError("object responded for batch request")
			}

			return single.Error
		}

		var responses rpc.BatchResponse
		if err := json.Unmarshal(data, &responses); err != nil {
			return rpc.NewProtocolError("invalid JSON batch response: %v", err)
		}

		if _, err := responses.Correlate(batch); err != nil {
			return err
		}

		result = responses

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// roundTrip posts body to endpoints starting from the current one, and parses the
// response with handle. Every endpoint is attempted at most once.
func (t *Transporter) roundTrip(ctx context.Context, methods []string, body []byte, handle func(data []byte) error) error {
	n := int64(len(t.endpoints))
	idx := t.current.Load()

	var lastErr error

	for attempt := int64(0); attempt < n; attempt++ {
		candidate := t.endpoints[idx]

		target := candidate
		if t.interceptor != nil {
			target = t.interceptor.Intercept(candidate, methods)
		}

		data, err := t.poster.Post(ctx, target, body)
		if err == nil {
			if err = handle(data); err == nil {
				return nil
			}
		}

		lastErr = t.classify(err, target.URL)

		// redirected requests are not delivered to candidates, so never rotate
		if ctx.Err() != nil || target.URL != candidate.URL || !rpcerror.IsRotationEligible(err) {
			return lastErr
		}

		next := (idx + 1) % n
		if t.current.CompareAndSwap(idx, next) {
			metrics.RpcRotationsTotal.WithLabelValues(t.chainLabel).Inc()
			logrus.WithError(err).WithFields(logrus.Fields{
				"chain": t.chainID,
				"from":  candidate.URL,
				"to":    t.endpoints[next].URL,
			}).Warn("Rotate RPC endpoint")
		}

		idx = next
	}

	return lastErr
}

func (t *Transporter) classify(err error, url string) error {
	classified := rpcerror.Classify(err, t.chainID, url)
	if classified == nil {
		return errors.WithMessagef(err, "Failed to request %v", url)
	}

	metrics.RpcErrorsTotal.WithLabelValues(t.chainLabel, classified.Kind.String()).Inc()

	return classified
}
