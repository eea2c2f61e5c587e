package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/0glabs/0g-wallet-rpc/rpcerror"
	"github.com/afex/hystrix-go/hystrix"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode answers JSON-RPC requests with the method name as result.
type fakeNode struct {
	*httptest.Server
	hits    atomic.Int32
	status  atomic.Int32 // non-zero to fail with HTTP status
	reverse bool
}

func newFakeNode(t *testing.T) *fakeNode {
	node := fakeNode{}
	node.Server = httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(node.Close)

	return &node
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	n.hits.Add(1)

	if status := n.status.Load(); status != 0 {
		w.WriteHeader(int(status))
		return
	}

	body, _ := io.ReadAll(r.Body)

	if len(body) > 0 && body[0] == '[' {
		var batch rpc.Batch
		_ = json.Unmarshal(body, &batch)

		var responses rpc.BatchResponse
		for _, v := range batch {
			responses = append(responses, n.answer(v))
		}

		if n.reverse {
			for i, j := 0, len(responses)-1; i < j; i, j = i+1, j-1 {
				responses[i], responses[j] = responses[j], responses[i]
			}
		}

		_ = json.NewEncoder(w).Encode(responses)
		return
	}

	var req rpc.Request
	_ = json.Unmarshal(body, &req)
	_ = json.NewEncoder(w).Encode(n.answer(&req))
}

func (n *fakeNode) answer(req *rpc.Request) *rpc.Response {
	return &rpc.Response{
		JSONRPC: rpc.Version,
		ID:      req.ID,
		Result:  rpc.MustMarshal(req.Method),
	}
}

func newTestService() *NetworkService {
	return NewNetworkService(Option{
		RequestTimeout:   time.Second,
		RetryInterval:    10 * time.Millisecond,
		MaxRetryInterval: 100 * time.Millisecond,
	})
}

func TestRotateOnServiceUnavailable(t *testing.T) {
	a, b := newFakeNode(t), newFakeNode(t)
	a.status.Store(http.StatusServiceUnavailable)

	transporter := MustNewTransporter(1, []Endpoint{{URL: a.URL}, {URL: b.URL}}, newTestService())

	resp, err := transporter.Send(context.Background(), rpc.NewRequest("eth_blockNumber"))
	require.NoError(t, err)

	method, err := rpc.Decode[string](resp)
	require.NoError(t, err)
	assert.Equal(t, "eth_blockNumber", method)

	assert.Equal(t, 1, transporter.CurrentIndex())
	assert.Equal(t, b.URL, transporter.CurrentURL())
	assert.Equal(t, int32(1), a.hits.Load())

	// rotation sticks for subsequent requests
	_, err = transporter.Send(context.Background(), rpc.NewRequest("eth_chainId"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), a.hits.Load())
	assert.Equal(t, int32(2), b.hits.Load())
}

func TestNoRotationOnRateLimited(t *testing.T) {
	a, b := newFakeNode(t), newFakeNode(t)
	a.status.Store(http.StatusTooManyRequests)

	transporter := MustNewTransporter(1, []Endpoint{{URL: a.URL}, {URL: b.URL}}, newTestService())

	_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_blockNumber"))
	require.Error(t, err)

	kind, ok := rpcerror.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, rpcerror.RateLimited, kind)

	// 1 attempt + 2 retries on the same endpoint
	assert.Equal(t, int32(3), a.hits.Load())
	assert.Equal(t, int32(0), b.hits.Load())
	assert.Equal(t, 0, transporter.CurrentIndex())
}

func TestRetryThrottledThenSucceed(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: json.RawMessage(`"0x1"`)})
	}))
	defer server.Close()

	transporter := MustNewTransporter(1, []Endpoint{{URL: server.URL}}, newTestService())

	result, err := rpc.CallContext[string](transporter, context.Background(), "eth_chainId")
	require.NoError(t, err)
	assert.Equal(t, "0x1", result)
	assert.Equal(t, int32(3), hits.Load())
}

func TestAllEndpointsExhausted(t *testing.T) {
	a, b := newFakeNode(t), newFakeNode(t)
	a.status.Store(http.StatusBadGateway)
	b.status.Store(http.StatusServiceUnavailable)

	transporter := MustNewTransporter(1, []Endpoint{{URL: a.URL}, {URL: b.URL}}, newTestService())

	_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_blockNumber"))

	var classified *rpcerror.ClassifiedError
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, b.URL, classified.URL)
	assert.Equal(t, http.StatusServiceUnavailable, classified.Code)

	var httpErr *rpc.HTTPError
	require.True(t, errors.As(err, &httpErr))

	assert.Equal(t, int32(1), a.hits.Load())
	assert.Equal(t, int32(1), b.hits.Load())
}

func TestConcurrentRotationConverges(t *testing.T) {
	a, b := newFakeNode(t), newFakeNode(t)
	a.status.Store(http.StatusServiceUnavailable)

	transporter := MustNewTransporter(1, []Endpoint{{URL: a.URL}, {URL: b.URL}}, newTestService())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_blockNumber"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transporter.CurrentIndex())
	assert.Equal(t, int32(20), b.hits.Load())
}

func TestSendBatchPermuted(t *testing.T) {
	node := newFakeNode(t)
	node.reverse = true

	transporter := MustNewTransporter(1, []Endpoint{{URL: node.URL}}, newTestService())

	requests := []*rpc.Request{
		rpc.NewRequest("eth_chainId"),
		rpc.NewRequest("eth_blockNumber"),
		rpc.NewRequest("eth_gasPrice"),
	}

	results, err := rpc.BatchCallContext[string](transporter, context.Background(), requests...)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, v := range requests {
		require.NoError(t, results[i].Error)
		assert.Equal(t, v.Method, results[i].Data)
	}
}

func TestSendBatchErrorObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"batch too large"}}`))
	}))
	defer server.Close()

	transporter := MustNewTransporter(1, []Endpoint{{URL: server.URL}}, newTestService())

	_, err := transporter.SendBatch(context.Background(), rpc.Batch{rpc.NewRequest("a"), rpc.NewRequest("b")})

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32600, rpcErr.Code)
}

func TestSendBatchUnknownIDRotates(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"jsonrpc":"2.0","id":987654321,"result":"0x1"}]`))
	}))
	defer bad.Close()

	good := newFakeNode(t)

	transporter := MustNewTransporter(1, []Endpoint{{URL: bad.URL}, {URL: good.URL}}, newTestService())

	req := rpc.NewRequest("eth_chainId")
	responses, err := transporter.SendBatch(context.Background(), rpc.Batch{req})
	require.NoError(t, err)
	assert.Contains(t, responses.ByID(), req.ID)
	assert.Equal(t, 1, transporter.CurrentIndex())
}

func TestMalformedResponseIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	transporter := MustNewTransporter(1, []Endpoint{{URL: server.URL}}, newTestService())

	_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_chainId"))
	assert.True(t, errors.Is(err, rpc.ErrProtocol))
}

func TestPrivateRelayInterceptor(t *testing.T) {
	public, relay := newFakeNode(t), newFakeNode(t)

	interceptor := NewPrivateRelayInterceptor(Endpoint{URL: relay.URL, Headers: map[string]string{"X-Relay": "1"}})
	transporter := MustNewTransporter(1, []Endpoint{{URL: public.URL}}, newTestService(), interceptor)

	_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_sendRawTransaction", "0x00"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), relay.hits.Load())
	assert.Equal(t, int32(0), public.hits.Load())

	_, err = transporter.Send(context.Background(), rpc.NewRequest("eth_getBalance", "0x00", "latest"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), public.hits.Load())

	// mixed batch goes to public endpoint
	_, err = transporter.SendBatch(context.Background(), rpc.Batch{
		rpc.NewRequest("eth_sendRawTransaction", "0x00"),
		rpc.NewRequest("eth_chainId"),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), public.hits.Load())
	assert.Equal(t, int32(1), relay.hits.Load())
}

func TestRelayFailureDoesNotRotate(t *testing.T) {
	a, b, relay := newFakeNode(t), newFakeNode(t), newFakeNode(t)
	relay.status.Store(http.StatusServiceUnavailable)

	interceptor := NewPrivateRelayInterceptor(Endpoint{URL: relay.URL})
	transporter := MustNewTransporter(1, []Endpoint{{URL: a.URL}, {URL: b.URL}}, newTestService(), interceptor)

	_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_sendRawTransaction", "0x00"))
	require.Error(t, err)
	assert.Equal(t, 0, transporter.CurrentIndex())
	assert.Equal(t, int32(1), relay.hits.Load())
}

func TestEndpointHeaders(t *testing.T) {
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		var req rpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: json.RawMessage(`null`)})
	}))
	defer server.Close()

	endpoint := Endpoint{URL: server.URL, Headers: map[string]string{"Authorization": "Bearer key"}}
	transporter := MustNewTransporter(1, []Endpoint{endpoint}, newTestService())

	resp, err := transporter.Send(context.Background(), rpc.NewRequest("eth_getTransactionReceipt", "0x01"))
	require.NoError(t, err)
	assert.True(t, resp.IsNull())
	assert.Equal(t, "Bearer key", auth.Load())
}

func TestUntrustedCertificate(t *testing.T) {
	node := &fakeNode{}
	node.Server = httptest.NewTLSServer(http.HandlerFunc(node.serve))
	defer node.Close()

	transporter := MustNewTransporter(1, []Endpoint{{URL: node.URL}}, newTestService())

	_, err := transporter.Send(context.Background(), rpc.NewRequest("eth_chainId"))
	kind, ok := rpcerror.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, rpcerror.InvalidCertificate, kind)

	// trusts the test certificate
	trusted := MustNewTransporter(1, []Endpoint{{URL: node.URL}}, newTestService().WithHTTPClient(node.Client()))

	resp, err := trusted.Send(context.Background(), rpc.NewRequest("eth_chainId"))
	require.NoError(t, err)

	method, err := rpc.Decode[string](resp)
	require.NoError(t, err)
	assert.Equal(t, "eth_chainId", method)
}

func newCircuitService() *NetworkService {
	return NewNetworkService(Option{
		RequestTimeout: time.Second,
		MaxRetries:     -1,
		CircuitBreaker: CircuitBreakerOption{
			Enabled:                true,
			RequestVolumeThreshold: 2,
			ErrorPercentThreshold:  1,
			SleepWindow:            time.Minute,
		},
	})
}

func TestCircuitIgnoresRateLimited(t *testing.T) {
	node := newFakeNode(t)
	node.status.Store(http.StatusTooManyRequests)

	service := newCircuitService()
	endpoint := Endpoint{URL: node.URL}

	for i := 0; i < 20; i++ {
		_, err := service.Post(context.Background(), endpoint, []byte(`{}`))
		require.False(t, errors.Is(err, hystrix.ErrCircuitOpen), "request %v", i)

		kind, ok := rpcerror.KindOf(err)
		require.True(t, ok)
		require.Equal(t, rpcerror.RateLimited, kind)

		// circuit metrics are collected asynchronously
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, int32(20), node.hits.Load())
}

func TestCircuitOpensOnUnavailable(t *testing.T) {
	node := newFakeNode(t)
	node.status.Store(http.StatusServiceUnavailable)

	service := newCircuitService()
	endpoint := Endpoint{URL: node.URL}

	assert.Eventually(t, func() bool {
		_, err := service.Post(context.Background(), endpoint, []byte(`{}`))
		return errors.Is(err, hystrix.ErrCircuitOpen)
	}, 3*time.Second, 10*time.Millisecond)
}
