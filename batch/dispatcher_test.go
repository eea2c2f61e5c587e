package batch

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender answers requests with the method name, and records all the calls.
type fakeSender struct {
	mu      sync.Mutex
	singles []*rpc.Request
	batches []rpc.Batch

	err     error
	reverse bool
	drop    map[rpc.RequestID]bool
	release chan struct{} // blocks calls until closed if not nil
}

func (s *fakeSender) answer(req *rpc.Request) *rpc.Response {
	return &rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: rpc.MustMarshal(req.Method)}
}

func (s *fakeSender) Send(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	s.mu.Lock()
	s.singles = append(s.singles, req)
	s.mu.Unlock()

	if s.release != nil {
		<-s.release
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.answer(req), nil
}

func (s *fakeSender) SendBatch(ctx context.Context, batch rpc.Batch) (rpc.BatchResponse, error) {
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()

	if s.release != nil {
		<-s.release
	}

	if s.err != nil {
		return nil, s.err
	}

	var responses rpc.BatchResponse
	for _, v := range batch {
		if !s.drop[v.ID] {
			responses = append(responses, s.answer(v))
		}
	}

	if s.reverse {
		for i, j := 0, len(responses)-1; i < j; i, j = i+1, j-1 {
			responses[i], responses[j] = responses[j], responses[i]
		}
	}

	return responses, nil
}

func (s *fakeSender) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.singles), len(s.batches)
}

type outcome struct {
	req  *rpc.Request
	resp *rpc.Response
	err  error
}

func sendAll(d *Dispatcher, requests ...*rpc.Request) []outcome {
	outcomes := make([]outcome, len(requests))

	var wg sync.WaitGroup
	for i, v := range requests {
		wg.Add(1)
		go func(i int, req *rpc.Request) {
			defer wg.Done()
			resp, err := d.Send(context.Background(), req)
			outcomes[i] = outcome{req, resp, err}
		}(i, v)
	}
	wg.Wait()

	return outcomes
}

func requireCorrelated(t *testing.T, outcomes []outcome) {
	for _, v := range outcomes {
		require.NoError(t, v.err)
		assert.Equal(t, v.req.ID, v.resp.ID)

		var method string
		require.NoError(t, json.Unmarshal(v.resp.Result, &method))
		assert.Equal(t, v.req.Method, method)
	}
}

func TestTriggerOnCapacity(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 3, MaxWait: time.Hour})

	outcomes := sendAll(d, rpc.NewRequest("a"), rpc.NewRequest("b"), rpc.NewRequest("c"))
	requireCorrelated(t, outcomes)

	singles, batches := sender.calls()
	assert.Equal(t, 0, singles)
	assert.Equal(t, 1, batches)
	assert.Len(t, sender.batches[0], 3)
}

func TestTriggerOnTimer(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 10, MaxWait: 100 * time.Millisecond})

	start := time.Now()
	outcomes := sendAll(d, rpc.NewRequest("a"), rpc.NewRequest("b"))
	requireCorrelated(t, outcomes)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	singles, batches := sender.calls()
	assert.Equal(t, 0, singles)
	assert.Equal(t, 1, batches)
}

func TestSingleRequestNotBatched(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 10, MaxWait: 10 * time.Millisecond})

	requireCorrelated(t, sendAll(d, rpc.NewRequest("a")))

	singles, batches := sender.calls()
	assert.Equal(t, 1, singles)
	assert.Equal(t, 0, batches)
}

func TestBatchingDisabled(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Disabled: true, Capacity: 2, MaxWait: time.Hour})

	requireCorrelated(t, sendAll(d, rpc.NewRequest("a"), rpc.NewRequest("b")))

	singles, batches := sender.calls()
	assert.Equal(t, 2, singles)
	assert.Equal(t, 0, batches)
}

func TestPermutedResponsesCorrelated(t *testing.T) {
	sender := fakeSender{reverse: true}
	d := NewDispatcher(1, &sender, Option{Capacity: 5, MaxWait: time.Hour})

	var requests []*rpc.Request
	for _, method := range []string{"a", "b", "c", "d", "e"} {
		requests = append(requests, rpc.NewRequest(method))
	}

	requireCorrelated(t, sendAll(d, requests...))
}

func TestHTTPFailureFansOut(t *testing.T) {
	failure := errors.New("HTTP 502 Bad Gateway")
	sender := fakeSender{err: failure}
	d := NewDispatcher(1, &sender, Option{Capacity: 3, MaxWait: time.Hour})

	outcomes := sendAll(d, rpc.NewRequest("a"), rpc.NewRequest("b"), rpc.NewRequest("c"))

	for _, v := range outcomes {
		assert.Nil(t, v.resp)
		assert.Same(t, failure, v.err)
	}

	_, batches := sender.calls()
	assert.Equal(t, 1, batches)
}

func TestUnknownResponseIDFailsWholeBatch(t *testing.T) {
	a, b := rpc.NewRequest("a"), rpc.NewRequest("b")
	sender := unknownIDSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 2, MaxWait: time.Hour})

	for _, v := range sendAll(d, a, b) {
		assert.True(t, errors.Is(v.err, rpc.ErrProtocol))
	}
}

type unknownIDSender struct {
	fakeSender
}

func (s *unknownIDSender) SendBatch(ctx context.Context, batch rpc.Batch) (rpc.BatchResponse, error) {
	return rpc.BatchResponse{{ID: batch[0].ID}, {ID: 1 << 62, Result: json.RawMessage(`1`)}}, nil
}

func TestMissingResponse(t *testing.T) {
	a, b, c := rpc.NewRequest("a"), rpc.NewRequest("b"), rpc.NewRequest("c")
	sender := fakeSender{drop: map[rpc.RequestID]bool{b.ID: true}}
	d := NewDispatcher(1, &sender, Option{Capacity: 3, MaxWait: time.Hour})

	outcomes := sendAll(d, a, b, c)

	requireCorrelated(t, []outcome{outcomes[0], outcomes[2]})
	assert.True(t, errors.Is(outcomes[1].err, ErrResponseNotFound))
}

func TestDuplicateSubscribersShareResponse(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 2, MaxWait: 200 * time.Millisecond})

	req := rpc.NewRequest("eth_blockNumber")
	outcomes := sendAll(d, req, req, req)
	requireCorrelated(t, outcomes)

	// duplicates are not counted for capacity, so the single request is sent on timer
	singles, batches := sender.calls()
	assert.Equal(t, 1, singles)
	assert.Equal(t, 0, batches)
}

func TestConflictingRequestIDFailsFast(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 10, MaxWait: 500 * time.Millisecond})

	first := rpc.NewRequest("eth_blockNumber")
	conflict := &rpc.Request{JSONRPC: rpc.Version, ID: first.ID, Method: "eth_chainId", Params: []any{}}

	done := make(chan outcome, 1)
	go func() {
		resp, err := d.Send(context.Background(), first)
		done <- outcome{first, resp, err}
	}()

	// wait for the first one registered
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.open != nil && d.open.registered == 1
	}, time.Second, time.Millisecond)

	_, err := d.Send(context.Background(), conflict)
	assert.True(t, errors.Is(err, ErrDuplicateRequestID))

	requireCorrelated(t, []outcome{<-done})
}

func TestCancelBeforeTrigger(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 3, MaxWait: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := rpc.NewRequest("cancelled")

	done := make(chan error, 1)
	go func() {
		_, err := d.Send(ctx, cancelled)
		done <- err
	}()

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.open != nil && d.open.registered == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	// cancelled id still counts for capacity, so the window triggers on the 3rd id
	outcomes := sendAll(d, rpc.NewRequest("b"), rpc.NewRequest("c"))
	requireCorrelated(t, outcomes)

	_, batches := sender.calls()
	require.Equal(t, 1, batches)
	assert.Len(t, sender.batches[0], 2)
	for _, v := range sender.batches[0] {
		assert.NotEqual(t, cancelled.ID, v.ID)
	}
}

func TestLateCancelIgnored(t *testing.T) {
	sender := fakeSender{release: make(chan struct{})}
	d := NewDispatcher(1, &sender, Option{Capacity: 2, MaxWait: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	a, b := rpc.NewRequest("a"), rpc.NewRequest("b")

	doneA := make(chan error, 1)
	go func() {
		_, err := d.Send(ctx, a)
		doneA <- err
	}()

	doneB := make(chan outcome, 1)
	go func() {
		resp, err := d.Send(context.Background(), b)
		doneB <- outcome{b, resp, err}
	}()

	// batch in flight
	require.Eventually(t, func() bool {
		_, batches := sender.calls()
		return batches == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-doneA, context.Canceled))

	close(sender.release)
	requireCorrelated(t, []outcome{<-doneB})
	assert.Len(t, sender.batches[0], 2)
}

func TestTriggerOnceUnderConcurrency(t *testing.T) {
	sender := fakeSender{reverse: true}
	d := NewDispatcher(1, &sender, Option{Capacity: 5, MaxWait: 5 * time.Millisecond})

	var requests []*rpc.Request
	for i := 0; i < 100; i++ {
		requests = append(requests, rpc.NewRequest("m", i))
	}

	var delivered atomic.Int32
	for _, v := range sendAll(d, requests...) {
		require.NoError(t, v.err)
		assert.Equal(t, v.req.ID, v.resp.ID)
		delivered.Add(1)
	}
	assert.Equal(t, int32(100), delivered.Load())

	sender.mu.Lock()
	defer sender.mu.Unlock()

	total := len(sender.singles)
	for _, v := range sender.batches {
		assert.LessOrEqual(t, len(v), 5)
		total += len(v)
	}
	assert.Equal(t, 100, total)
}

func TestCloseFlushesOpenWindow(t *testing.T) {
	sender := fakeSender{}
	d := NewDispatcher(1, &sender, Option{Capacity: 10, MaxWait: time.Hour})

	done := make(chan outcome, 2)
	for _, v := range []*rpc.Request{rpc.NewRequest("a"), rpc.NewRequest("b")} {
		go func(req *rpc.Request) {
			resp, err := d.Send(context.Background(), req)
			done <- outcome{req, resp, err}
		}(v)
	}

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.open != nil && d.open.registered == 2
	}, time.Second, time.Millisecond)

	d.Close()

	requireCorrelated(t, []outcome{<-done, <-done})
}
