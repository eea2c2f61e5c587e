package batch

import (
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type result struct {
	resp *rpc.Response
	err  error
}

// task is a pending request along with all the callers waiting for its response.
type task struct {
	request     *rpc.Request
	fingerprint string
	subscribers map[uint64]chan result
}

func (t *task) publish(resp *rpc.Response, err error) {
	for _, ch := range t.subscribers {
		ch <- result{resp, err}
	}
}

// window groups requests into one batch. All fields are guarded by the dispatcher
// mutex until triggered, and are immutable afterwards.
type window struct {
	id         string
	capacity   int
	tasks      map[rpc.RequestID]*task
	order      []rpc.RequestID
	registered int // distinct ids ever registered, never decreased
	triggered  bool
	timer      *time.Timer
	nextSub    uint64
}

func newWindow(capacity int) *window {
	return &window{
		id:       uuid.NewString(),
		capacity: capacity,
		tasks:    make(map[rpc.RequestID]*task),
	}
}

func (w *window) full() bool {
	return w.registered >= w.capacity
}

// register adds the request into window, and returns the subscription id along with
// the channel to receive response.
func (w *window) register(req *rpc.Request) (uint64, chan result, error) {
	if w.triggered {
		return 0, nil, errWindowTriggered
	}

	fingerprint := req.Fingerprint()

	t, ok := w.tasks[req.ID]
	if ok && t.fingerprint != fingerprint {
		return 0, nil, errors.WithMessagef(ErrDuplicateRequestID, "id = %v, method = %v", req.ID, req.Method)
	}

	if !ok {
		t = &task{
			request:     req,
			fingerprint: fingerprint,
			subscribers: make(map[uint64]chan result),
		}
		w.tasks[req.ID] = t
		w.order = append(w.order, req.ID)
		w.registered++
	}

	w.nextSub++
	ch := make(chan result, 1)
	t.subscribers[w.nextSub] = ch

	return w.nextSub, ch, nil
}

// deregister removes the subscription, and drops the request if no subscriber left.
// Returns false if window already triggered.
func (w *window) deregister(id rpc.RequestID, sub uint64) bool {
	if w.triggered {
		return false
	}

	t, ok := w.tasks[id]
	if !ok {
		return true
	}

	delete(t.subscribers, sub)
	if len(t.subscribers) == 0 {
		delete(w.tasks, id)
	}

	return true
}

// snapshot returns pending tasks in registration order.
func (w *window) snapshot() []*task {
	tasks := make([]*task, 0, len(w.tasks))
	seen := make(map[rpc.RequestID]struct{}, len(w.tasks))

	for _, id := range w.order {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if t, ok := w.tasks[id]; ok {
			tasks = append(tasks, t)
		}
	}

	return tasks
}
