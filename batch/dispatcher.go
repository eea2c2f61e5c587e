package batch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/metrics"
	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrDuplicateRequestID = errors.New("Different request registered with the same id")
	ErrResponseNotFound   = errors.New("Response not found in batch")

	errWindowTriggered = errors.New("Batch window already triggered")
)

// Requires Dispatcher implements the rpc.BatchSender interface.
var _ rpc.BatchSender = (*Dispatcher)(nil)

type Option struct {
	Disabled bool          `yaml:"disabled"`
	Capacity int           `yaml:"capacity" default:"20" validate:"gte=0"`
	MaxWait  time.Duration `yaml:"maxWait" default:"50ms"`
}

// Dispatcher coalesces single requests sent within a short time window into one
// batch request, and fans out responses to callers by request id.
type Dispatcher struct {
	chainLabel string
	sender     rpc.BatchSender
	option     Option

	mu   sync.Mutex
	open *window
}

// NewDispatcher creates a dispatcher on top of the specified sender, typically a
// transporter of chain.
func NewDispatcher(chainID uint64, sender rpc.BatchSender, option ...Option) *Dispatcher {
	var opt Option
	if len(option) > 0 {
		opt = option[0]
	}
	defaults.SetDefaults(&opt)

	return &Dispatcher{
		chainLabel: strconv.FormatUint(chainID, 10),
		sender:     sender,
		option:     opt,
	}
}

// Send sends the request in batch along with other requests, unless batching disabled.
//
// The request id must be assigned before, and be unique among pending requests. Submitting
// the same request again while pending shares the response, whereas a different request
// with a pending id fails with ErrDuplicateRequestID.
//
// If ctx is done before the batch triggered, the request is withdrawn from batch once no
// other caller is waiting for it.
func (d *Dispatcher) Send(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	if d.option.Disabled {
		return d.sender.Send(ctx, req)
	}

	w, sub, ch, err := d.register(req)
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		d.deregister(w, req.ID, sub)
		return nil, ctx.Err()
	}
}

// SendBatch sends an explicit batch directly.
func (d *Dispatcher) SendBatch(ctx context.Context, batch rpc.Batch) (rpc.BatchResponse, error) {
	return d.sender.SendBatch(ctx, batch)
}

// Close triggers the open window if any.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open != nil && !d.open.triggered {
		d.trigger(d.open)
	}
}

func (d *Dispatcher) register(req *rpc.Request) (*window, uint64, chan result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.open
	if w == nil || w.triggered || w.full() {
		w = newWindow(d.option.Capacity)
		d.open = w
	}

	sub, ch, err := w.register(req)
	if err != nil {
		return nil, 0, nil, err
	}

	if w.full() {
		d.trigger(w)
	} else if w.timer == nil {
		w.timer = time.AfterFunc(d.option.MaxWait, func() {
			d.mu.Lock()
			defer d.mu.Unlock()

			if !w.triggered {
				d.trigger(w)
			}
		})
	}

	return w, sub, ch, nil
}

func (d *Dispatcher) deregister(w *window, id rpc.RequestID, sub uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !w.deregister(id, sub) {
		logrus.WithFields(logrus.Fields{
			"window": w.id,
			"id":     id,
		}).Debug("Batch already triggered, late cancellation ignored")
	}
}

// trigger must be called with lock held, and only once per window.
func (d *Dispatcher) trigger(w *window) {
	w.triggered = true

	if w.timer != nil {
		w.timer.Stop()
	}

	if d.open == w {
		d.open = nil
	}

	tasks := w.snapshot()
	if len(tasks) == 0 {
		return
	}

	go d.flush(w.id, tasks)
}

// flush sends pending requests of a triggered window and fans out responses. Callers
// may have abandoned waiting, so it runs detached from their contexts.
func (d *Dispatcher) flush(windowID string, tasks []*task) {
	ctx := context.Background()

	metrics.BatchSize.WithLabelValues(d.chainLabel).Observe(float64(len(tasks)))

	if len(tasks) == 1 {
		resp, err := d.sender.Send(ctx, tasks[0].request)
		tasks[0].publish(resp, err)
		return
	}

	batch := make(rpc.Batch, 0, len(tasks))
	for _, v := range tasks {
		batch = append(batch, v.request)
	}

	logger := logrus.WithFields(logrus.Fields{
		"window": windowID,
		"size":   len(batch),
	})
	logger.Debug("Dispatch batch request")

	responses, err := d.sender.SendBatch(ctx, batch)
	var correlated map[rpc.RequestID]*rpc.Response
	if err == nil {
		correlated, err = responses.Correlate(batch)
	}

	if err != nil {
		logger.WithError(err).Debug("Batch request failed")

		for _, v := range tasks {
			v.publish(nil, err)
		}

		return
	}

	for _, v := range tasks {
		if resp, ok := correlated[v.request.ID]; ok {
			v.publish(resp, nil)
		} else {
			v.publish(nil, errors.WithMessagef(ErrResponseNotFound, "id = %v, method = %v", v.request.ID, v.request.Method))
		}
	}
}
