package parallel

import (
	"context"
	"runtime"
	"sync"
)

type outcome[T any] struct {
	result Result[T]
	err    error
}

// Serial executes tasks with a number of routines, and collects results in the order of
// tasks. If window specified, at most window tasks are executed ahead of collection.
//
// It stops at the first error of ParallelDo or ParallelCollect, or when ctx is done.
func Serial[T any](ctx context.Context, parallelizable Interface[T], tasks int, option ...SerialOption) error {
	if tasks <= 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var opt SerialOption
	if len(option) > 0 {
		opt = option[0]
	}
	opt.Normalize(tasks)

	ahead := tasks
	if opt.Window > 0 {
		ahead = opt.Window
	}

	workerCtx, cancel := context.WithCancel(ctx)
	taskCh := make(chan int)
	outcomeCh := make(chan outcome[T], opt.Routines)

	var wg sync.WaitGroup
	for i := 0; i < opt.Routines; i++ {
		wg.Add(1)
		go work(workerCtx, i, parallelizable, taskCh, outcomeCh, &wg)
	}

	err := collect(ctx, parallelizable, taskCh, outcomeCh, tasks, ahead)

	close(taskCh)
	cancel()
	wg.Wait()

	return err
}

func work[T any](ctx context.Context, routine int, parallelizable Interface[T], taskCh <-chan int, outcomeCh chan<- outcome[T], wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range taskCh {
		value, err := parallelizable.ParallelDo(ctx, routine, task)

		select {
		case outcomeCh <- outcome[T]{Result[T]{routine, task, value}, err}:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}

// collect dispatches tasks no more than ahead of the next one to collect, and
// collects results in sequence.
func collect[T any](ctx context.Context, parallelizable Interface[T], taskCh chan<- int, outcomeCh <-chan outcome[T], tasks, ahead int) error {
	pending := make(map[int]Result[T])
	next, dispatched := 0, 0

	for next < tasks {
		// nil channel blocks, so dispatching pauses once window is full
		var dispatchCh chan<- int
		if dispatched < tasks && dispatched < next+ahead {
			dispatchCh = taskCh
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case dispatchCh <- dispatched:
			dispatched++
		case o := <-outcomeCh:
			if o.err != nil {
				return o.err
			}

			pending[o.result.Task] = o.result

			for {
				result, ok := pending[next]
				if !ok {
					break
				}

				if err := parallelizable.ParallelCollect(&result); err != nil {
					return err
				}

				delete(pending, next)
				next++
			}
		}
	}

	return nil
}

type SerialOption struct {
	Routines int
	Window   int
}

func (opt *SerialOption) Normalize(tasks int) {
	// 0 < routines <= tasks
	if opt.Routines == 0 {
		opt.Routines = runtime.GOMAXPROCS(0)
	}

	if opt.Routines > tasks {
		opt.Routines = tasks
	}

	// window disabled
	if opt.Window == 0 {
		return
	}

	// routines <= window <= tasks
	if opt.Window < opt.Routines {
		opt.Window = opt.Routines
	}

	if opt.Window > tasks {
		opt.Window = tasks
	}
}
