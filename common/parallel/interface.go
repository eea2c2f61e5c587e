package parallel

import "context"

type Result[T any] struct {
	Routine int
	Task    int
	Value   T
}

// Interface is implemented by tasks executed in parallel and collected in order.
type Interface[T any] interface {
	ParallelDo(ctx context.Context, routine, task int) (T, error)
	ParallelCollect(result *Result[T]) error
}
