package parallel

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type RpcOption struct {
	Parallel       SerialOption
	ReportInterval time.Duration
}

type RpcResult[T any] struct {
	Data    T
	Err     error
	Latency time.Duration
}

// rpcExecutor is used for RPC execution in parallel.
type rpcExecutor[K comparable, T any] struct {
	option         RpcOption
	keys           []K
	rpcFunc        func(context.Context, K) (T, error)
	results        map[K]*RpcResult[T]
	lastReportTime time.Time
}

// QueryRpc calls rpcFunc for each key in parallel, e.g. to query balances of many
// addresses, and returns results of all keys. RPC errors are held in results.
func QueryRpc[K comparable, T any](ctx context.Context, keys []K, rpcFunc func(context.Context, K) (T, error), option ...RpcOption) map[K]*RpcResult[T] {
	var opt RpcOption
	if len(option) > 0 {
		opt = option[0]
	}

	executor := rpcExecutor[K, T]{
		option:         opt,
		keys:           keys,
		rpcFunc:        rpcFunc,
		results:        make(map[K]*RpcResult[T]),
		lastReportTime: time.Now(),
	}

	// RPC errors are held in results, so only fails when ctx is done
	if err := Serial[*RpcResult[T]](ctx, &executor, len(keys), opt.Parallel); err != nil {
		for _, v := range keys {
			if _, ok := executor.results[v]; !ok {
				executor.results[v] = &RpcResult[T]{Err: err}
			}
		}
	}

	return executor.results
}

func (executor *rpcExecutor[K, T]) ParallelDo(ctx context.Context, routine, task int) (*RpcResult[T], error) {
	var result RpcResult[T]
	start := time.Now()
	result.Data, result.Err = executor.rpcFunc(ctx, executor.keys[task])
	result.Latency = time.Since(start)

	return &result, nil
}

func (executor *rpcExecutor[K, T]) ParallelCollect(result *Result[*RpcResult[T]]) error {
	key := executor.keys[result.Task]
	executor.results[key] = result.Value

	if executor.option.ReportInterval > 0 && time.Since(executor.lastReportTime) > executor.option.ReportInterval {
		logrus.WithFields(logrus.Fields{
			"total":     len(executor.keys),
			"completed": result.Task + 1,
		}).Info("Progress update")

		executor.lastReportTime = time.Now()
	}

	return nil
}
