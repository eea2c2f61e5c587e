package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0glabs/0g-wallet-rpc/common/metrics"
	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// EventQuery queries logs of a contract event.
type EventQuery struct {
	Contract  common.Address
	ABI       *ABI
	Event     string
	FromBlock *big.Int
	ToBlock   *big.Int

	// Indexed contains values of indexed event arguments in order, nil to match any.
	// E.g. {{owner}} for sent transfers, and {nil, {owner}} for received ones.
	Indexed [][]any
}

// Filter converts the query into a log filter.
func (q *EventQuery) Filter() (LogFilter, error) {
	if q.ABI == nil {
		return LogFilter{}, errors.New("ABI not specified")
	}

	event, err := q.ABI.Event(q.Event)
	if err != nil {
		return LogFilter{}, err
	}

	topics := [][]common.Hash{{event.ID}}

	if len(q.Indexed) > 0 {
		indexed, err := abi.MakeTopics(q.Indexed...)
		if err != nil {
			return LogFilter{}, errors.WithMessage(err, "Failed to make topics of indexed arguments")
		}

		topics = append(topics, indexed...)
	}

	return LogFilter{
		Addresses: []common.Address{q.Contract},
		FromBlock: q.FromBlock,
		ToBlock:   q.ToBlock,
		Topics:    topics,
	}, nil
}

// Decode decodes the logs of queried event. Logs of other events are ignored.
func (q *EventQuery) Decode(logs []*types.Log) ([]*DecodedLog, error) {
	event, err := q.ABI.Event(q.Event)
	if err != nil {
		return nil, err
	}

	var indexed abi.Arguments
	for _, v := range event.Inputs {
		if v.Indexed {
			indexed = append(indexed, v)
		}
	}

	result := make([]*DecodedLog, 0, len(logs))

	for _, log := range logs {
		if len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}

		fields := make(map[string]any)

		if err := q.ABI.UnpackIntoMap(fields, event.Name, log.Data); err != nil {
			return nil, errors.WithMessagef(err, "Failed to unpack data of log %v in tx %v", log.Index, log.TxHash)
		}

		if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
			return nil, errors.WithMessagef(err, "Failed to parse topics of log %v in tx %v", log.Index, log.TxHash)
		}

		result = append(result, &DecodedLog{Log: log, Event: event.Name, Fields: fields})
	}

	return result, nil
}

// EventLogFetcher fetches and decodes event logs. Concurrent identical queries share
// one eth_getLogs call. Results are never cached since they go stale as chain grows.
type EventLogFetcher struct {
	sender rpc.Sender
	group  singleflight.Group
}

// NewEventLogFetcher creates a log fetcher to send eth_getLogs with the specified sender.
func NewEventLogFetcher(sender rpc.Sender) *EventLogFetcher {
	return &EventLogFetcher{sender: sender}
}

// GetLogs returns the decoded logs of the query. Returned logs are shared among
// concurrent callers and must not be modified.
func (f *EventLogFetcher) GetLogs(ctx context.Context, query EventQuery) ([]*DecodedLog, error) {
	filter, err := query.Filter()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%v|%v|%v|%v", query.Contract.Hex(), query.Event, query.ABI.Digest.Hex(), filter)

	sharedCtx := context.WithoutCancel(ctx)

	ch := f.group.DoChan(key, func() (any, error) {
		logs, err := FilterLogs(sharedCtx, f.sender, filter)
		if err != nil {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"contract": query.Contract,
			"event":    query.Event,
			"logs":     len(logs),
		}).Debug("Event logs fetched")

		return query.Decode(logs)
	})

	select {
	case r := <-ch:
		if r.Shared {
			metrics.CacheLookupsTotal.WithLabelValues("logs", "shared").Inc()
		} else {
			metrics.CacheLookupsTotal.WithLabelValues("logs", "miss").Inc()
		}

		if r.Err != nil {
			return nil, r.Err
		}

		return r.Val.([]*DecodedLog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FilterLogs sends eth_getLogs and returns the raw logs.
func FilterLogs(ctx context.Context, sender rpc.Sender, filter LogFilter) ([]*types.Log, error) {
	return rpc.CallContext[[]*types.Log](sender, ctx, "eth_getLogs", filter)
}
