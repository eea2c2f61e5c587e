package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/metrics"
	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

type CacheOption struct {
	TTL  time.Duration `yaml:"ttl" default:"10s"`
	Size int           `yaml:"size" default:"1024"`

	// RenderHitDelay delays cache hits of calls for live UI rendering.
	RenderHitDelay time.Duration `yaml:"renderHitDelay"`
}

// Call is a read-only contract method call.
type Call struct {
	Contract common.Address
	ABI      *ABI
	Method   string
	Args     []any
	Block    string // defaults to latest

	// ForRendering marks calls used for live UI rendering, whose cache hits are delayed
	// to avoid flicker.
	ForRendering bool
}

type callOutcome struct {
	values []any
	err    error
}

// CachedCaller caches results of read-only contract calls, including failures, and
// guarantees at most one call in flight for the same key.
//
// Returned values are shared among callers and must not be modified.
type CachedCaller struct {
	sender rpc.Sender
	option CacheOption
	cache  *expirable.LRU[string, *callOutcome]
	group  singleflight.Group
}

// NewCachedCaller creates a cached caller to send eth_call with the specified sender.
func NewCachedCaller(sender rpc.Sender, option ...CacheOption) *CachedCaller {
	var opt CacheOption
	if len(option) > 0 {
		opt = option[0]
	}
	defaults.SetDefaults(&opt)

	return &CachedCaller{
		sender: sender,
		option: opt,
		cache:  expirable.NewLRU[string, *callOutcome](opt.Size, nil, opt.TTL),
	}
}

// Call returns the unpacked outputs of contract method.
func (c *CachedCaller) Call(ctx context.Context, call Call) ([]any, error) {
	if call.ABI == nil {
		return nil, errors.New("ABI not specified")
	}

	data, err := call.ABI.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to pack arguments for method %v", call.Method)
	}

	if len(call.Block) == 0 {
		call.Block = BlockLatest
	}

	key := fmt.Sprintf("%v|%v|%v|%v|%v", call.Contract.Hex(), call.Method, hexutil.Encode(data), call.ABI.Digest.Hex(), call.Block)

	if outcome, ok := c.cache.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("call", "hit").Inc()

		if call.ForRendering && c.option.RenderHitDelay > 0 {
			select {
			case <-time.After(c.option.RenderHitDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return outcome.values, outcome.err
	}

	// the shared call outlives any single caller
	sharedCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		// completed by another flight just before this one started
		if outcome, ok := c.cache.Peek(key); ok {
			return outcome, nil
		}

		values, err := c.call(sharedCtx, call, data)
		outcome := &callOutcome{values, err}
		c.cache.Add(key, outcome)

		return outcome, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			metrics.CacheLookupsTotal.WithLabelValues("call", "shared").Inc()
		} else {
			metrics.CacheLookupsTotal.WithLabelValues("call", "miss").Inc()
		}

		outcome := r.Val.(*callOutcome)
		return outcome.values, outcome.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CachedCaller) call(ctx context.Context, call Call, data []byte) ([]any, error) {
	output, err := CallContract(ctx, c.sender, CallMsg{To: &call.Contract, Data: data}, call.Block)
	if err != nil {
		return nil, err
	}

	values, err := call.ABI.Unpack(call.Method, output)
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to unpack outputs of method %v", call.Method)
	}

	return values, nil
}

// CallContract sends eth_call and returns the raw output.
func CallContract(ctx context.Context, sender rpc.Sender, msg CallMsg, block string) ([]byte, error) {
	if len(block) == 0 {
		block = BlockLatest
	}

	output, err := rpc.CallContext[hexutil.Bytes](sender, ctx, "eth_call", msg, block)
	if err != nil {
		return nil, err
	}

	return output, nil
}
