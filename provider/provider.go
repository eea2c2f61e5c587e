package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0glabs/0g-wallet-rpc/batch"
	wcommon "github.com/0glabs/0g-wallet-rpc/common"
	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/0glabs/0g-wallet-rpc/rpcerror"
	"github.com/0glabs/0g-wallet-rpc/transport"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const keyBlockNumber = "latest"

var ErrBlockNotFound = errors.New("Block not found")

// Provider is the blockchain access of a chain for wallet.
//
// Reads are coalesced by the batch dispatcher, whereas transaction submission goes
// to the transporter directly so that it could be routed to a private relay. Errors
// are returned as *rpcerror.ClassifiedError if recognized.
type Provider struct {
	config Config
	logger *logrus.Entry

	transporter *transport.Transporter
	dispatcher  *batch.Dispatcher
	caller      *contract.CachedCaller
	fetcher     *contract.EventLogFetcher

	blockNumbers *ttlcache.Cache[string, uint64]
}

// MustNew creates a provider, and exits on invalid configuration.
func MustNew(config Config, opt ...wcommon.LogOption) *Provider {
	provider, err := New(config, opt...)
	if err != nil {
		logrus.WithError(err).WithField("chain", config.ID).Fatal("Failed to create provider")
	}

	return provider
}

// New creates a provider for the chain.
func New(config Config, opt ...wcommon.LogOption) (*Provider, error) {
	return NewWithPoster(config, transport.NewNetworkService(config.Network), opt...)
}

// NewWithPoster creates a provider that posts payloads with the specified poster.
func NewWithPoster(config Config, poster transport.Poster, opt ...wcommon.LogOption) (*Provider, error) {
	defaults.SetDefaults(&config)
	defaults.SetDefaults(&config.Gas)

	var interceptors []transport.Interceptor
	if config.PrivateRelay != nil {
		interceptors = append(interceptors, transport.NewPrivateRelayInterceptor(*config.PrivateRelay, config.RelayMethods...))
	}

	transporter, err := transport.NewTransporter(config.ID, config.Endpoints, poster, interceptors...)
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to create transporter for chain %v", config.ID)
	}

	dispatcher := batch.NewDispatcher(config.ID, transporter, config.Batch)

	return &Provider{
		config:       config,
		logger:       wcommon.NewLogger(logrus.Fields{"chain": config.ID}, opt...),
		transporter:  transporter,
		dispatcher:   dispatcher,
		caller:       contract.NewCachedCaller(dispatcher, config.Cache),
		fetcher:      contract.NewEventLogFetcher(dispatcher),
		blockNumbers: ttlcache.New[string, uint64](ttlcache.WithTTL[string, uint64](config.BlockNumberTTL), ttlcache.WithDisableTouchOnHit[string, uint64]()),
	}, nil
}

// Config returns the chain configuration.
func (p *Provider) Config() Config {
	return p.config
}

// CurrentURL returns the endpoint in use.
func (p *Provider) CurrentURL() string {
	return p.transporter.CurrentURL()
}

// Close flushes pending batched requests.
func (p *Provider) Close() {
	p.dispatcher.Close()
}

func (p *Provider) classify(err error) error {
	if err == nil {
		return nil
	}

	if classified := rpcerror.Classify(err, p.config.ID, p.transporter.CurrentURL()); classified != nil {
		return classified
	}

	return err
}

func call[T any](p *Provider, ctx context.Context, method string, args ...any) (T, error) {
	result, err := rpc.CallContext[T](p.dispatcher, ctx, method, args...)
	return result, p.classify(err)
}

// Balance returns the native token balance of address at the latest block.
func (p *Provider) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := call[*hexutil.Big](p, ctx, "eth_getBalance", address, contract.BlockLatest)
	if err != nil {
		return nil, err
	}

	return balance.ToInt(), nil
}

// Balances returns native token balances of addresses in a single batch request.
// Balances failed to query are nil along with the classified error.
func (p *Provider) Balances(ctx context.Context, addresses []common.Address) ([]*big.Int, []error, error) {
	if len(addresses) == 0 {
		return nil, nil, nil
	}

	requests := make([]*rpc.Request, 0, len(addresses))
	for _, v := range addresses {
		requests = append(requests, rpc.NewRequest("eth_getBalance", v, contract.BlockLatest))
	}

	results, err := rpc.BatchCallContext[*hexutil.Big](p.dispatcher, ctx, requests...)
	if err != nil {
		return nil, nil, p.classify(err)
	}

	balances := make([]*big.Int, len(results))
	errs := make([]error, len(results))

	for i, v := range results {
		if v.Error != nil {
			errs[i] = p.classify(v.Error)
		} else {
			balances[i] = v.Data.ToInt()
		}
	}

	return balances, errs, nil
}

// TokenBalance returns the ERC20 token balance of owner, which is cached for a while.
func (p *Provider) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	values, err := p.Call(ctx, contract.Call{Contract: token, ABI: contract.ERC20, Method: "balanceOf", Args: []any{owner}})
	if err != nil {
		return nil, err
	}

	if len(values) != 1 {
		return nil, errors.Errorf("Unexpected number of outputs %v", len(values))
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("Unexpected balance type %T", values[0])
	}

	return balance, nil
}

// NextNonce returns the nonce for the next transaction of address, including pending ones.
func (p *Provider) NextNonce(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := call[hexutil.Uint64](p, ctx, "eth_getTransactionCount", address, contract.BlockPending)
	return uint64(nonce), err
}

// CallContract executes eth_call without cache.
func (p *Provider) CallContract(ctx context.Context, msg contract.CallMsg, block string) ([]byte, error) {
	output, err := contract.CallContract(ctx, p.dispatcher, msg, block)
	return output, p.classify(err)
}

// Call calls a read-only contract method, whose result is cached for a while.
func (p *Provider) Call(ctx context.Context, c contract.Call) ([]any, error) {
	values, err := p.caller.Call(ctx, c)
	return values, p.classify(err)
}

// GetLogs returns decoded event logs. Concurrent identical queries share one request.
func (p *Provider) GetLogs(ctx context.Context, query contract.EventQuery) ([]*contract.DecodedLog, error) {
	logs, err := p.fetcher.GetLogs(ctx, query)
	return logs, p.classify(err)
}

// FilterLogs returns raw logs of filter.
func (p *Provider) FilterLogs(ctx context.Context, filter contract.LogFilter) ([]*types.Log, error) {
	logs, err := contract.FilterLogs(ctx, p.dispatcher, filter)
	return logs, p.classify(err)
}

// SendRawTransaction submits a signed transaction and returns its hash. The request
// is never batched.
func (p *Provider) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	hash, err := rpc.CallContext[common.Hash](p.transporter, ctx, "eth_sendRawTransaction", hexutil.Bytes(rawTx))
	if err != nil {
		return common.Hash{}, p.classify(err)
	}

	p.logger.WithField("hash", hash).Debug("Transaction submitted")

	return hash, nil
}

// BlockNumber returns the latest block number, which is reused for a short while.
func (p *Provider) BlockNumber(ctx context.Context) (uint64, error) {
	if item := p.blockNumbers.Get(keyBlockNumber); item != nil {
		return item.Value(), nil
	}

	number, err := call[hexutil.Uint64](p, ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}

	p.blockNumbers.Set(keyBlockNumber, uint64(number), ttlcache.DefaultTTL)

	return uint64(number), nil
}

// Block is the block header along with transaction hashes.
type Block struct {
	Number       *hexutil.Big   `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	GasLimit     hexutil.Uint64 `json:"gasLimit"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	BaseFee      *hexutil.Big   `json:"baseFeePerGas,omitempty"`
	Transactions []common.Hash  `json:"transactions"`
}

// BlockByNumber returns the block of number, or the latest block if number is nil.
func (p *Provider) BlockByNumber(ctx context.Context, number *big.Int) (*Block, error) {
	raw, err := rpc.CallRaw(p.dispatcher, ctx, "eth_getBlockByNumber", contract.BlockTag(number), false)
	if err != nil {
		return nil, p.classify(err)
	}

	if isNull(raw) {
		return nil, ErrBlockNotFound
	}

	var block Block
	if err = json.Unmarshal(raw, &block); err != nil {
		return nil, rpc.NewProtocolError("failed to decode block: %v", err)
	}

	return &block, nil
}

// ChainID returns the chain id reported by the node.
func (p *Provider) ChainID(ctx context.Context) (uint64, error) {
	id, err := call[hexutil.Uint64](p, ctx, "eth_chainId")
	return uint64(id), err
}

// VerifyChainID checks the chain id reported by the node against configuration.
func (p *Provider) VerifyChainID(ctx context.Context) error {
	id, err := p.ChainID(ctx)
	if err != nil {
		return err
	}

	if id != p.config.ID {
		return &rpcerror.ClassifiedError{
			Kind:    rpcerror.PossibleChainIDMismatch,
			Message: fmt.Sprintf("chain id mismatch, expected %v, got %v", p.config.ID, id),
			ChainID: p.config.ID,
			URL:     p.transporter.CurrentURL(),
		}
	}

	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
