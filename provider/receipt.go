package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/0glabs/0g-wallet-rpc/common/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// ErrTransactionNotCompleted indicates the transaction is not packed into a block yet,
// and it is retryable to query the receipt later.
var ErrTransactionNotCompleted = errors.New("Transaction not completed yet")

// Receipt is the transaction receipt.
type Receipt struct {
	TxHash            common.Hash     `json:"transactionHash"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       *hexutil.Big    `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	ContractAddress   *common.Address `json:"contractAddress"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice,omitempty"`
	Status            *hexutil.Uint64 `json:"status"`
	Logs              []*types.Log    `json:"logs"`

	// TxExecErrorMsg is the execution error reported by some chains.
	TxExecErrorMsg *string `json:"txExecErrorMsg,omitempty"`
}

// Completed returns whether the transaction is packed into a block, i.e. the block
// number is present and greater than zero.
func (r *Receipt) Completed() bool {
	return r != nil && r.BlockNumber != nil && r.BlockNumber.ToInt().Sign() > 0
}

// TransactionReceipt returns the receipt of a completed transaction, or
// ErrTransactionNotCompleted if the transaction is pending or unknown.
func (p *Provider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	raw, err := rpc.CallRaw(p.dispatcher, ctx, "eth_getTransactionReceipt", txHash)
	if err != nil {
		return nil, p.classify(err)
	}

	if isNull(raw) {
		return nil, ErrTransactionNotCompleted
	}

	var receipt Receipt
	if err = json.Unmarshal(raw, &receipt); err != nil {
		return nil, rpc.NewProtocolError("failed to decode receipt: %v", err)
	}

	if !receipt.Completed() {
		return nil, ErrTransactionNotCompleted
	}

	return &receipt, nil
}

type RetryOption struct {
	// NRetries is the max number of polls, 0 for unlimited until ctx done.
	NRetries int
	Interval time.Duration

	// RemindInterval is the interval to warn about the pending transaction.
	RemindInterval time.Duration
}

// WaitForReceipt polls the receipt until the transaction completed. If successRequired,
// a failed transaction is returned as error.
func (p *Provider) WaitForReceipt(ctx context.Context, txHash common.Hash, successRequired bool, opts ...RetryOption) (*Receipt, error) {
	var opt RetryOption
	if len(opts) > 0 {
		opt = opts[0]
	}

	if opt.Interval == 0 {
		opt.Interval = time.Second * 3
	}

	if opt.RemindInterval == 0 {
		opt.RemindInterval = time.Minute
	}

	reminder := util.NewReminder(p.logger, opt.RemindInterval)

	for nRetries := 1; ; nRetries++ {
		receipt, err := p.TransactionReceipt(ctx, txHash)
		if err == nil {
			p.logger.WithField("hash", txHash).WithField("block", receipt.BlockNumber).Debug("Transaction receipt")
			return checkReceiptStatus(receipt, successRequired)
		}

		if !errors.Is(err, ErrTransactionNotCompleted) {
			return nil, err
		}

		reminder.RemindWith("Transaction not executed yet", "hash", txHash)

		if opt.NRetries > 0 && nRetries >= opt.NRetries {
			return nil, errors.WithMessagef(err, "Transaction not executed after %v retries", opt.NRetries)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opt.Interval):
		}
	}
}

func checkReceiptStatus(receipt *Receipt, successRequired bool) (*Receipt, error) {
	if receipt.Status == nil {
		return nil, errors.New("Status not found in receipt")
	}

	switch uint64(*receipt.Status) {
	case types.ReceiptStatusSuccessful:
		return receipt, nil
	case types.ReceiptStatusFailed:
		if !successRequired {
			return receipt, nil
		}

		if receipt.TxExecErrorMsg == nil {
			return nil, errors.New("Transaction execution failed")
		}

		return nil, errors.Errorf("Transaction execution failed, %v", *receipt.TxExecErrorMsg)
	default:
		return nil, errors.Errorf("Unknown receipt status %v", *receipt.Status)
	}
}
