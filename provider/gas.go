package provider

import (
	"context"
	"math/big"

	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
)

// gas price buffer and clamping step
var gasPriceUnit = big.NewInt(params.GWei)

// Gas is the gas price and limit to send a transaction.
type Gas struct {
	Price *big.Int `json:"price"`
	Limit uint64   `json:"limit"`
}

// GasOverride is the gas specified by user, which takes effect only if the chain
// allows users to change gas. Zero values are ignored.
type GasOverride struct {
	Price *big.Int
	Limit uint64
}

// GasPrice returns the gas price to send transactions. It falls back to the default
// price of chain if failed to fetch from node.
func (p *Provider) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := call[*hexutil.Big](p, ctx, "eth_gasPrice")
	if err != nil || price == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		p.logger.WithError(err).WithField("default", p.config.Gas.DefaultPrice).Warn("Failed to fetch gas price, use default")

		return new(big.Int).SetUint64(p.config.Gas.DefaultPrice), nil
	}

	return p.adjustGasPrice(price.ToInt()), nil
}

func (p *Provider) adjustGasPrice(estimate *big.Int) *big.Int {
	buffered := new(big.Int).Add(estimate, gasPriceUnit)

	if p.config.Gas.MaxPrice > 0 {
		maxPrice := new(big.Int).SetUint64(p.config.Gas.MaxPrice)
		if buffered.Cmp(maxPrice) > 0 {
			p.logger.WithFields(logrus.Fields{
				"estimate": estimate,
				"max":      maxPrice,
			}).Debug("Gas price clamped")

			return maxPrice
		}
	}

	if p.config.Gas.NeedsBuffer {
		return buffered
	}

	return new(big.Int).Set(estimate)
}

// EstimateGasLimit returns the gas limit to send a transaction of msg, which adds
// a 20% margin to the estimate of node, except the estimate is exactly the minimum.
func (p *Provider) EstimateGasLimit(ctx context.Context, msg contract.CallMsg) (uint64, error) {
	estimate, err := call[hexutil.Uint64](p, ctx, "eth_estimateGas", msg)
	if err != nil {
		return 0, err
	}

	return p.adjustGasLimit(uint64(estimate), msg.To == nil), nil
}

func (p *Provider) adjustGasLimit(estimate uint64, deployment bool) uint64 {
	if estimate == p.config.Gas.MinGasLimit {
		return estimate
	}

	limit := estimate * 120 / 100

	// contract deployment is allowed to exceed the max gas limit
	if !deployment && p.config.Gas.MaxGasLimit > 0 && limit > p.config.Gas.MaxGasLimit {
		limit = p.config.Gas.MaxGasLimit
	}

	return limit
}

// ResolveGas returns the gas to send a transaction of msg. User specified gas is
// honored only if the chain allows users to change gas.
func (p *Provider) ResolveGas(ctx context.Context, msg contract.CallMsg, override ...GasOverride) (Gas, error) {
	var opt GasOverride
	if len(override) > 0 {
		if p.config.Gas.CanUserChangeGas {
			opt = override[0]
		} else {
			p.logger.Debug("User gas ignored since not allowed on chain")
		}
	}

	var gas Gas

	if opt.Price != nil && opt.Price.Sign() > 0 {
		gas.Price = opt.Price
	} else {
		price, err := p.GasPrice(ctx)
		if err != nil {
			return Gas{}, err
		}

		gas.Price = price
	}

	if opt.Limit > 0 {
		gas.Limit = opt.Limit
	} else {
		limit, err := p.EstimateGasLimit(ctx, msg)
		if err != nil {
			return Gas{}, err
		}

		gas.Limit = limit
	}

	return gas, nil
}
