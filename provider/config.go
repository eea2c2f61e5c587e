package provider

import (
	"time"

	"github.com/0glabs/0g-wallet-rpc/batch"
	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/0glabs/0g-wallet-rpc/transport"
)

// Config is the configuration of a chain.
type Config struct {
	ID        uint64               `yaml:"id" validate:"required"`
	Name      string               `yaml:"name"`
	Endpoints []transport.Endpoint `yaml:"endpoints" validate:"required,min=1,dive"`

	// PrivateRelay receives requests of RelayMethods instead of the chain endpoints,
	// which defaults to eth_sendRawTransaction.
	PrivateRelay *transport.Endpoint `yaml:"privateRelay" validate:"omitempty"`
	RelayMethods []string            `yaml:"relayMethods"`

	Network transport.Option     `yaml:"network"`
	Batch   batch.Option         `yaml:"batch"`
	Cache   contract.CacheOption `yaml:"cache"`
	Gas     GasOption            `yaml:"gas"`

	// BlockNumberTTL is the duration to reuse the latest block number.
	BlockNumberTTL time.Duration `yaml:"blockNumberTTL" default:"2s"`
}

// GasOption is the gas policy of a chain. Prices are in wei.
type GasOption struct {
	// DefaultPrice is used when failed to fetch gas price from the chain.
	DefaultPrice uint64 `yaml:"defaultPrice" default:"1000000000"`

	// MaxPrice clamps the estimated gas price, 0 for unlimited.
	MaxPrice uint64 `yaml:"maxPrice"`

	// NeedsBuffer adds 1 gwei to the estimated gas price, for chains whose estimation
	// tends to run low.
	NeedsBuffer bool `yaml:"needsBuffer"`

	MinGasLimit uint64 `yaml:"minGasLimit" default:"21000"`

	// MaxGasLimit caps the gas limit of transactions except contract deployment,
	// 0 for unlimited.
	MaxGasLimit uint64 `yaml:"maxGasLimit"`

	CanUserChangeGas bool `yaml:"canUserChangeGas"`
}
