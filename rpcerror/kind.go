package rpcerror

import "fmt"

// Kind is the closed set of error categories an RPC failure is mapped into.
type Kind int

const (
	Unknown Kind = iota
	RateLimited
	InvalidAPIKey
	NetworkConnectionLost
	InvalidCertificate
	RequestTimedOut
	InsufficientFunds
	ExecutionReverted
	NonceTooLow
	GasPriceTooLow
	GasLimitTooLow
	GasLimitTooHigh
	PossibleChainIDMismatch
)

var kindNames = map[Kind]string{
	Unknown:                 "unknown",
	RateLimited:             "rateLimited",
	InvalidAPIKey:           "invalidApiKey",
	NetworkConnectionLost:   "networkConnectionLost",
	InvalidCertificate:      "invalidCertificate",
	RequestTimedOut:         "requestTimedOut",
	InsufficientFunds:       "insufficientFunds",
	ExecutionReverted:       "executionReverted",
	NonceTooLow:             "nonceTooLow",
	GasPriceTooLow:          "gasPriceTooLow",
	GasLimitTooLow:          "gasLimitTooLow",
	GasLimitTooHigh:         "gasLimitTooHigh",
	PossibleChainIDMismatch: "possibleChainIdMismatch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// IsTransport returns true for failures of the connection to endpoint.
func (k Kind) IsTransport() bool {
	switch k {
	case NetworkConnectionLost, InvalidCertificate, RequestTimedOut:
		return true
	default:
		return false
	}
}

// IsOnChain returns true for transaction rejections which must be surfaced to user as is.
func (k Kind) IsOnChain() bool {
	switch k {
	case InsufficientFunds, ExecutionReverted, NonceTooLow, GasPriceTooLow,
		GasLimitTooLow, GasLimitTooHigh, PossibleChainIDMismatch:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if re-attempting the same request may succeed.
// On-chain rejections are never retried automatically.
func (k Kind) IsRetryable() bool {
	return k.IsTransport() || k == RateLimited
}
