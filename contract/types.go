package contract

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	BlockLatest  = "latest"
	BlockPending = "pending"
)

// BlockTag returns the block parameter for the specified block number, "latest" if nil.
func BlockTag(number *big.Int) string {
	if number == nil || number.Sign() < 0 {
		return BlockLatest
	}

	return hexutil.EncodeBig(number)
}

// CallMsg contains parameters for eth_call and eth_estimateGas.
type CallMsg struct {
	From     *common.Address
	To       *common.Address // nil for contract deployment
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

type callArgs struct {
	From     *common.Address `json:"from,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

func (msg CallMsg) MarshalJSON() ([]byte, error) {
	args := callArgs{
		From:     msg.From,
		To:       msg.To,
		GasPrice: (*hexutil.Big)(msg.GasPrice),
		Value:    (*hexutil.Big)(msg.Value),
		Data:     msg.Data,
	}

	if msg.Gas > 0 {
		args.Gas = (*hexutil.Uint64)(&msg.Gas)
	}

	return json.Marshal(args)
}

// LogFilter contains parameters for eth_getLogs.
type LogFilter struct {
	Addresses []common.Address
	FromBlock *big.Int // nil for genesis
	ToBlock   *big.Int // nil for latest
	Topics    [][]common.Hash
}

type filterArgs struct {
	Address   []common.Address `json:"address,omitempty"`
	FromBlock string           `json:"fromBlock"`
	ToBlock   string           `json:"toBlock"`
	Topics    [][]common.Hash  `json:"topics"`
}

func (f LogFilter) MarshalJSON() ([]byte, error) {
	args := filterArgs{
		Address:   f.Addresses,
		FromBlock: "0x0",
		ToBlock:   BlockTag(f.ToBlock),
		Topics:    make([][]common.Hash, len(f.Topics)),
	}

	if f.FromBlock != nil {
		args.FromBlock = BlockTag(f.FromBlock)
	}

	// empty topic position matches any value, encoded as null
	for i, v := range f.Topics {
		if len(v) > 0 {
			args.Topics[i] = v
		}
	}

	return json.Marshal(args)
}

// String describes all the filter conditions, and is used for deduplication.
func (f LogFilter) String() string {
	var sb strings.Builder

	for _, v := range f.Addresses {
		sb.WriteString(v.Hex())
		sb.WriteByte(',')
	}

	sb.WriteByte('|')
	if f.FromBlock != nil {
		sb.WriteString(f.FromBlock.String())
	}
	sb.WriteByte('-')
	if f.ToBlock != nil {
		sb.WriteString(f.ToBlock.String())
	}

	for _, position := range f.Topics {
		sb.WriteByte('|')
		for _, v := range position {
			sb.WriteString(v.Hex())
			sb.WriteByte(',')
		}
	}

	return sb.String()
}

// DecodedLog is an event log along with its arguments decoded by ABI.
type DecodedLog struct {
	Log    *types.Log     `json:"log"`
	Event  string         `json:"event"`
	Fields map[string]any `json:"fields"`
}
