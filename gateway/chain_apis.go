package gateway

import (
	"math/big"
	"strings"

	"github.com/0glabs/0g-wallet-rpc/common/api"
	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type chainController struct {
	registry *provider.Registry
}

type chainInfo struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Batched  bool   `json:"batched"`
}

func (ctrl *chainController) listChains(c *gin.Context) (interface{}, error) {
	var chains []chainInfo

	for _, v := range ctrl.registry.Providers() {
		config := v.Config()
		chains = append(chains, chainInfo{
			ID:       config.ID,
			Name:     config.Name,
			Endpoint: v.CurrentURL(),
			Batched:  !config.Batch.Disabled,
		})
	}

	return chains, nil
}

func (ctrl *chainController) provider(c *gin.Context) (*provider.Provider, error) {
	chain := c.Param("chain")

	p, ok := ctrl.registry.Lookup(chain)
	if !ok {
		return nil, api.ErrChainNotFound.WithData(chain)
	}

	return p, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, api.ErrValidation.WithData("invalid address " + value)
	}

	return common.HexToAddress(value), nil
}

func parseBig(value string) (*big.Int, error) {
	if len(value) == 0 || value == contract.BlockLatest {
		return nil, nil
	}

	number, ok := new(big.Int).SetString(value, 0)
	if !ok || number.Sign() < 0 {
		return nil, api.ErrValidation.WithData("invalid number " + value)
	}

	return number, nil
}

func (ctrl *chainController) getBalance(c *gin.Context) (interface{}, error) {
	var input struct {
		Token string `form:"token"`
	}

	if err := c.ShouldBindQuery(&input); err != nil {
		return nil, err
	}

	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	owner, err := parseAddress(c.Param("address"))
	if err != nil {
		return nil, err
	}

	var balance *big.Int

	if len(input.Token) == 0 {
		balance, err = p.Balance(c, owner)
	} else {
		var token common.Address
		if token, err = parseAddress(input.Token); err != nil {
			return nil, err
		}

		balance, err = p.TokenBalance(c, token, owner)
	}

	if err != nil {
		return nil, err
	}

	return balance.String(), nil
}

func (ctrl *chainController) getNonce(c *gin.Context) (interface{}, error) {
	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	address, err := parseAddress(c.Param("address"))
	if err != nil {
		return nil, err
	}

	return p.NextNonce(c, address)
}

func (ctrl *chainController) getGasPrice(c *gin.Context) (interface{}, error) {
	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	price, err := p.GasPrice(c)
	if err != nil {
		return nil, err
	}

	return price.String(), nil
}

func (ctrl *chainController) getBlockNumber(c *gin.Context) (interface{}, error) {
	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	return p.BlockNumber(c)
}

func (ctrl *chainController) getBlock(c *gin.Context) (interface{}, error) {
	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	number, err := parseBig(c.Param("number"))
	if err != nil {
		return nil, err
	}

	return p.BlockByNumber(c, number)
}

func (ctrl *chainController) getReceipt(c *gin.Context) (interface{}, error) {
	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	hash := c.Param("hash")
	if _, err := hexutil.Decode(hash); err != nil || len(hash) != 66 {
		return nil, api.ErrValidation.WithData("invalid transaction hash " + hash)
	}

	receipt, err := p.TransactionReceipt(c, common.HexToHash(hash))
	if errors.Is(err, provider.ErrTransactionNotCompleted) {
		return nil, api.ErrNotCompleted.WithData(hash)
	}

	return receipt, err
}

type callInput struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Value *hexutil.Big    `json:"value"`
	Block string          `json:"block"`
}

func (input *callInput) msg() contract.CallMsg {
	return contract.CallMsg{
		From:  input.From,
		To:    input.To,
		Value: (*big.Int)(input.Value),
		Data:  input.Data,
	}
}

func (ctrl *chainController) call(c *gin.Context) (interface{}, error) {
	var input callInput
	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, api.ErrValidation.WithData(err.Error())
	}

	if input.To == nil {
		return nil, api.ErrValidation.WithData("to not specified")
	}

	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	output, err := p.CallContract(c, input.msg(), input.Block)
	if err != nil {
		return nil, err
	}

	return hexutil.Bytes(output), nil
}

func (ctrl *chainController) resolveGas(c *gin.Context) (interface{}, error) {
	var input struct {
		callInput
		GasPrice *hexutil.Big   `json:"gasPrice"`
		Gas      hexutil.Uint64 `json:"gas"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, api.ErrValidation.WithData(err.Error())
	}

	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	return p.ResolveGas(c, input.msg(), provider.GasOverride{
		Price: (*big.Int)(input.GasPrice),
		Limit: uint64(input.Gas),
	})
}

func (ctrl *chainController) getLogs(c *gin.Context) (interface{}, error) {
	var input struct {
		Contract  common.Address `json:"contract" binding:"required"`
		ABI       string         `json:"abi"`
		Event     string         `json:"event" binding:"required"`
		FromBlock *hexutil.Big   `json:"fromBlock"`
		ToBlock   *hexutil.Big   `json:"toBlock"`
		Indexed   [][]string     `json:"indexed"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, api.ErrValidation.WithData(err.Error())
	}

	contractABI := contract.ERC20
	if len(input.ABI) > 0 {
		parsed, err := contract.ParseABI(input.ABI)
		if err != nil {
			return nil, api.ErrValidation.WithData(err.Error())
		}

		contractABI = parsed
	}

	event, err := contractABI.Event(input.Event)
	if err != nil {
		return nil, api.ErrValidation.WithData(err.Error())
	}

	indexed, err := parseIndexed(event, input.Indexed)
	if err != nil {
		return nil, err
	}

	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	return p.GetLogs(c, contract.EventQuery{
		Contract:  input.Contract,
		ABI:       contractABI,
		Event:     input.Event,
		FromBlock: (*big.Int)(input.FromBlock),
		ToBlock:   (*big.Int)(input.ToBlock),
		Indexed:   indexed,
	})
}

// parseIndexed converts hex values of indexed arguments into addresses or hashes.
func parseIndexed(event abi.Event, values [][]string) ([][]any, error) {
	var inputs abi.Arguments
	for _, v := range event.Inputs {
		if v.Indexed {
			inputs = append(inputs, v)
		}
	}

	if len(values) > len(inputs) {
		return nil, api.ErrValidation.WithData("too many indexed arguments")
	}

	result := make([][]any, len(values))

	for i, position := range values {
		for _, v := range position {
			v = strings.TrimSpace(v)

			if inputs[i].Type.T == abi.AddressTy {
				address, err := parseAddress(v)
				if err != nil {
					return nil, err
				}

				result[i] = append(result[i], address)
			} else {
				result[i] = append(result[i], common.HexToHash(v))
			}
		}
	}

	return result, nil
}

func (ctrl *chainController) sendRawTransaction(c *gin.Context) (interface{}, error) {
	var input struct {
		RawTx hexutil.Bytes `json:"rawTx" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, api.ErrValidation.WithData(err.Error())
	}

	p, err := ctrl.provider(c)
	if err != nil {
		return nil, err
	}

	return p.SendRawTransaction(c, input.RawTx)
}
