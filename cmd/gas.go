package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	gasArgs struct {
		from  string
		to    string
		data  string
		value string

		price uint64
		limit uint64
	}

	gasCmd = &cobra.Command{
		Use:   "gas",
		Short: "Estimate gas price, and gas limit if transaction specified",
		Run:   estimateGas,
	}
)

func init() {
	gasCmd.Flags().StringVar(&gasArgs.from, "from", "", "Transaction sender")
	gasCmd.Flags().StringVar(&gasArgs.to, "to", "", "Transaction receiver, empty for contract deployment")
	gasCmd.Flags().StringVar(&gasArgs.data, "data", "", "Transaction data in HEX")
	gasCmd.Flags().StringVar(&gasArgs.value, "value", "0", "Transaction value in wei")
	gasCmd.Flags().Uint64Var(&gasArgs.price, "gas-price", 0, "Custom gas price in wei, if allowed by chain")
	gasCmd.Flags().Uint64Var(&gasArgs.limit, "gas-limit", 0, "Custom gas limit, if allowed by chain")

	rootCmd.AddCommand(gasCmd)
}

func estimateGas(*cobra.Command, []string) {
	p := mustProvider()
	defer p.Close()

	ctx := context.Background()

	if len(gasArgs.from) == 0 && len(gasArgs.to) == 0 && len(gasArgs.data) == 0 {
		price, err := p.GasPrice(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to estimate gas price")
		}

		fmt.Printf("Gas price: %v wei\n", humanize.BigComma(price))
		return
	}

	gas, err := p.ResolveGas(ctx, mustCallMsg(gasArgs.from, gasArgs.to, gasArgs.data, gasArgs.value), provider.GasOverride{
		Price: new(big.Int).SetUint64(gasArgs.price),
		Limit: gasArgs.limit,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to estimate gas")
	}

	fmt.Printf("Gas price: %v wei\n", humanize.BigComma(gas.Price))
	fmt.Printf("Gas limit: %v\n", humanize.Comma(int64(gas.Limit)))
}

func mustCallMsg(from, to, data, value string) contract.CallMsg {
	var msg contract.CallMsg

	if len(from) > 0 {
		if !common.IsHexAddress(from) {
			logrus.WithField("from", from).Fatal("Invalid sender address")
		}

		sender := common.HexToAddress(from)
		msg.From = &sender
	}

	if len(to) > 0 {
		if !common.IsHexAddress(to) {
			logrus.WithField("to", to).Fatal("Invalid receiver address")
		}

		receiver := common.HexToAddress(to)
		msg.To = &receiver
	}

	if len(data) > 0 {
		decoded, err := hexutil.Decode(data)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to decode data")
		}

		msg.Data = decoded
	}

	if len(value) > 0 && value != "0" {
		amount, ok := new(big.Int).SetString(value, 0)
		if !ok {
			logrus.WithField("value", value).Fatal("Invalid value")
		}

		msg.Value = amount
	}

	return msg
}
