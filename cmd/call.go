package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	callArgs struct {
		from  string
		to    string
		data  string
		block int64
	}

	callCmd = &cobra.Command{
		Use:   "call",
		Short: "Call contract without transaction",
		Run:   callContract,
	}
)

func init() {
	callCmd.Flags().StringVar(&callArgs.from, "from", "", "Caller address")
	callCmd.Flags().StringVar(&callArgs.to, "to", "", "Contract address")
	callCmd.MarkFlagRequired("to")
	callCmd.Flags().StringVar(&callArgs.data, "data", "", "Call data in HEX")
	callCmd.Flags().Int64Var(&callArgs.block, "block", -1, "Block number to call at, latest if not specified")

	rootCmd.AddCommand(callCmd)
}

func callContract(*cobra.Command, []string) {
	p := mustProvider()
	defer p.Close()

	msg := mustCallMsg(callArgs.from, callArgs.to, callArgs.data, "")

	output, err := p.CallContract(context.Background(), msg, contract.BlockTag(big.NewInt(callArgs.block)))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to call contract")
	}

	fmt.Println(hexutil.Encode(output))
}
