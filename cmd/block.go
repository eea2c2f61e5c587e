package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	blockArgs struct {
		number int64
	}

	blockCmd = &cobra.Command{
		Use:   "block",
		Short: "Query the latest block number, or block of the specified number",
		Run:   queryBlock,
	}
)

func init() {
	blockCmd.Flags().Int64Var(&blockArgs.number, "number", -1, "Block number to query")

	rootCmd.AddCommand(blockCmd)
}

func queryBlock(*cobra.Command, []string) {
	p := mustProvider()
	defer p.Close()

	ctx := context.Background()

	if blockArgs.number < 0 {
		number, err := p.BlockNumber(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to query block number")
		}

		fmt.Println(humanize.Comma(int64(number)))
		return
	}

	block, err := p.BlockByNumber(ctx, big.NewInt(blockArgs.number))
	if err != nil {
		logrus.WithError(err).WithField("number", blockArgs.number).Fatal("Failed to query block")
	}

	printJSON(block)
}
