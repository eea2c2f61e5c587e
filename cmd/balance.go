package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/0glabs/0g-wallet-rpc/common/parallel"
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	balanceArgs struct {
		token    string
		routines int
		timeout  time.Duration
	}

	balanceCmd = &cobra.Command{
		Use:   "balance <address>...",
		Short: "Query native or ERC20 token balance of addresses",
		Args:  cobra.MinimumNArgs(1),
		Run:   queryBalance,
	}
)

func init() {
	balanceCmd.Flags().StringVar(&balanceArgs.token, "token", "", "ERC20 token contract address, native token if not specified")
	balanceCmd.Flags().IntVar(&balanceArgs.routines, "routines", 8, "Number of routines to query in parallel")
	balanceCmd.Flags().DurationVar(&balanceArgs.timeout, "timeout", time.Minute, "Timeout to query all balances")

	rootCmd.AddCommand(balanceCmd)
}

func queryBalance(_ *cobra.Command, args []string) {
	p := mustProvider()
	defer p.Close()

	addresses := make([]common.Address, 0, len(args))
	for _, v := range args {
		if !common.IsHexAddress(v) {
			logrus.WithField("address", v).Fatal("Invalid address")
		}

		addresses = append(addresses, common.HexToAddress(v))
	}

	var token common.Address
	if len(balanceArgs.token) > 0 {
		if !common.IsHexAddress(balanceArgs.token) {
			logrus.WithField("token", balanceArgs.token).Fatal("Invalid token address")
		}

		token = common.HexToAddress(balanceArgs.token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), balanceArgs.timeout)
	defer cancel()

	results := parallel.QueryRpc(ctx, addresses, func(ctx context.Context, address common.Address) (*big.Int, error) {
		if len(balanceArgs.token) == 0 {
			return p.Balance(ctx, address)
		}

		return p.TokenBalance(ctx, token, address)
	}, parallel.RpcOption{
		Parallel:       parallel.SerialOption{Routines: balanceArgs.routines},
		ReportInterval: 5 * time.Second,
	})

	for _, v := range addresses {
		result, ok := results[v]
		if !ok {
			logrus.WithField("address", v).Warn("Balance not queried")
			continue
		}

		if result.Err != nil {
			logrus.WithError(result.Err).WithField("address", v).Warn("Failed to query balance")
			continue
		}

		fmt.Printf("%v\t%v\t(%v)\n", v, humanize.BigComma(result.Data), result.Latency.Truncate(time.Millisecond))
	}
}
