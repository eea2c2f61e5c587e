package cmd

import (
	"context"
	"math/big"
	"os"

	"github.com/0glabs/0g-wallet-rpc/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logsArgs struct {
		contract  string
		abiFile   string
		event     string
		fromBlock int64
		toBlock   int64
		from      string
		to        string
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Query decoded event logs of contract",
		Run:   queryLogs,
	}
)

func init() {
	logsCmd.Flags().StringVar(&logsArgs.contract, "contract", "", "Contract address")
	logsCmd.MarkFlagRequired("contract")
	logsCmd.Flags().StringVar(&logsArgs.abiFile, "abi", "", "Contract ABI JSON file, ERC20 if not specified")
	logsCmd.Flags().StringVar(&logsArgs.event, "event", "Transfer", "Event name")
	logsCmd.Flags().Int64Var(&logsArgs.fromBlock, "from-block", 0, "Start block number")
	logsCmd.Flags().Int64Var(&logsArgs.toBlock, "to-block", -1, "End block number, latest if not specified")
	logsCmd.Flags().StringVar(&logsArgs.from, "topic1", "", "Address of the first indexed argument, e.g. sender of ERC20 transfer")
	logsCmd.Flags().StringVar(&logsArgs.to, "topic2", "", "Address of the second indexed argument, e.g. receiver of ERC20 transfer")

	rootCmd.AddCommand(logsCmd)
}

func queryLogs(*cobra.Command, []string) {
	contractABI := contract.ERC20
	if len(logsArgs.abiFile) > 0 {
		content, err := os.ReadFile(logsArgs.abiFile)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to read ABI file")
		}

		if contractABI, err = contract.ParseABI(string(content)); err != nil {
			logrus.WithError(err).Fatal("Failed to parse ABI")
		}
	}

	query := contract.EventQuery{
		Contract:  common.HexToAddress(logsArgs.contract),
		ABI:       contractABI,
		Event:     logsArgs.event,
		FromBlock: big.NewInt(logsArgs.fromBlock),
	}

	if logsArgs.toBlock >= 0 {
		query.ToBlock = big.NewInt(logsArgs.toBlock)
	}

	if len(logsArgs.from) > 0 || len(logsArgs.to) > 0 {
		query.Indexed = [][]any{indexedAddress(logsArgs.from), indexedAddress(logsArgs.to)}
	}

	p := mustProvider()
	defer p.Close()

	logs, err := p.GetLogs(context.Background(), query)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to query event logs")
	}

	printJSON(logs)
}

func indexedAddress(value string) []any {
	if len(value) == 0 {
		return nil
	}

	if !common.IsHexAddress(value) {
		logrus.WithField("address", value).Fatal("Invalid address")
	}

	return []any{common.HexToAddress(value)}
}
