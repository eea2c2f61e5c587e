package cmd

import (
	"context"
	"time"

	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	receiptArgs struct {
		wait            bool
		successRequired bool
		interval        time.Duration
		retries         int
	}

	receiptCmd = &cobra.Command{
		Use:   "receipt <hash>",
		Short: "Query transaction receipt",
		Args:  cobra.ExactArgs(1),
		Run:   queryReceipt,
	}
)

func init() {
	receiptCmd.Flags().BoolVar(&receiptArgs.wait, "wait", false, "Poll until transaction completed")
	receiptCmd.Flags().BoolVar(&receiptArgs.successRequired, "success-required", false, "Fail if transaction execution failed")
	receiptCmd.Flags().DurationVar(&receiptArgs.interval, "interval", 3*time.Second, "Interval to poll receipt")
	receiptCmd.Flags().IntVar(&receiptArgs.retries, "retries", 0, "Max number of polls, 0 for unlimited")

	rootCmd.AddCommand(receiptCmd)
}

func queryReceipt(_ *cobra.Command, args []string) {
	hash := common.HexToHash(args[0])

	p := mustProvider()
	defer p.Close()

	var (
		receipt *provider.Receipt
		err     error
	)

	if receiptArgs.wait {
		receipt, err = p.WaitForReceipt(context.Background(), hash, receiptArgs.successRequired, provider.RetryOption{
			NRetries: receiptArgs.retries,
			Interval: receiptArgs.interval,
		})
	} else {
		receipt, err = p.TransactionReceipt(context.Background(), hash)
	}

	if errors.Is(err, provider.ErrTransactionNotCompleted) {
		logrus.WithField("hash", hash).Info("Transaction not completed yet")
		return
	}

	if err != nil {
		logrus.WithError(err).WithField("hash", hash).Fatal("Failed to query receipt")
	}

	printJSON(receipt)
}
