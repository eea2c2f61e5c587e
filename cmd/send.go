package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sendArgs struct {
		rawTx   string
		wait    bool
		timeout time.Duration
	}

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Submit a signed raw transaction",
		Run:   sendRawTransaction,
	}
)

func init() {
	sendCmd.Flags().StringVar(&sendArgs.rawTx, "raw", "", "Signed raw transaction in HEX")
	sendCmd.MarkFlagRequired("raw")
	sendCmd.Flags().BoolVar(&sendArgs.wait, "wait", false, "Wait for the transaction receipt")
	sendCmd.Flags().DurationVar(&sendArgs.timeout, "timeout", 5*time.Minute, "Timeout to wait for receipt")

	rootCmd.AddCommand(sendCmd)
}

func sendRawTransaction(*cobra.Command, []string) {
	rawTx, err := hexutil.Decode(sendArgs.rawTx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to decode raw transaction")
	}

	p := mustProvider()
	defer p.Close()

	hash, err := p.SendRawTransaction(context.Background(), rawTx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to send transaction")
	}

	fmt.Println(hash.Hex())

	if !sendArgs.wait {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendArgs.timeout)
	defer cancel()

	receipt, err := p.WaitForReceipt(ctx, hash, false, provider.RetryOption{Interval: 3 * time.Second})
	if err != nil {
		logrus.WithError(err).WithField("hash", hash).Fatal("Failed to wait for receipt")
	}

	printJSON(receipt)
}
