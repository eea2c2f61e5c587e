package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var nonceCmd = &cobra.Command{
	Use:   "nonce <address>",
	Short: "Query the next nonce of address, including pending transactions",
	Args:  cobra.ExactArgs(1),
	Run:   queryNonce,
}

func init() {
	rootCmd.AddCommand(nonceCmd)
}

func queryNonce(_ *cobra.Command, args []string) {
	if !common.IsHexAddress(args[0]) {
		logrus.WithField("address", args[0]).Fatal("Invalid address")
	}

	p := mustProvider()
	defer p.Close()

	nonce, err := p.NextNonce(context.Background(), common.HexToAddress(args[0]))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to query nonce")
	}

	fmt.Println(nonce)
}
