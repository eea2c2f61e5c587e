package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/0glabs/0g-wallet-rpc/gateway"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	gatewayArgs struct {
		endpoint       string
		verifyDisabled bool
	}

	gatewayCmd = &cobra.Command{
		Use:   "gateway",
		Short: "Start REST gateway service of configured chains",
		Run:   startGateway,
	}
)

func init() {
	gatewayCmd.Flags().StringVar(&gatewayArgs.endpoint, "endpoint", "", "Gateway endpoint, overrides the config file")
	gatewayCmd.Flags().BoolVar(&gatewayArgs.verifyDisabled, "verify-disabled", false, "Skip to verify chain ids on startup")

	rootCmd.AddCommand(gatewayCmd)
}

func startGateway(*cobra.Command, []string) {
	conf := mustLoadConfig()
	if len(gatewayArgs.endpoint) > 0 {
		conf.Gateway.Endpoint = gatewayArgs.endpoint
	}

	registry := mustNewRegistry(conf)
	defer registry.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !gatewayArgs.verifyDisabled {
		if err := registry.VerifyChainIDs(ctx); err != nil {
			logrus.WithError(err).Fatal("Failed to verify chains")
		}
	}

	gateway.MustServe(ctx, registry, conf.Gateway)
}
