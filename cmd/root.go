package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/0glabs/0g-wallet-rpc/config"
	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel         string
	logColorDisabled bool

	configPath string
	chain      string

	rootCmd = &cobra.Command{
		Use:   "0g-wallet-rpc",
		Short: "Wallet RPC client to query and transact on EVM chains",
		PersistentPreRun: func(*cobra.Command, []string) {
			initLog()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logrus.InfoLevel.String(), "Log level")
	rootCmd.PersistentFlags().BoolVar(&logColorDisabled, "log-color-disabled", false, "Force to disable colorful logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path, defaults to $"+config.EnvConfigPath+" or config.yaml")
	rootCmd.PersistentFlags().StringVar(&chain, "chain", "", "Chain id or name, defaults to the first configured chain")
}

func initLog() {
	formatter := logrus.TextFormatter{
		FullTimestamp: true,
	}

	if logColorDisabled {
		formatter.DisableColors = true
	} else {
		formatter.ForceColors = true
	}

	logrus.SetFormatter(&formatter)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).WithField("level", logLevel).Fatal("Failed to parse log level")
	}

	logrus.SetLevel(level)
}

func mustLoadConfig() *config.Config {
	path := config.Path(configPath)

	conf, err := config.Load(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Fatal("Failed to load config")
	}

	return conf
}

func mustNewRegistry(conf *config.Config) *provider.Registry {
	registry, err := provider.NewRegistry(conf.Chains)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create providers")
	}

	return registry
}

// mustProvider returns the provider of chain specified by flag, or the first configured one.
func mustProvider() *provider.Provider {
	conf := mustLoadConfig()

	if len(chain) == 0 {
		return provider.MustNew(conf.Chains[0])
	}

	chainConfig, ok := conf.Chain(chain)
	if !ok {
		logrus.WithField("chain", chain).Fatal("Chain not configured")
	}

	return provider.MustNew(chainConfig)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to marshal result")
	}

	fmt.Println(string(data))
}

// Execute is the command line entrypoint.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
