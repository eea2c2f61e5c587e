package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/0glabs/0g-wallet-rpc/provider"
	"github.com/go-playground/validator/v10"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable for the config file path.
const EnvConfigPath = "WALLET_RPC_CONFIG"

const defaultConfigPath = "config.yaml"

// Config is the wallet RPC configuration.
type Config struct {
	Chains  []provider.Config `yaml:"chains" validate:"required,min=1,dive"`
	Gateway GatewayConfig     `yaml:"gateway"`
}

type GatewayConfig struct {
	Endpoint       string   `yaml:"endpoint" default:"127.0.0.1:6789"`
	OriginsAllowed []string `yaml:"originsAllowed"`
}

// Path returns the config file path: the specified one, or from environment variable,
// or the default config.yaml.
func Path(specified string) string {
	if len(specified) > 0 {
		return specified
	}

	if path := os.Getenv(EnvConfigPath); len(path) > 0 {
		return path
	}

	return defaultConfigPath
}

// Load reads and validates the YAML config file. Environment variables in the file,
// e.g. API keys in endpoint URLs or headers, are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "Failed to read config file %v", path)
	}

	return Parse(data)
}

// Parse parses the YAML config content.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, errors.WithMessage(err, "Failed to unmarshal config YAML")
	}

	defaults.SetDefaults(&config.Gateway)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks that at least one chain configured, chain ids are unique, and each
// chain has endpoints.
func (config *Config) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return errors.WithMessage(err, "Invalid config")
	}

	ids := make(map[uint64]struct{})
	names := make(map[string]struct{})

	for _, v := range config.Chains {
		if _, ok := ids[v.ID]; ok {
			return errors.Errorf("Duplicate chain id %v", v.ID)
		}
		ids[v.ID] = struct{}{}

		if len(v.Name) == 0 {
			continue
		}

		if _, ok := names[v.Name]; ok {
			return errors.Errorf("Duplicate chain name %v", v.Name)
		}
		names[v.Name] = struct{}{}
	}

	return nil
}

// Chain returns the chain config by chain id in decimal or chain name (case insensitive).
func (config *Config) Chain(chain string) (provider.Config, bool) {
	id, err := strconv.ParseUint(chain, 10, 64)

	for _, v := range config.Chains {
		if err == nil && v.ID == id {
			return v, true
		}

		if err != nil && strings.EqualFold(v.Name, chain) {
			return v, true
		}
	}

	return provider.Config{}, false
}
