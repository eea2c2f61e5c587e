package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
chains:
  - id: 16600
    name: Galileo
    endpoints:
      - url: https://evmrpc-testnet.0g.ai
      - url: https://rpc.example.com/${TEST_WALLET_RPC_KEY}
        headers:
          X-Api-Key: ${TEST_WALLET_RPC_KEY}
    privateRelay:
      url: https://relay.example.com
    batch:
      capacity: 10
      maxWait: 20ms
    network:
      requestTimeout: 5s
      circuitBreaker:
        enabled: true
    cache:
      ttl: 30s
      renderHitDelay: 300ms
    gas:
      maxPrice: 100000000000
      needsBuffer: true
      minGasLimit: 21000
      maxGasLimit: 8000000
  - id: 1
    name: Ethereum
    endpoints:
      - url: https://eth.example.com
    batch:
      disabled: true
gateway:
  endpoint: 0.0.0.0:8080
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_WALLET_RPC_KEY", "secret")

	config, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, config.Chains, 2)

	chain := config.Chains[0]
	assert.Equal(t, uint64(16600), chain.ID)
	assert.Len(t, chain.Endpoints, 2)
	assert.Equal(t, "https://rpc.example.com/secret", chain.Endpoints[1].URL)
	assert.Equal(t, "secret", chain.Endpoints[1].Headers["X-Api-Key"])
	assert.Equal(t, "https://relay.example.com", chain.PrivateRelay.URL)
	assert.Equal(t, 10, chain.Batch.Capacity)
	assert.Equal(t, 20*time.Millisecond, chain.Batch.MaxWait)
	assert.Equal(t, 5*time.Second, chain.Network.RequestTimeout)
	assert.True(t, chain.Network.CircuitBreaker.Enabled)
	assert.Equal(t, 30*time.Second, chain.Cache.TTL)
	assert.Equal(t, 300*time.Millisecond, chain.Cache.RenderHitDelay)
	assert.Equal(t, uint64(100000000000), chain.Gas.MaxPrice)
	assert.True(t, chain.Gas.NeedsBuffer)
	assert.Equal(t, uint64(8000000), chain.Gas.MaxGasLimit)

	assert.True(t, config.Chains[1].Batch.Disabled)
	assert.Nil(t, config.Chains[1].PrivateRelay)

	assert.Equal(t, "0.0.0.0:8080", config.Gateway.Endpoint)
}

func TestParseGatewayDefaults(t *testing.T) {
	config, err := Parse([]byte("chains:\n  - id: 1\n    endpoints:\n      - url: https://eth.example.com\n"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6789", config.Gateway.Endpoint)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no chain", "chains: []"},
		{"no endpoint", "chains:\n  - id: 1\n"},
		{"invalid url", "chains:\n  - id: 1\n    endpoints:\n      - url: not a url\n"},
		{"zero chain id", "chains:\n  - endpoints:\n      - url: https://eth.example.com\n"},
		{"duplicate chain id", "chains:\n  - id: 1\n    endpoints:\n      - url: https://a.example.com\n  - id: 1\n    endpoints:\n      - url: https://b.example.com\n"},
		{"negative capacity", "chains:\n  - id: 1\n    endpoints:\n      - url: https://a.example.com\n    batch:\n      capacity: -1\n"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chains:\n  - id: 1\n    endpoints:\n      - url: https://eth.example.com\n"), 0644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), config.Chains[0].ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv(EnvConfigPath, path)
	assert.Equal(t, path, Path(""))
	assert.Equal(t, "other.yaml", Path("other.yaml"))
}

func TestChain(t *testing.T) {
	t.Setenv("TEST_WALLET_RPC_KEY", "secret")

	config, err := Parse([]byte(sample))
	require.NoError(t, err)

	chain, ok := config.Chain("1")
	assert.True(t, ok)
	assert.Equal(t, "Ethereum", chain.Name)

	chain, ok = config.Chain("galileo")
	assert.True(t, ok)
	assert.Equal(t, uint64(16600), chain.ID)

	_, ok = config.Chain("56")
	assert.False(t, ok)
}
