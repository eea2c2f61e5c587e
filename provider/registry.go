package provider

import (
	"context"
	"strconv"
	"strings"

	wcommon "github.com/0glabs/0g-wallet-rpc/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Registry holds the providers of all configured chains.
type Registry struct {
	providers []*Provider
	byID      map[uint64]*Provider
	byName    map[string]*Provider
}

// NewRegistry creates providers for chains.
func NewRegistry(chains []Config, opt ...wcommon.LogOption) (*Registry, error) {
	registry := Registry{
		byID:   make(map[uint64]*Provider),
		byName: make(map[string]*Provider),
	}

	for _, v := range chains {
		if _, ok := registry.byID[v.ID]; ok {
			return nil, errors.Errorf("Duplicate chain %v", v.ID)
		}

		provider, err := New(v, opt...)
		if err != nil {
			return nil, err
		}

		registry.providers = append(registry.providers, provider)
		registry.byID[v.ID] = provider

		if len(v.Name) > 0 {
			registry.byName[strings.ToLower(v.Name)] = provider
		}
	}

	return &registry, nil
}

// Providers returns providers in the order of configuration.
func (r *Registry) Providers() []*Provider {
	return r.providers
}

// Get returns the provider of chain id.
func (r *Registry) Get(chainID uint64) (*Provider, bool) {
	provider, ok := r.byID[chainID]
	return provider, ok
}

// Lookup returns the provider by chain id in decimal or chain name (case insensitive).
func (r *Registry) Lookup(chain string) (*Provider, bool) {
	if id, err := strconv.ParseUint(chain, 10, 64); err == nil {
		return r.Get(id)
	}

	provider, ok := r.byName[strings.ToLower(chain)]
	return provider, ok
}

// VerifyChainIDs verifies the chain id of all providers concurrently.
func (r *Registry) VerifyChainIDs(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, v := range r.providers {
		provider := v
		group.Go(func() error {
			if err := provider.VerifyChainID(ctx); err != nil {
				return errors.WithMessagef(err, "Failed to verify chain %v", provider.config.ID)
			}

			return nil
		})
	}

	return group.Wait()
}

// Close closes all providers.
func (r *Registry) Close() {
	for _, v := range r.providers {
		v.Close()
	}
}
