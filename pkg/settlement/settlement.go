package settlement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"agent-tools/config"
	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

// Settler submits the on-chain transaction described by a deposit action
type Settler interface {
	// Address is the account the settler spends from
	Address() string
	// Settle submits one transaction and returns its hash. It never retries.
	Settle(ctx context.Context, action types.DepositAction) (string, error)
}

// Registry selects a settler by bridge network name
type Registry struct {
	settlers map[string]Settler
	closers  []func()
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{settlers: make(map[string]Settler)}
}

// Register binds a settler to one or more bridge network names
func (r *Registry) Register(s Settler, networks ...string) {
	for _, n := range networks {
		r.settlers[strings.ToUpper(strings.TrimSpace(n))] = s
	}
}

// For returns the settler for network
func (r *Registry) For(network string) (Settler, error) {
	s, ok := r.settlers[strings.ToUpper(strings.TrimSpace(network))]
	if !ok {
		return nil, apperr.Newf(apperr.KindSettlement, "settlement", "no settler configured for network %s", network)
	}
	return s, nil
}

// Networks lists the registered network names
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.settlers))
	for n := range r.settlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Settle routes the action to the settler for its network
func (r *Registry) Settle(ctx context.Context, action types.DepositAction) (string, error) {
	s, err := r.For(action.Network.Name)
	if err != nil {
		return "", err
	}

	zap.L().Info("Submitting deposit transaction",
		zap.String("network", action.Network.Name),
		zap.String("to", action.ToAddress),
		zap.String("token", action.Token.Symbol),
		zap.String("amount", action.Amount.String()),
		zap.Bool("calldata", action.CallData != ""))

	hash, err := s.Settle(ctx, action)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindSettlement {
			err = apperr.Wrap(apperr.KindSettlement, "settlement "+action.Network.Name, err, "deposit transaction failed")
		}
		return "", err
	}

	zap.L().Info("Deposit transaction submitted",
		zap.String("network", action.Network.Name),
		zap.String("tx_hash", hash))
	return hash, nil
}

// AddressFor returns the spending address for network, or "" if none is configured
func (r *Registry) AddressFor(network string) string {
	s, err := r.For(network)
	if err != nil {
		return ""
	}
	return s.Address()
}

// CanSettle fails when no settler is registered for network
func (r *Registry) CanSettle(network string) error {
	_, err := r.For(network)
	return err
}

// Close releases chain connections
func (r *Registry) Close() {
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
}

// NewRegistryFromConfig dials every configured chain and registers a settler
// for each of its bridge network names.
func NewRegistryFromConfig(evm config.EVMConfig, sol config.SolanaConfig) (*Registry, error) {
	r := NewRegistry()

	for name, network := range evm.Networks {
		if network.PrivateKey == "" {
			zap.L().Debug("Skipping EVM network without private key", zap.String("network", name))
			continue
		}
		s, err := NewEVMSettler(name, network)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("evm network %s: %w", name, err)
		}
		names := network.LayerswapNetworks
		if len(names) == 0 {
			names = []string{name}
		}
		r.Register(s, names...)
		r.closers = append(r.closers, s.Close)
	}

	if sol.Enabled() {
		s, err := NewSolanaSettler(sol)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("solana: %w", err)
		}
		r.Register(s, sol.LayerswapNetworks...)
	}

	return r, nil
}
