package agent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-tools/config"
	"agent-tools/pkg/bridge"
	"agent-tools/pkg/journal"
	"agent-tools/pkg/layerswap"
	"agent-tools/pkg/oneclick"
	"agent-tools/pkg/paradex"
	"agent-tools/pkg/settlement"
	"agent-tools/pkg/tools"
)

// Agent holds every client built from configuration and the tools that
// expose them. Clients whose credentials are missing stay nil.
type Agent struct {
	Layerswap *layerswap.Client
	Paradex   *paradex.Client
	OneClick  *oneclick.Client
	Settlers  *settlement.Registry
	Journal   journal.Store
	Bridge    *bridge.Orchestrator
	Tools     *tools.Registry
}

// New builds the clients and registers the allowed tools
func New(ctx context.Context, cfg *config.Config) (*Agent, error) {
	a := &Agent{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	a.Journal, err = journal.Open(ctx, cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	a.Settlers, err = settlement.NewRegistryFromConfig(cfg.EVM, cfg.Solana)
	if err != nil {
		return nil, fmt.Errorf("failed to build settlers: %w", err)
	}

	if cfg.Layerswap.APIKey != "" {
		a.Layerswap, err = layerswap.NewClient(layerswap.Config{
			APIKey:         cfg.Layerswap.APIKey,
			BaseURL:        cfg.Layerswap.BaseURL,
			AccountAddress: cfg.Layerswap.AccountAddress,
			Timeout:        cfg.HTTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.Bridge = bridge.NewOrchestrator(a.Layerswap, a.Settlers, a.Journal)
		if cfg.Layerswap.PollInterval > 0 {
			a.Bridge.PollInterval = cfg.Layerswap.PollInterval
		}
		if cfg.Layerswap.MaxPollAttempts > 0 {
			a.Bridge.MaxPollAttempts = cfg.Layerswap.MaxPollAttempts
		}
	} else {
		zap.L().Warn("Layerswap API key not set, bridge tools disabled")
	}

	a.Paradex, err = NewParadexClient(cfg)
	if err != nil {
		return nil, err
	}

	a.OneClick = oneclick.NewClient(oneclick.Config{
		JWTToken: cfg.OneClick.JWTToken,
		BaseURL:  cfg.OneClick.BaseURL,
		Timeout:  cfg.HTTP.Timeout,
	})

	all := tools.NewRegistry()
	if a.Bridge != nil {
		if err := all.Register(LayerswapTools(a.Layerswap, a.Bridge, a.Journal)...); err != nil {
			return nil, err
		}
	}
	if err := all.Register(ParadexTools(a.Paradex)...); err != nil {
		return nil, err
	}
	if err := all.Register(OneClickTools(a.OneClick)...); err != nil {
		return nil, err
	}
	a.Tools = all.Allowed(cfg.Tools)

	zap.L().Info("Agent ready",
		zap.Int("tools", len(a.Tools.List())),
		zap.Strings("settlement_networks", a.Settlers.Networks()))
	ok = true
	return a, nil
}

// NewParadexClient builds the exchange client. Without a signer URL only
// public market data works.
func NewParadexClient(cfg *config.Config) (*paradex.Client, error) {
	pc := cfg.Paradex
	tick := paradex.DefaultTickSize
	if pc.DefaultTickSize != "" {
		t, err := decimal.NewFromString(pc.DefaultTickSize)
		if err != nil {
			return nil, fmt.Errorf("invalid paradex.default_tick_size: %w", err)
		}
		tick = t
	}

	var signer paradex.Signer
	if pc.SignerURL != "" {
		rs, err := paradex.NewRemoteSigner(pc.SignerURL, cfg.HTTP.Timeout)
		if err != nil {
			return nil, err
		}
		signer = rs
	}

	return paradex.NewClient(paradex.Config{
		Network:         pc.Network,
		BaseURL:         pc.BaseURL,
		AccountAddress:  pc.AccountAddress,
		PublicKey:       pc.PublicKey,
		EthereumAccount: pc.EthereumAccount,
		AuthExpiry:      pc.AuthExpiry,
		DefaultTickSize: tick,
		Timeout:         cfg.HTTP.Timeout,
	}, signer)
}

// Close releases RPC connections and the journal
func (a *Agent) Close() {
	if a.Settlers != nil {
		a.Settlers.Close()
	}
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			zap.L().Warn("Failed to close journal", zap.Error(err))
		}
	}
}
