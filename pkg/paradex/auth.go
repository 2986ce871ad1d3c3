package paradex

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/httpapi"
)

const (
	headerAccount    = "PARADEX-STARKNET-ACCOUNT"
	headerSignature  = "PARADEX-STARKNET-SIGNATURE"
	headerTimestamp  = "PARADEX-TIMESTAMP"
	headerExpiration = "PARADEX-SIGNATURE-EXPIRATION"
	headerEthAccount = "PARADEX-ETHEREUM-ACCOUNT"
)

// Client talks to the Paradex REST API
type Client struct {
	api    *httpapi.Client
	signer Signer
	cfg    Config
	env    Environment

	now func() time.Time
}

// NewClient resolves the environment and builds a client. BaseURL overrides
// the environment's URL.
func NewClient(cfg Config, signer Signer, opts ...httpapi.Option) (*Client, error) {
	env, err := EnvironmentFor(cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL != "" {
		env.BaseURL = cfg.BaseURL
	}
	if cfg.AuthExpiry <= 0 {
		cfg.AuthExpiry = DefaultAuthExpiry
	}
	if !cfg.DefaultTickSize.IsPositive() {
		cfg.DefaultTickSize = DefaultTickSize
	}

	all := append([]httpapi.Option{httpapi.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		api:    httpapi.New("paradex", env.BaseURL, all...),
		signer: signer,
		cfg:    cfg,
		env:    env,
		now:    time.Now,
	}, nil
}

// Environment returns the resolved deployment
func (c *Client) Environment() Environment {
	return c.env
}

// DefaultTickSize returns the tick used when a market's tick is unknown
func (c *Client) DefaultTickSize() decimal.Decimal {
	return c.cfg.DefaultTickSize
}

func (c *Client) requireAccount(op string) error {
	if c.cfg.AccountAddress == "" {
		return apperr.New(apperr.KindConfig, op, "account address is not set (paradex.account_address)")
	}
	if c.signer == nil {
		return apperr.New(apperr.KindConfig, op, "no signer configured (paradex.signer_url)")
	}
	return nil
}

type authResponse struct {
	JWTToken string `json:"jwt_token"`
}

// Authenticate signs an auth request and exchanges it for a JWT. Sessions are
// not cached.
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	const op = "paradex auth"
	if err := c.requireAccount(op); err != nil {
		return nil, err
	}

	issued := c.now().UTC()
	msg := AuthMessage{
		ChainID:    c.env.ChainID,
		Account:    c.cfg.AccountAddress,
		Method:     http.MethodPost,
		Path:       "/v1/auth",
		Timestamp:  issued.Unix(),
		Expiration: issued.Add(c.cfg.AuthExpiry).Unix(),
	}
	sig, err := c.signer.SignAuth(ctx, msg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthentication, op, err, "failed to sign auth request")
	}

	h := make(http.Header)
	h.Set(headerAccount, c.cfg.AccountAddress)
	h.Set(headerSignature, sig)
	h.Set(headerTimestamp, strconv.FormatInt(msg.Timestamp, 10))
	h.Set(headerExpiration, strconv.FormatInt(msg.Expiration, 10))

	var resp authResponse
	if err := c.api.Post(ctx, "/auth", h, nil, &resp); err != nil {
		return nil, asKind(err, apperr.KindAuthentication)
	}
	if resp.JWTToken == "" {
		return nil, apperr.New(apperr.KindAuthentication, op, "response did not contain a JWT")
	}

	zap.L().Debug("Paradex session established", zap.String("account", c.cfg.AccountAddress))
	return &Session{
		Account:   c.cfg.AccountAddress,
		JWT:       resp.JWTToken,
		IssuedAt:  issued,
		ExpiresAt: time.Unix(msg.Expiration, 0).UTC(),
	}, nil
}

// Onboard registers the Stark account derived from the Ethereum account
func (c *Client) Onboard(ctx context.Context) error {
	const op = "paradex onboarding"
	if err := c.requireAccount(op); err != nil {
		return err
	}
	if c.cfg.EthereumAccount == "" || c.cfg.PublicKey == "" {
		return apperr.New(apperr.KindConfig, op, "ethereum account and public key are required (paradex.ethereum_account, paradex.public_key)")
	}

	sig, err := c.signer.SignOnboarding(ctx, OnboardingMessage{
		ChainID: c.env.ChainID,
		Account: c.cfg.AccountAddress,
		Action:  "Onboarding",
	})
	if err != nil {
		return apperr.Wrap(apperr.KindAuthentication, op, err, "failed to sign onboarding request")
	}

	h := make(http.Header)
	h.Set(headerEthAccount, c.cfg.EthereumAccount)
	h.Set(headerAccount, c.cfg.AccountAddress)
	h.Set(headerSignature, sig)
	h.Set(headerTimestamp, strconv.FormatInt(c.now().Unix(), 10))

	body := map[string]string{"public_key": c.cfg.PublicKey}
	if err := c.api.Post(ctx, "/onboarding", h, body, nil); err != nil {
		return asKind(err, apperr.KindAuthentication)
	}
	zap.L().Info("Paradex account onboarded", zap.String("account", c.cfg.AccountAddress))
	return nil
}

// asKind re-classifies non-2xx responses for the caller
func asKind(err error, kind apperr.Kind) error {
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindUpstream && e.Status != 0 {
		return e.WithKind(kind)
	}
	return err
}

func bearer(s *Session, op string) (http.Header, error) {
	if s == nil || s.JWT == "" {
		return nil, apperr.New(apperr.KindAuthentication, op, "not authenticated: call Authenticate first")
	}
	return httpapi.Bearer(s.JWT), nil
}
