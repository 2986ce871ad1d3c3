package paradex

import (
	"context"
	"net/http"
	"time"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/httpapi"
)

// AuthMessage is the typed message signed to obtain a JWT
type AuthMessage struct {
	ChainID    string `json:"chain_id"`
	Account    string `json:"account"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Body       string `json:"body"`
	Timestamp  int64  `json:"timestamp"`
	Expiration int64  `json:"expiration"`
}

// OnboardingMessage is the typed message signed once per account
type OnboardingMessage struct {
	ChainID string `json:"chain_id"`
	Account string `json:"account"`
	Action  string `json:"action"`
}

// OrderMessage is the typed message signed for every order. Size and Price
// are the formatted strings sent on the wire.
type OrderMessage struct {
	ChainID   string `json:"chain_id"`
	Account   string `json:"account"`
	Timestamp int64  `json:"timestamp"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Size      string `json:"size"`
	Price     string `json:"price"`
}

// Signer produces Stark signatures for Paradex typed messages
type Signer interface {
	SignAuth(ctx context.Context, msg AuthMessage) (string, error)
	SignOnboarding(ctx context.Context, msg OnboardingMessage) (string, error)
	SignOrder(ctx context.Context, msg OrderMessage) (string, error)
}

// RemoteSigner delegates signing to an HTTP sidecar holding the Stark key.
// Each message is posted to /sign/{kind} and the reply is {"signature": "..."}.
type RemoteSigner struct {
	api *httpapi.Client
}

// NewRemoteSigner builds a signer for the sidecar at url
func NewRemoteSigner(url string, timeout time.Duration) (*RemoteSigner, error) {
	if url == "" {
		return nil, apperr.New(apperr.KindConfig, "paradex signer", "signer URL is not set (paradex.signer_url)")
	}
	return &RemoteSigner{api: httpapi.New("paradex-signer", url, httpapi.WithTimeout(timeout))}, nil
}

type signResponse struct {
	Signature string `json:"signature"`
}

func (s *RemoteSigner) sign(ctx context.Context, kind string, msg any) (string, error) {
	var resp signResponse
	if err := s.api.Do(ctx, httpapi.Request{Method: http.MethodPost, Path: "/sign/" + kind, Body: msg}, &resp); err != nil {
		return "", err
	}
	if resp.Signature == "" {
		return "", apperr.Newf(apperr.KindAuthentication, "paradex signer", "empty %s signature", kind)
	}
	return resp.Signature, nil
}

func (s *RemoteSigner) SignAuth(ctx context.Context, msg AuthMessage) (string, error) {
	return s.sign(ctx, "auth", msg)
}

func (s *RemoteSigner) SignOnboarding(ctx context.Context, msg OnboardingMessage) (string, error) {
	return s.sign(ctx, "onboarding", msg)
}

func (s *RemoteSigner) SignOrder(ctx context.Context, msg OrderMessage) (string, error) {
	return s.sign(ctx, "order", msg)
}
