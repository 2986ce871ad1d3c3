package oneclick

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	sdk "github.com/defuse-protocol/one-click-sdk-go"

	"agent-tools/pkg/apperr"
)

// API is the subset of the 1Click service the client uses
type API interface {
	Tokens(ctx context.Context) ([]Token, error)
	Quote(ctx context.Context, req QuoteParams) (*Quote, error)
	Status(ctx context.Context, depositAddress string) (*Status, error)
	SubmitDeposit(ctx context.Context, depositAddress, txHash string) error
}

// sdkAPI adapts the generated SDK to API
type sdkAPI struct {
	client *sdk.APIClient
	token  string
}

func newSDKAPI(jwtToken, baseURL string, timeout time.Duration) *sdkAPI {
	cfg := sdk.NewConfiguration()
	if baseURL != "" {
		cfg.Servers = sdk.ServerConfigurations{{URL: baseURL}}
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &sdkAPI{client: sdk.NewAPIClient(cfg), token: jwtToken}
}

func (a *sdkAPI) auth(ctx context.Context) context.Context {
	if a.token == "" {
		return ctx
	}
	return context.WithValue(ctx, sdk.ContextAccessToken, a.token)
}

func (a *sdkAPI) Tokens(ctx context.Context) ([]Token, error) {
	resp, httpResp, err := a.client.OneClickAPI.GetTokens(a.auth(ctx)).Execute()
	if err != nil {
		return nil, sdkError("oneclick tokens", httpResp, err)
	}
	defer httpResp.Body.Close()

	tokens := make([]Token, 0, len(resp))
	for _, t := range resp {
		tokens = append(tokens, Token{
			AssetID:         t.GetAssetId(),
			Symbol:          t.GetSymbol(),
			Blockchain:      t.GetBlockchain(),
			Decimals:        int32(t.GetDecimals()),
			ContractAddress: t.GetContractAddress(),
		})
	}
	return tokens, nil
}

func (a *sdkAPI) Quote(ctx context.Context, p QuoteParams) (*Quote, error) {
	req := sdk.NewQuoteRequest(
		p.Dry,
		"EXACT_INPUT",
		slippageBps,
		p.Origin.AssetID,
		"ORIGIN_CHAIN",
		p.Destination.AssetID,
		p.Amount,
		p.RefundTo,
		"ORIGIN_CHAIN",
		p.Recipient,
		"DESTINATION_CHAIN",
		p.Deadline,
	)
	resp, httpResp, err := a.client.OneClickAPI.GetQuote(a.auth(ctx)).QuoteRequest(*req).Execute()
	if err != nil {
		return nil, sdkError("oneclick quote", httpResp, err)
	}
	defer httpResp.Body.Close()
	if resp == nil {
		return nil, apperr.New(apperr.KindUpstream, "oneclick quote", "empty quote response")
	}

	q := resp.GetQuote()
	return &Quote{
		DepositAddress:     q.GetDepositAddress(),
		DepositMemo:        q.GetDepositMemo(),
		AmountInFormatted:  q.GetAmountInFormatted(),
		AmountOutFormatted: q.GetAmountOutFormatted(),
		TimeEstimate:       time.Duration(float64(q.GetTimeEstimate()) * float64(time.Second)),
	}, nil
}

func (a *sdkAPI) Status(ctx context.Context, depositAddress string) (*Status, error) {
	resp, httpResp, err := a.client.OneClickAPI.GetExecutionStatus(a.auth(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, sdkError("oneclick status", httpResp, err)
	}
	defer httpResp.Body.Close()

	details := resp.GetSwapDetails()
	st := &Status{
		DepositAddress:     depositAddress,
		Status:             resp.GetStatus(),
		UpdatedAt:          resp.GetUpdatedAt(),
		AmountInFormatted:  details.GetAmountInFormatted(),
		AmountOutFormatted: details.GetAmountOutFormatted(),
	}
	for _, tx := range details.GetOriginChainTxHashes() {
		st.OriginTxHashes = append(st.OriginTxHashes, tx.GetHash())
	}
	for _, tx := range details.GetDestinationChainTxHashes() {
		st.DestinationTxHashes = append(st.DestinationTxHashes, tx.GetHash())
	}
	return st, nil
}

func (a *sdkAPI) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := sdk.NewSubmitDepositTxRequest(depositAddress, txHash)
	_, httpResp, err := a.client.OneClickAPI.SubmitDepositTx(a.auth(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return sdkError("oneclick submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()
	return nil
}

// sdkError extracts the API message from a failed SDK call
func sdkError(op string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return apperr.Wrap(apperr.KindUpstream, op, err, "request failed")
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))

	var parsed struct {
		Message string          `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	msg := string(body)
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Message != "":
			msg = parsed.Message
		case len(parsed.Errors) > 0:
			msg = string(parsed.Errors)
		}
	}
	e := apperr.Upstream(op, httpResp.StatusCode, msg)
	e.Err = err
	return e
}
