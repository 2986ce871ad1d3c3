package settlement

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-tools/config"
	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

type fakeSolanaRPC struct {
	accountExists bool
	sent          []*solana.Transaction
	opts          []rpc.TransactionOpts
}

func (f *fakeSolanaRPC) GetRecentBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetRecentBlockhashResult, error) {
	return &rpc.GetRecentBlockhashResult{Value: &rpc.BlockhashResult{Blockhash: solana.Hash{1, 2, 3}}}, nil
}

func (f *fakeSolanaRPC) GetAccountInfo(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if !f.accountExists {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil
}

func (f *fakeSolanaRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.sent = append(f.sent, tx)
	f.opts = append(f.opts, opts)
	return tx.Signatures[0], nil
}

func newTestSolanaSettler(t *testing.T, client *fakeSolanaRPC) *SolanaSettler {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	s, err := NewSolanaSettlerWithClient(config.SolanaConfig{
		PrivateKey:    key.String(),
		Commitment:    "finalized",
		SkipPreflight: true,
	}, client)
	require.NoError(t, err)
	return s
}

func programIDs(t *testing.T, tx *solana.Transaction) []solana.PublicKey {
	t.Helper()
	ids, err := tx.GetProgramIDs()
	require.NoError(t, err)
	return ids
}

func TestSolanaNativeTransfer(t *testing.T) {
	client := &fakeSolanaRPC{}
	s := newTestSolanaSettler(t, client)
	recipient := solana.NewWallet().PublicKey()

	sig, err := s.Settle(context.Background(), types.DepositAction{
		ToAddress: recipient.String(),
		Amount:    decimal.RequireFromString("0.25"),
		Token:     types.DepositToken{Symbol: "SOL"},
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	assert.Equal(t, tx.Signatures[0].String(), sig)
	assert.Len(t, tx.Message.Instructions, 1)
	assert.Equal(t, []solana.PublicKey{solana.SystemProgramID}, programIDs(t, tx))
	assert.True(t, client.opts[0].SkipPreflight)
	assert.Equal(t, rpc.CommitmentFinalized, client.opts[0].PreflightCommitment)
	require.NoError(t, tx.VerifySignatures())
}

func TestSolanaSPLTransferCreatesMissingAccount(t *testing.T) {
	client := &fakeSolanaRPC{}
	s := newTestSolanaSettler(t, client)
	mint := solana.NewWallet().PublicKey()

	_, err := s.Settle(context.Background(), types.DepositAction{
		ToAddress: solana.NewWallet().PublicKey().String(),
		Amount:    decimal.NewFromInt(3),
		Token:     types.DepositToken{Symbol: "USDC", Contract: mint.String(), Decimals: decimals(6)},
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	assert.Len(t, tx.Message.Instructions, 2)
	ids := programIDs(t, tx)
	assert.Contains(t, ids, solana.SPLAssociatedTokenAccountProgramID)
	assert.Contains(t, ids, solana.TokenProgramID)
}

func TestSolanaSPLTransferExistingAccount(t *testing.T) {
	client := &fakeSolanaRPC{accountExists: true}
	s := newTestSolanaSettler(t, client)

	_, err := s.Settle(context.Background(), types.DepositAction{
		ToAddress:         solana.NewWallet().PublicKey().String(),
		AmountInBaseUnits: "1000",
		Token:             types.DepositToken{Symbol: "USDC", Contract: solana.NewWallet().PublicKey().String()},
	})
	require.NoError(t, err)
	assert.Len(t, client.sent[0].Message.Instructions, 1)
	assert.Equal(t, []solana.PublicKey{solana.TokenProgramID}, programIDs(t, client.sent[0]))
}

func TestSolanaRejectsCalldataAndBadRecipient(t *testing.T) {
	s := newTestSolanaSettler(t, &fakeSolanaRPC{})

	_, err := s.Settle(context.Background(), types.DepositAction{ToAddress: "x", CallData: "0x01", Amount: decimal.NewFromInt(1)})
	assert.Equal(t, apperr.KindSettlement, apperr.KindOf(err))

	_, err = s.Settle(context.Background(), types.DepositAction{ToAddress: "0xnot-base58", Amount: decimal.NewFromInt(1)})
	assert.Equal(t, apperr.KindSettlement, apperr.KindOf(err))
}
