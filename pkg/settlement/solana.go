package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"agent-tools/config"
	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

// Lamports per SOL
const solanaNativeDecimals = 9

// SolanaRPC is the subset of the solana-go RPC client the settler needs
type SolanaRPC interface {
	GetRecentBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetRecentBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// SolanaSettler funds deposits on Solana with native SOL or SPL tokens
type SolanaSettler struct {
	config     config.SolanaConfig
	client     SolanaRPC
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSolanaSettler connects to the configured RPC endpoint
func NewSolanaSettler(cfg config.SolanaConfig) (*SolanaSettler, error) {
	if cfg.RPCUrl == "" {
		return nil, apperr.New(apperr.KindConfig, "solana", "RPC URL not configured for Solana")
	}
	return NewSolanaSettlerWithClient(cfg, rpc.New(cfg.RPCUrl))
}

// NewSolanaSettlerWithClient builds a settler over an existing RPC client
func NewSolanaSettlerWithClient(cfg config.SolanaConfig, client SolanaRPC) (*SolanaSettler, error) {
	if cfg.PrivateKey == "" {
		return nil, apperr.New(apperr.KindConfig, "solana", "private key not configured for Solana")
	}
	// Base58 encoded
	privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "solana", err, "invalid private key")
	}

	return &SolanaSettler{
		config:     cfg,
		client:     client,
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// Address returns the fee payer and sender
func (s *SolanaSettler) Address() string {
	return s.publicKey.String()
}

// Settle sends native SOL when the action has no token contract, otherwise an
// SPL transfer to the recipient's associated token account, creating it first
// when missing.
func (s *SolanaSettler) Settle(ctx context.Context, action types.DepositAction) (string, error) {
	const op = "solana settle"

	if action.CallData != "" {
		return "", apperr.New(apperr.KindSettlement, op, "calldata deposits are not supported on Solana")
	}
	recipient, err := solana.PublicKeyFromBase58(action.ToAddress)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "invalid recipient address")
	}

	var instructions []solana.Instruction
	if action.IsNative() {
		lamports, err := BaseUnits(action, solanaNativeDecimals)
		if err != nil {
			return "", apperr.Wrap(apperr.KindSettlement, op, err, "invalid amount")
		}
		instructions = append(instructions, system.NewTransferInstruction(
			lamports.Uint64(),
			s.publicKey,
			recipient,
		).Build())
	} else {
		instructions, err = s.splInstructions(ctx, recipient, action)
		if err != nil {
			return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to build SPL transfer")
		}
	}

	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to get recent blockhash")
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.publicKey),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to create transaction")
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to sign transaction")
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       s.config.SkipPreflight,
		PreflightCommitment: s.commitment(),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to send transaction")
	}
	return sig.String(), nil
}

func (s *SolanaSettler) splInstructions(ctx context.Context, recipient solana.PublicKey, action types.DepositAction) ([]solana.Instruction, error) {
	mint, err := solana.PublicKeyFromBase58(action.Token.Contract)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	if action.AmountInBaseUnits == "" && action.Token.Decimals == nil {
		decimals, err := s.tokenDecimals(ctx, mint)
		if err != nil {
			return nil, err
		}
		d := int32(decimals)
		action.Token.Decimals = &d
	}
	amount, err := BaseUnits(action, solanaNativeDecimals)
	if err != nil {
		return nil, err
	}

	source, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	exists, err := s.accountExists(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination account: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			s.publicKey, // payer
			recipient,   // wallet
			mint,
		).Build())
	}
	instructions = append(instructions, token.NewTransferInstruction(
		amount.Uint64(),
		source,
		dest,
		s.publicKey,
		[]solana.PublicKey{},
	).Build())
	return instructions, nil
}

// tokenDecimals reads the decimals byte of an SPL mint account
func (s *SolanaSettler) tokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	info, err := s.client.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to get mint account info: %w", err)
	}
	if info == nil || info.Value == nil {
		return 0, fmt.Errorf("mint account not found")
	}
	data := info.Value.Data.GetBinary()
	if len(data) < 45 {
		return 0, fmt.Errorf("invalid mint account data")
	}
	return data[44], nil
}

func (s *SolanaSettler) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return info != nil && info.Value != nil, nil
}

func (s *SolanaSettler) commitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
