package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"agent-tools/config"
	"agent-tools/pkg/apperr"
	"agent-tools/pkg/types"
)

// ERC20 transfer function ABI
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const (
	nativeGasLimit   = uint64(21000)
	erc20GasLimit    = uint64(100000)
	calldataGasLimit = uint64(300000)
)

var erc20ABI = mustParseABI(erc20TransferABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
	return parsed
}

// EVMBackend is the subset of ethclient the settler needs
type EVMBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
}

// EVMSettler funds deposits on EVM-compatible chains
type EVMSettler struct {
	name       string
	network    config.EVMNetwork
	backend    EVMBackend
	privateKey *ecdsa.PrivateKey
	from       common.Address
	close      func()
}

// NewEVMSettler dials the network's RPC endpoint and loads its key
func NewEVMSettler(name string, network config.EVMNetwork) (*EVMSettler, error) {
	if network.RPCUrl == "" {
		return nil, apperr.Newf(apperr.KindConfig, "evm", "RPC URL not configured for network %s", name)
	}
	if network.PrivateKey == "" {
		return nil, apperr.Newf(apperr.KindConfig, "evm", "private key not configured for network %s", name)
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	s, err := NewEVMSettlerWithBackend(name, network, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.close = client.Close
	return s, nil
}

// NewEVMSettlerWithBackend builds a settler over an existing backend
func NewEVMSettlerWithBackend(name string, network config.EVMNetwork, backend EVMBackend) (*EVMSettler, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "evm "+name, err, "invalid private key")
	}

	return &EVMSettler{
		name:       name,
		network:    network,
		backend:    backend,
		privateKey: privateKey,
		from:       crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the sender address
func (e *EVMSettler) Address() string {
	return e.from.Hex()
}

// Close closes the RPC connection
func (e *EVMSettler) Close() {
	if e.close != nil {
		e.close()
	}
}

// Settle builds, signs and submits the deposit transaction.
//
// With calldata the transaction goes to ToAddress carrying the calldata
// unchanged. Otherwise a native transfer or an ERC20 transfer is built.
func (e *EVMSettler) Settle(ctx context.Context, action types.DepositAction) (string, error) {
	op := "evm settle " + e.name

	if !common.IsHexAddress(action.ToAddress) {
		return "", apperr.Newf(apperr.KindSettlement, op, "invalid recipient address: %s", action.ToAddress)
	}
	amount, err := BaseUnits(action, DefaultDecimals)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "invalid amount")
	}

	to, value, data, defaultGas, err := e.buildCall(action, amount)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to build transaction")
	}

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to get nonce")
	}
	gasPrice, err := e.gasPrice(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to get gas price")
	}
	gasLimit := e.gasLimit(ctx, to, value, data, defaultGas)

	chainID, err := e.chainID(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to get chain id")
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), e.privateKey)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to sign transaction")
	}

	if err := e.backend.SendTransaction(ctx, signedTx); err != nil {
		return "", apperr.Wrap(apperr.KindSettlement, op, err, "failed to send transaction")
	}

	zap.L().Debug("EVM transaction sent",
		zap.String("network", e.name),
		zap.String("hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit))
	return signedTx.Hash().Hex(), nil
}

func (e *EVMSettler) buildCall(action types.DepositAction, amount *big.Int) (common.Address, *big.Int, []byte, uint64, error) {
	recipient := common.HexToAddress(action.ToAddress)

	if action.CallData != "" {
		data, err := decodeCallData(action.CallData)
		if err != nil {
			return common.Address{}, nil, nil, 0, err
		}
		value := big.NewInt(0)
		if action.IsNative() {
			value = amount
		}
		return recipient, value, data, calldataGasLimit, nil
	}

	if action.IsNative() {
		return recipient, amount, nil, nativeGasLimit, nil
	}

	if !common.IsHexAddress(action.Token.Contract) {
		return common.Address{}, nil, nil, 0, fmt.Errorf("invalid token contract address: %s", action.Token.Contract)
	}
	data, err := erc20ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return common.Address{}, nil, nil, 0, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return common.HexToAddress(action.Token.Contract), big.NewInt(0), data, erc20GasLimit, nil
}

func decodeCallData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid calldata: %w", err)
	}
	return data, nil
}

// gasPrice returns the configured gas price or asks the node
func (e *EVMSettler) gasPrice(ctx context.Context) (*big.Int, error) {
	if e.network.GasPrice != nil {
		return big.NewInt(*e.network.GasPrice), nil
	}
	return e.backend.SuggestGasPrice(ctx)
}

// gasLimit returns the configured limit, an estimate with a 20% buffer, or
// the per-path default when estimation fails
func (e *EVMSettler) gasLimit(ctx context.Context, to common.Address, value *big.Int, data []byte, fallback uint64) uint64 {
	if e.network.GasLimit != nil {
		return *e.network.GasLimit
	}
	estimated, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  e.from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		zap.L().Warn("Gas estimation failed, using default",
			zap.String("network", e.name),
			zap.Uint64("gas", fallback),
			zap.Error(err))
		return fallback
	}
	return estimated * 120 / 100
}

func (e *EVMSettler) chainID(ctx context.Context) (*big.Int, error) {
	if e.network.ChainID != 0 {
		return big.NewInt(e.network.ChainID), nil
	}
	return e.backend.ChainID(ctx)
}
