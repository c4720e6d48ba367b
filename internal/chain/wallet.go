package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ErrTxReverted is returned when a mined transaction has a failed status.
var ErrTxReverted = errors.New("transaction reverted")

// Wallet signs and submits transactions from a single account.
type Wallet struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	erc20   abi.ABI
	logger  *zap.Logger
}

// Dial connects to rpcURL and loads the signing key. A non-zero expectedChainID must match
// the node's chain id.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, expectedChainID int64, logger *zap.Logger) (*Wallet, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if expectedChainID != 0 && chainID.Int64() != expectedChainID {
		client.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match configured %d", chainID, expectedChainID)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	w := &Wallet{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		erc20:   parsed,
		logger:  logger.Named("wallet"),
	}
	w.logger.Info("Wallet connected", zap.String("address", w.address.Hex()), zap.String("chain_id", chainID.String()))
	return w, nil
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, errors.New("empty private key")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Close releases the RPC connection.
func (w *Wallet) Close() {
	w.client.Close()
}

// Address is the wallet's account.
func (w *Wallet) Address() common.Address {
	return w.address
}

// ChainID is the connected chain.
func (w *Wallet) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// NativeBalance returns the account's ETH balance in wei.
func (w *Wallet) NativeBalance(ctx context.Context) (*big.Int, error) {
	bal, err := w.client.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}
	return bal, nil
}

// TokenBalance returns the account's balance of an ERC-20 token in smallest units.
func (w *Wallet) TokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := w.callUint(ctx, token, "balanceOf", w.address)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token.Hex(), err)
	}
	return out, nil
}

// Allowance returns how much spender may move of the account's token.
func (w *Wallet) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	out, err := w.callUint(ctx, token, "allowance", w.address, spender)
	if err != nil {
		return nil, fmt.Errorf("allowance %s: %w", token.Hex(), err)
	}
	return out, nil
}

func (w *Wallet) callUint(ctx context.Context, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	contract := w.Bind(token, w.erc20)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	return firstUint(out)
}

func firstUint(out []interface{}) (*big.Int, error) {
	if len(out) == 0 {
		return nil, errors.New("empty call result")
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", out[0])
	}
	return v, nil
}

// Approve grants spender amount of token and waits for the transaction to be mined.
func (w *Wallet) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	opts, err := w.TransactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := w.Bind(token, w.erc20).Transact(opts, "approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approve: %w", err)
	}
	w.logger.Info("Approval submitted", zap.String("token", token.Hex()), zap.String("spender", spender.Hex()), zap.String("tx", tx.Hash().Hex()))
	if _, err := w.WaitMined(ctx, tx); err != nil {
		return tx.Hash(), fmt.Errorf("approve: %w", err)
	}
	return tx.Hash(), nil
}

// Send submits a transaction with arbitrary calldata and waits for it to be mined.
func (w *Wallet) Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	opts, err := w.TransactOpts(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if value != nil && value.Sign() > 0 {
		opts.Value = value
	}
	tx, err := w.Bind(to, abi.ABI{}).RawTransact(opts, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send to %s: %w", to.Hex(), err)
	}
	w.logger.Info("Transaction submitted", zap.String("to", to.Hex()), zap.String("tx", tx.Hash().Hex()))
	if _, err := w.WaitMined(ctx, tx); err != nil {
		return tx.Hash(), err
	}
	return tx.Hash(), nil
}

// TransactOpts returns signing options bound to ctx.
func (w *Wallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Bind returns a contract handle backed by the wallet's RPC client.
func (w *Wallet) Bind(address common.Address, contractABI abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(address, contractABI, w.client, w.client, w.client)
}

// WaitMined blocks until tx is mined and fails on a reverted receipt.
func (w *Wallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, w.client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if err := CheckReceipt(receipt); err != nil {
		return receipt, err
	}
	return receipt, nil
}

// CheckReceipt returns ErrTxReverted for failed receipts.
func CheckReceipt(r *types.Receipt) error {
	if r.Status == types.ReceiptStatusFailed {
		return fmt.Errorf("%w: %s", ErrTxReverted, r.TxHash.Hex())
	}
	return nil
}
