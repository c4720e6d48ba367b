package collectible

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const tradeNFTABI = `[
	{"type":"event","name":"TradeMinted","inputs":[
		{"indexed":true,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"market","type":"string"},
		{"indexed":false,"name":"pnlBps","type":"int256"}]},
	{"type":"function","name":"mintTrade","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"market","type":"string"},
		{"name":"position","type":"string"},
		{"name":"entryPrice","type":"uint256"},
		{"name":"exitPrice","type":"uint256"},
		{"name":"pnlBps","type":"int256"},
		{"name":"timestamp","type":"uint256"},
		{"name":"commentary","type":"string"}],
	 "outputs":[{"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"isNotableTrade","stateMutability":"view","inputs":[
		{"name":"pnlBps","type":"int256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

// PriceDecimals is the fixed-point precision of prices passed to the contract.
const PriceDecimals = 6

// PositionLong is the position label recorded on-chain.
const PositionLong = "LONG"

// Backend is the signing account that submits mints.
type Backend interface {
	Address() common.Address
	Bind(address common.Address, contractABI abi.ABI) *bind.BoundContract
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// MintRequest describes a closed trade to record.
type MintRequest struct {
	Market     string
	Position   string
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	PnlBps     int64
	ClosedAt   time.Time
	Commentary string
}

// Minted is the outcome of a mint.
type Minted struct {
	TokenID string
	TxHash  common.Hash
}

// Minter mints trade collectibles on the configured contract.
type Minter struct {
	backend Backend
	address common.Address
	abi     abi.ABI
	logger  *zap.Logger
}

// NewMinter binds to the collectible contract at address.
func NewMinter(backend Backend, address string, logger *zap.Logger) (*Minter, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid collectible contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(tradeNFTABI))
	if err != nil {
		return nil, fmt.Errorf("parse collectible abi: %w", err)
	}
	return &Minter{
		backend: backend,
		address: common.HexToAddress(address),
		abi:     parsed,
		logger:  logger.Named("collectible"),
	}, nil
}

// IsNotable asks the contract whether a trade with this P&L deserves a collectible.
func (m *Minter) IsNotable(ctx context.Context, pnlBps int64) (bool, error) {
	var out []interface{}
	err := m.backend.Bind(m.address, m.abi).Call(&bind.CallOpts{Context: ctx}, &out, "isNotableTrade", big.NewInt(pnlBps))
	if err != nil {
		return false, fmt.Errorf("isNotableTrade: %w", err)
	}
	if len(out) == 0 {
		return false, errors.New("isNotableTrade: empty result")
	}
	notable, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isNotableTrade: unexpected result type %T", out[0])
	}
	return notable, nil
}

// Mint records the trade on-chain and returns the token id from the TradeMinted event.
func (m *Minter) Mint(ctx context.Context, req MintRequest) (*Minted, error) {
	opts, err := m.backend.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := m.backend.Bind(m.address, m.abi).Transact(opts, "mintTrade",
		m.backend.Address(),
		req.Market,
		req.Position,
		PriceToUint(req.EntryPrice),
		PriceToUint(req.ExitPrice),
		big.NewInt(req.PnlBps),
		big.NewInt(req.ClosedAt.Unix()),
		req.Commentary,
	)
	if err != nil {
		return nil, fmt.Errorf("mintTrade: %w", err)
	}

	receipt, err := m.backend.WaitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("mintTrade: %w", err)
	}

	tokenID, ok := m.tokenIDFromLogs(receipt.Logs)
	if !ok {
		m.logger.Warn("TradeMinted event not found", zap.String("tx", tx.Hash().Hex()))
	}
	m.logger.Info("Collectible minted", zap.String("token_id", tokenID), zap.String("tx", tx.Hash().Hex()))
	return &Minted{TokenID: tokenID, TxHash: tx.Hash()}, nil
}

func (m *Minter) tokenIDFromLogs(logs []*types.Log) (string, bool) {
	eventID := m.abi.Events["TradeMinted"].ID
	for _, l := range logs {
		if l.Address != m.address || len(l.Topics) < 2 || l.Topics[0] != eventID {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()).String(), true
	}
	return "", false
}

// PriceToUint scales a price to PriceDecimals fixed point, rounding to the nearest unit.
func PriceToUint(p decimal.Decimal) *big.Int {
	return p.Shift(PriceDecimals).Round(0).BigInt()
}
