package market

import (
	"context"
	"net/http"
	"testing"
	"time"

	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/zerox"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPriceSource is a mock type for the PriceSource interface.
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) Price(ctx context.Context, req zerox.SwapRequest) (*zerox.Price, error) {
	args := m.Called(ctx, req)
	if p := args.Get(0); p != nil {
		return p.(*zerox.Price), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestFetchMarkets(t *testing.T) {
	// Arrange
	src := new(MockPriceSource)
	markets := config.DefaultMarkets[:2]
	f := NewFetcher(src, config.DefaultBaseToken, markets, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	// 1 USDC buys 0.0005 WETH -> 2000 USDC per WETH.
	src.On("Price", mock.Anything, mock.MatchedBy(func(r zerox.SwapRequest) bool {
		return r.BuyToken == markets[0].Token.Address
	})).Return(&zerox.Price{SellAmount: "1000000", BuyAmount: "500000000000000"}, nil).Once()
	// 1 USDC buys 250 DEGEN -> 0.004 USDC per DEGEN.
	src.On("Price", mock.Anything, mock.MatchedBy(func(r zerox.SwapRequest) bool {
		return r.BuyToken == markets[1].Token.Address
	})).Return(&zerox.Price{SellAmount: "1000000", BuyAmount: "250000000000000000000"}, nil).Once()

	// Act
	got, err := f.FetchMarkets(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "WETH-USDC", got[0].ID)
	assert.True(t, decimal.NewFromInt(2000).Equal(got[0].Price), got[0].Price.String())
	assert.True(t, decimal.RequireFromString("0.004").Equal(got[1].Price), got[1].Price.String())
	assert.Equal(t, "USDC", got[0].BaseToken.Symbol)
	assert.Equal(t, "WETH", got[0].QuoteToken.Symbol)
	assert.Equal(t, fixed, got[0].UpdatedAt)
	src.AssertExpectations(t)

	for _, call := range src.Calls {
		req := call.Arguments.Get(1).(zerox.SwapRequest)
		assert.Equal(t, config.DefaultBaseToken.Address, req.SellToken)
		assert.Equal(t, "1000000", req.SellAmount.String())
	}
}

func TestFetchMarkets_NonRetryableErrorFailsBatch(t *testing.T) {
	src := new(MockPriceSource)
	f := NewFetcher(src, config.DefaultBaseToken, config.DefaultMarkets, zap.NewNop())
	src.On("Price", mock.Anything, mock.Anything).Return(nil, &zerox.APIError{StatusCode: http.StatusBadRequest, Body: "bad token"}).Once()

	_, err := f.FetchMarkets(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "WETH-USDC")
	src.AssertNumberOfCalls(t, "Price", 1)
}

func TestComputePrice(t *testing.T) {
	base := TokenFromConfig(config.DefaultBaseToken)
	weth := Token{Symbol: "WETH", Decimals: 18}

	p, err := ComputePrice(base, weth, "1000000", "0")
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	_, err = ComputePrice(base, weth, "abc", "1")
	assert.Error(t, err)
}

func TestTokenUnits(t *testing.T) {
	usdc := TokenFromConfig(config.DefaultBaseToken)
	assert.Equal(t, "12345678", usdc.ToUnits(decimal.RequireFromString("12.3456789")).String())
	assert.Equal(t, "1.5", usdc.FromUnits(decimal.NewFromInt(1_500_000)).String())
}

func TestFindBySymbol(t *testing.T) {
	ms := []Market{{ID: "A", QuoteToken: Token{Symbol: "DEGEN"}}, {ID: "B", QuoteToken: Token{Symbol: "WETH"}}}
	m, ok := FindBySymbol(ms, "WETH")
	require.True(t, ok)
	assert.Equal(t, "B", m.ID)

	_, ok = FindBySymbol(ms, "BRETT")
	assert.False(t, ok)
	assert.Len(t, Index(ms), 2)
}
