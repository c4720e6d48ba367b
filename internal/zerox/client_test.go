package zerox

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onchain-trade-agent/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := NewClient(&config.ZeroX{BaseURL: server.URL + "/", ApiKey: "test_api_key", Timeout: 5 * time.Second, RateLimit: 1, RateLimitBurst: 1}, zap.NewNop())
	c.limiter = rate.NewLimiter(rate.Inf, 1) // Allow all requests in tests

	return c, server
}

func TestPrice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pricePath, r.URL.Path)
			assert.Equal(t, "test_api_key", r.Header.Get("0x-api-key"))
			assert.Equal(t, "0xsell", r.URL.Query().Get("sellToken"))
			assert.Equal(t, "0xbuy", r.URL.Query().Get("buyToken"))
			assert.Equal(t, "1000000", r.URL.Query().Get("sellAmount"))
			assert.Empty(t, r.URL.Query().Get("takerAddress"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"price":"0.0005","buyAmount":"500000000000000","sellAmount":"1000000"}`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		p, err := c.Price(context.Background(), SwapRequest{SellToken: "0xsell", BuyToken: "0xbuy", SellAmount: big.NewInt(1_000_000)})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "500000000000000", p.BuyAmount)
		assert.Equal(t, "1000000", p.SellAmount)
	})

	t.Run("RateLimited", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"reason":"slow down"}`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Price(context.Background(), SwapRequest{SellToken: "a", BuyToken: "b", SellAmount: big.NewInt(1)})

		require.Error(t, err)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.True(t, IsRetryable(err))
	})

	t.Run("BadRequestNotRetryable", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"reason":"Validation Failed"}`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Price(context.Background(), SwapRequest{SellToken: "a", BuyToken: "b", SellAmount: big.NewInt(1)})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Validation Failed")
		assert.False(t, IsRetryable(err))
	})
}

func TestQuote(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, quotePath, r.URL.Path)
			assert.Equal(t, "0xtaker", r.URL.Query().Get("takerAddress"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"to":"0xdef1","data":"0xabcdef","value":"0","allowanceTarget":"0xallow","buyAmount":"42","sellAmount":"100","price":"0.42"}`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		q, err := c.Quote(context.Background(), SwapRequest{SellToken: "a", BuyToken: "b", SellAmount: big.NewInt(100), Taker: "0xtaker"})

		require.NoError(t, err)
		assert.Equal(t, "0xdef1", q.To)
		assert.Equal(t, "0xallow", q.AllowanceTarget)
		assert.Equal(t, "42", q.BuyAmount)
	})

	t.Run("ServerErrorRetryable", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Quote(context.Background(), SwapRequest{SellToken: "a", BuyToken: "b", SellAmount: big.NewInt(1)})

		require.Error(t, err)
		assert.True(t, IsRetryable(err))
	})

	t.Run("IncompleteQuote", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"buyAmount":"1"}`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.Quote(context.Background(), SwapRequest{SellToken: "a", BuyToken: "b", SellAmount: big.NewInt(1)})

		assert.ErrorContains(t, err, "incomplete response")
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(errors.New("connection reset by peer")))
	assert.False(t, IsRetryable(&APIError{StatusCode: http.StatusNotFound}))
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", n.String())

	_, err = ParseAmount("1.5")
	assert.Error(t, err)
}
