package zerox

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"onchain-trade-agent/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pricePath = "/swap/v1/price"
	quotePath = "/swap/v1/quote"
)

// ClientInterface is the part of the 0x swap API the agent uses.
type ClientInterface interface {
	Price(ctx context.Context, req SwapRequest) (*Price, error)
	Quote(ctx context.Context, req SwapRequest) (*Quote, error)
}

// Client is a client for the 0x swap API.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ ClientInterface = (*Client)(nil)

// SwapRequest asks for a price or a firm quote selling SellAmount smallest units of SellToken.
type SwapRequest struct {
	SellToken  string
	BuyToken   string
	SellAmount *big.Int
	// Taker is the address that will submit the swap. Optional for prices.
	Taker string
}

// Price is an indicative price.
type Price struct {
	Price      string `json:"price"`
	BuyAmount  string `json:"buyAmount"`
	SellAmount string `json:"sellAmount"`
}

// Quote is a firm quote carrying the settlement transaction.
type Quote struct {
	Price           string `json:"price"`
	To              string `json:"to"`
	Data            string `json:"data"`
	Value           string `json:"value"`
	Gas             string `json:"gas"`
	AllowanceTarget string `json:"allowanceTarget"`
	BuyAmount       string `json:"buyAmount"`
	SellAmount      string `json:"sellAmount"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("0x api error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth retrying.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable classifies errors returned by Client: API errors by status, cancellation never,
// and anything else (transport failures) always.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

// NewClient creates a new 0x API client.
func NewClient(cfg *config.ZeroX, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.ApiKey != "" {
		client.SetHeader("0x-api-key", cfg.ApiKey)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger.Named("zerox"),
		limiter: limiter,
	}
}

// Price fetches an indicative price.
func (c *Client) Price(ctx context.Context, req SwapRequest) (*Price, error) {
	r := c.client.R().
		SetContext(ctx).
		SetQueryParams(swapParams(req)).
		SetResult(&Price{})

	resp, err := c.doRequest(ctx, http.MethodGet, pricePath, r)
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return resp.Result().(*Price), nil
}

// Quote fetches a firm quote.
func (c *Client) Quote(ctx context.Context, req SwapRequest) (*Quote, error) {
	r := c.client.R().
		SetContext(ctx).
		SetQueryParams(swapParams(req)).
		SetResult(&Quote{})

	resp, err := c.doRequest(ctx, http.MethodGet, quotePath, r)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	q := resp.Result().(*Quote)
	if q.To == "" || q.AllowanceTarget == "" {
		return nil, fmt.Errorf("failed to get quote: incomplete response %s", resp.String())
	}
	return q, nil
}

func swapParams(req SwapRequest) map[string]string {
	params := map[string]string{
		"sellToken":  req.SellToken,
		"buyToken":   req.BuyToken,
		"sellAmount": req.SellAmount.String(),
	}
	if req.Taker != "" {
		params["takerAddress"] = req.Taker
	}
	return params
}

// doRequest executes a single rate-limited request. Retrying is left to the caller so the
// call site controls the backoff schedule.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return resp, nil
}

// ParseAmount parses an integer token amount as returned by the API.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}
