// Package pricefeed talks to the DEX aggregator for spot prices and swap
// quotes.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
)

const (
	// NativeMint is wrapped SOL.
	NativeMint = "So11111111111111111111111111111111111111112"

	DefaultBaseURL   = "https://api.jup.ag"
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 5 // requests per second
	lamportsPerSOL   = 1_000_000_000
)

var (
	// ErrPriceUnavailable is returned when the aggregator has no usable price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrMalformedResponse is returned for undecodable bodies.
	ErrMalformedResponse = errors.New("malformed aggregator response")
)

// Prices are spot prices for the tracked token.
type Prices struct {
	// TokenPriceNative is the token price in SOL.
	TokenPriceNative float64
	// NativeUSD is the SOL price in USD, when the aggregator has it.
	NativeUSD amount.Optional
}

// Config configures the client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	Retries   int
}

// Client is an HTTP client for a Jupiter-style aggregator.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client. Zero config fields take defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger.Named("pricefeed"),
	}
}

type priceResponse struct {
	Data map[string]*struct {
		ID    string          `json:"id"`
		Price json.RawMessage `json:"price"`
	} `json:"data"`
}

// Prices fetches the USD prices of mint and SOL and derives the SOL price of
// mint.
func (c *Client) Prices(ctx context.Context, mint string) (Prices, error) {
	q := url.Values{}
	q.Set("ids", mint+","+NativeMint)

	var resp priceResponse
	if err := c.get(ctx, "/price/v2?"+q.Encode(), &resp); err != nil {
		return Prices{}, err
	}

	tokenUSD := c.price(resp, mint)
	nativeUSD := c.price(resp, NativeMint)
	if !tokenUSD.Valid || !nativeUSD.Valid || nativeUSD.Value <= 0 || tokenUSD.Value <= 0 {
		return Prices{NativeUSD: nativeUSD}, fmt.Errorf("%w for %s", ErrPriceUnavailable, mint)
	}

	return Prices{
		TokenPriceNative: tokenUSD.Value / nativeUSD.Value,
		NativeUSD:        nativeUSD,
	}, nil
}

func (c *Client) price(resp priceResponse, mint string) amount.Optional {
	entry, ok := resp.Data[mint]
	if !ok || entry == nil {
		return amount.None
	}
	return normalizeRaw(entry.Price)
}

type quoteResponse struct {
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct json.RawMessage `json:"priceImpactPct"`
	SlippageBps    int             `json:"slippageBps"`
}

// Quote is the aggregator's proposed output for a swap.
type Quote struct {
	InputSOL       float64
	Output         float64
	PriceImpactPct amount.Optional
}

// Quote asks for the best route swapping inputSOL SOL into mint.
func (c *Client) Quote(ctx context.Context, mint string, tokenDecimals int, inputSOL float64, slippageBps int) (Quote, error) {
	if math.IsNaN(inputSOL) || math.IsInf(inputSOL, 0) {
		return Quote{}, fmt.Errorf("invalid swap input %v SOL", inputSOL)
	}
	lamports := new(big.Float).Mul(big.NewFloat(inputSOL), big.NewFloat(lamportsPerSOL))
	lamportsInt, _ := lamports.Int(nil)
	if lamportsInt.Sign() <= 0 {
		return Quote{}, fmt.Errorf("invalid swap input %v SOL", inputSOL)
	}

	q := url.Values{}
	q.Set("inputMint", NativeMint)
	q.Set("outputMint", mint)
	q.Set("amount", lamportsInt.String())
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	var resp quoteResponse
	if err := c.get(ctx, "/swap/v1/quote?"+q.Encode(), &resp); err != nil {
		return Quote{}, err
	}

	raw, ok := new(big.Int).SetString(resp.OutAmount, 10)
	if !ok {
		return Quote{}, fmt.Errorf("%w: outAmount %q", ErrMalformedResponse, resp.OutAmount)
	}
	out := amount.Normalize(amount.Token(amount.NewTokenAmount(raw, int32(tokenDecimals))), tokenDecimals)
	if !out.Valid {
		return Quote{}, fmt.Errorf("%w: outAmount %q", ErrMalformedResponse, resp.OutAmount)
	}

	return Quote{
		InputSOL:       inputSOL,
		Output:         out.Value,
		PriceImpactPct: normalizeRaw(resp.PriceImpactPct),
	}, nil
}

// normalizeRaw accepts a JSON number or numeric string.
func normalizeRaw(raw json.RawMessage) amount.Optional {
	if len(raw) == 0 {
		return amount.None
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return amount.Normalize(amount.String(s), 0)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return amount.Normalize(amount.Number(f), 0)
	}
	return amount.None
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.code, e.body)
}

func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, path, dst)
		var se *statusError
		if errors.As(err, &se) && se.code != http.StatusTooManyRequests && se.code < 500 {
			return struct{}{}, backoff.Permanent(err)
		}
		if errors.Is(err, ErrMalformedResponse) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Debug("aggregator request failed", zap.String("path", path), zap.Error(err))
		}
		return struct{}{}, err
	}, backoff.WithMaxTries(uint(c.cfg.Retries)))
	return err
}

func (c *Client) do(ctx context.Context, path string, dst interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
