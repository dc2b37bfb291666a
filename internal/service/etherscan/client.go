package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NetflowWatch/internal/domain/models"
	dservice "NetflowWatch/internal/domain/service"
	"NetflowWatch/internal/service/ratelimit"
	xhttp "NetflowWatch/pkg/http"
	applogger "NetflowWatch/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.etherscan.io/api"
	// HardMax is the most rows tokentx returns for one query (page * offset).
	HardMax = 10000
)

// ErrRateLimited is returned when the API keeps rejecting calls for rate reasons.
var ErrRateLimited = errors.New("etherscan: rate limited")

// Option configures Client.
type Option func(*Client)

// Client talks to the Etherscan account/block API.
type Client struct {
	http       *xhttp.Client
	limiter    *ratelimit.Limiter
	log        *applogger.Logger
	baseURL    string
	apiKey     string
	contract   string
	decimals   int32
	pageSize   int
	maxPages   int
	ratePerSec float64
	maxRetries int
	backoff    time.Duration
}

func New(apiKey, contract string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		contract:   strings.ToLower(contract),
		decimals:   18,
		pageSize:   1000,
		maxPages:   50,
		ratePerSec: 4,
		maxRetries: 3,
		backoff:    time.Second,
		limiter:    ratelimit.New(),
		log:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
	}
	return c
}

var (
	_ dservice.BlockResolver   = (*Client)(nil)
	_ dservice.TransferFetcher = (*Client)(nil)
)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(h *xhttp.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.log = l } }

// WithDecimals sets the fallback token decimals when a row omits tokenDecimal.
func WithDecimals(d int32) Option { return func(c *Client) { c.decimals = d } }

// WithPaging sets the page size and page cap of tokentx pagination.
func WithPaging(pageSize, maxPages int) Option {
	return func(c *Client) {
		c.pageSize = pageSize
		c.maxPages = maxPages
	}
}

// WithRate caps outgoing calls per second.
func WithRate(perSec float64) Option { return func(c *Client) { c.ratePerSec = perSec } }

// WithRetry sets retry attempts and the base backoff for transient failures.
func WithRetry(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.backoff = backoff
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type tokenTx struct {
	Hash         string `json:"hash"`
	BlockNumber  string `json:"blockNumber"`
	TimeStamp    string `json:"timeStamp"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	TokenDecimal string `json:"tokenDecimal"`
}

// BlockByTime resolves the block closest to at; closest is "before" or "after".
func (c *Client) BlockByTime(ctx context.Context, at time.Time, closest string) (uint64, error) {
	env, err := c.call(ctx, map[string]string{
		"module":    "block",
		"action":    "getblocknobytime",
		"timestamp": strconv.FormatInt(at.Unix(), 10),
		"closest":   closest,
	})
	if err != nil {
		return 0, err
	}
	if env.Status != "1" {
		return 0, fmt.Errorf("getblocknobytime: %s: %s", env.Message, string(env.Result))
	}
	var s string
	if err := json.Unmarshal(env.Result, &s); err != nil {
		return 0, fmt.Errorf("getblocknobytime result: %w", err)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("getblocknobytime result %q: %w", s, err)
	}
	return n, nil
}

// FetchTransfers pages through tokentx for address. A short page or a
// non-"1" status ends the listing.
func (c *Client) FetchTransfers(ctx context.Context, address string, startBlock, endBlock uint64) ([]models.TransferRecord, error) {
	var out []models.TransferRecord
	for page := 1; page <= c.maxPages; page++ {
		params := map[string]string{
			"module":          "account",
			"action":          "tokentx",
			"contractaddress": c.contract,
			"address":         address,
			"sort":            "asc",
			"page":            strconv.Itoa(page),
			"offset":          strconv.Itoa(c.pageSize),
		}
		if startBlock > 0 {
			params["startblock"] = strconv.FormatUint(startBlock, 10)
		}
		if endBlock > 0 {
			params["endblock"] = strconv.FormatUint(endBlock, 10)
		}

		env, err := c.call(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("tokentx %s page %d: %w", address, page, err)
		}
		if env.Status != "1" {
			break
		}
		var batch []tokenTx
		if err := json.Unmarshal(env.Result, &batch); err != nil {
			return nil, fmt.Errorf("tokentx %s page %d: decode: %w", address, page, err)
		}
		for i, tx := range batch {
			rec, err := c.normalize(tx)
			if err != nil {
				return nil, fmt.Errorf("tokentx %s page %d row %d: %w", address, page, i, err)
			}
			out = append(out, rec)
		}
		c.log.Debug("etherscan page",
			applogger.String("address", address),
			applogger.Int("page", page),
			applogger.Int("rows", len(batch)),
		)
		if len(batch) < c.pageSize {
			break
		}
	}
	return out, nil
}

// normalize converts raw integer token amounts into token units.
func (c *Client) normalize(tx tokenTx) (models.TransferRecord, error) {
	block, err := strconv.ParseUint(tx.BlockNumber, 10, 64)
	if err != nil {
		return models.TransferRecord{}, fmt.Errorf("blockNumber %q: %w", tx.BlockNumber, err)
	}
	ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return models.TransferRecord{}, fmt.Errorf("timeStamp %q: %w", tx.TimeStamp, err)
	}
	raw, err := decimal.NewFromString(tx.Value)
	if err != nil {
		return models.TransferRecord{}, fmt.Errorf("value %q: %w", tx.Value, err)
	}
	dec := c.decimals
	if tx.TokenDecimal != "" {
		if d, err := strconv.ParseInt(tx.TokenDecimal, 10, 32); err == nil {
			dec = int32(d)
		}
	}
	value, _ := raw.Shift(-dec).Float64()
	return models.TransferRecord{
		Hash:        tx.Hash,
		BlockNumber: block,
		Timestamp:   ts,
		From:        tx.From,
		To:          tx.To,
		Value:       value,
	}, nil
}

func (c *Client) call(ctx context.Context, params map[string]string) (envelope, error) {
	q := make(url.Values, len(params)+1)
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", c.apiKey)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<uint(attempt-1))
			c.log.Warn("etherscan retry",
				applogger.String("action", params["action"]),
				applogger.Int("attempt", attempt),
				applogger.Error(lastErr),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return envelope{}, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx, "etherscan", c.ratePerSec, c.ratePerSec); err != nil {
			return envelope{}, err
		}

		var env envelope
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL,
			QueryParams: q,
		}, &env)
		if err != nil {
			if ctx.Err() != nil {
				return envelope{}, ctx.Err()
			}
			if !xhttp.Retryable(err) {
				return envelope{}, err
			}
			lastErr = err
			continue
		}
		if env.Status != "1" && isRateLimit(env.Result) {
			lastErr = ErrRateLimited
			continue
		}
		return env, nil
	}
	return envelope{}, lastErr
}

func isRateLimit(result json.RawMessage) bool {
	var s string
	if json.Unmarshal(result, &s) != nil {
		return false
	}
	return strings.Contains(strings.ToLower(s), "rate limit")
}
