// Package lendingclub wraps the marketplace investor REST API. All calls
// share one client-side rate gate: the marketplace enforces a single
// aggregate limit across its endpoints.
package lendingclub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pickvest/internal/pkg/apierr"
	"pickvest/internal/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the investor API root.
	DefaultBaseURL = "https://api.lendingclub.com/api/investor/v1"

	// DefaultRateInterval matches the marketplace's published one call per
	// second guideline.
	DefaultRateInterval = time.Second
)

// Config holds client construction parameters.
type Config struct {
	BaseURL      string
	InvestorID   string
	APIKey       string
	Timeout      time.Duration
	RateInterval time.Duration
}

// Client talks to the marketplace investor API.
type Client struct {
	baseURL    *url.URL
	investorID string
	apiKey     string
	httpClient *http.Client
	gate       *ratelimit.Gate
}

// NewClient constructs a marketplace client from configuration.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.InvestorID) == "" {
		return nil, fmt.Errorf("lendingclub: investor id is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("lendingclub: api key is required")
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("lendingclub: parsing base url failed: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rate := cfg.RateInterval
	if rate <= 0 {
		rate = DefaultRateInterval
	}
	return &Client{
		baseURL:    parsed,
		investorID: strings.TrimSpace(cfg.InvestorID),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		gate:       ratelimit.NewGate(rate),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ListedLoans fetches the current loan listing. With showAll false the
// marketplace returns only the most recently listed batch.
func (c *Client) ListedLoans(ctx context.Context, showAll bool) (LoanSnapshot, error) {
	path := "loans/listing"
	if showAll {
		path += "?showAll=true"
	}
	var wire loanListingWire
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return LoanSnapshot{}, err
	}
	return wire.toSnapshot(time.Now())
}

// AvailableCash issues a fresh query for the investable cash balance.
func (c *Client) AvailableCash(ctx context.Context) (decimal.Decimal, error) {
	var wire struct {
		AvailableCash *decimal.Decimal `json:"availableCash"`
	}
	if err := c.doRequest(ctx, http.MethodGet, c.accountPath("availablecash"), nil, &wire); err != nil {
		return decimal.Zero, err
	}
	if wire.AvailableCash == nil {
		return decimal.Zero, apierr.NonRetryablef("lendingclub: availablecash response missing availableCash")
	}
	return *wire.AvailableCash, nil
}

// PortfoliosOwned lists the investor's portfolios.
func (c *Client) PortfoliosOwned(ctx context.Context) ([]Portfolio, error) {
	var wire struct {
		MyPortfolios []portfolioWire `json:"myPortfolios"`
	}
	if err := c.doRequest(ctx, http.MethodGet, c.accountPath("portfolios"), nil, &wire); err != nil {
		return nil, err
	}
	out := make([]Portfolio, 0, len(wire.MyPortfolios))
	for _, pw := range wire.MyPortfolios {
		p, err := pw.toPortfolio()
		if err != nil {
			return nil, apierr.NonRetryablef("lendingclub: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// CreatePortfolio creates a new named portfolio in the investor account.
func (c *Client) CreatePortfolio(ctx context.Context, name, desc string) (Portfolio, error) {
	payload := map[string]any{
		"aid":                  c.investorID,
		"portfolioName":        name,
		"portfolioDescription": desc,
	}
	var wire portfolioWire
	if err := c.doRequest(ctx, http.MethodPost, c.accountPath("portfolios"), payload, &wire); err != nil {
		return Portfolio{}, err
	}
	p, err := wire.toPortfolio()
	if err != nil {
		return Portfolio{}, apierr.NonRetryablef("lendingclub: create portfolio: %w", err)
	}
	return p, nil
}

// SubmitOrder submits one batch order covering all loanIDs at amountPerLoan
// each. The marketplace answers with one confirmation per requested loan; a
// loan it does not answer for must be treated as unfulfilled by the caller.
func (c *Client) SubmitOrder(ctx context.Context, loanIDs []int64, amountPerLoan decimal.Decimal, portfolioID *int64) (OrderResult, error) {
	if len(loanIDs) == 0 {
		return OrderResult{}, fmt.Errorf("lendingclub: submit order requires at least one loan id")
	}
	orders := make([]map[string]any, 0, len(loanIDs))
	for _, id := range loanIDs {
		order := map[string]any{
			"loanId":          id,
			"requestedAmount": amountPerLoan,
		}
		if portfolioID != nil {
			order["portfolioId"] = *portfolioID
		}
		orders = append(orders, order)
	}
	payload := map[string]any{
		"aid":    c.investorID,
		"orders": orders,
	}
	var wire struct {
		OrderInstructID    *int64             `json:"orderInstructId"`
		OrderConfirmations []confirmationWire `json:"orderConfirmations"`
	}
	if err := c.doRequest(ctx, http.MethodPost, c.accountPath("orders"), payload, &wire); err != nil {
		return OrderResult{}, err
	}
	result := OrderResult{
		OrderInstructID: wire.OrderInstructID,
		Confirmations:   make([]OrderConfirmation, 0, len(wire.OrderConfirmations)),
	}
	for _, cw := range wire.OrderConfirmations {
		conf, err := cw.toConfirmation()
		if err != nil {
			return OrderResult{}, apierr.NonRetryablef("lendingclub: %w", err)
		}
		result.Confirmations = append(result.Confirmations, conf)
	}
	return result, nil
}

func (c *Client) accountPath(resource string) string {
	return fmt.Sprintf("accounts/%s/%s", c.investorID, resource)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("lendingclub client not initialized")
	}
	endpoint, err := c.baseURL.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return fmt.Errorf("lendingclub: resolving %s failed: %w", path, err)
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("lendingclub: encoding request failed: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.gate.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierr.Transient(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return apierr.Transient(err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return apierr.Transientf("lendingclub: %s %s returned %d", method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return apierr.NonRetryablef("lendingclub: %s %s returned %d: %s", method, path, resp.StatusCode, truncateBody(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierr.NonRetryablef("lendingclub: decoding %s response failed: %w", path, err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 256
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
