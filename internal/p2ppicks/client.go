// Package p2ppicks wraps the underwriting service's signed REST API.
package p2ppicks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"pickvest/internal/lendingclub"
	"pickvest/internal/logger"
	"pickvest/internal/pkg/apierr"
	"pickvest/internal/pkg/ratelimit"
)

const (
	// DefaultBaseURL is the underwriting service API root.
	DefaultBaseURL = "https://www.p2p-picks.com/api/v1"

	// DefaultProduct is the pick product this investor subscribes to.
	DefaultProduct = "profit-maximizer"
)

// Config holds client construction parameters.
type Config struct {
	BaseURL      string
	Key          string
	Secret       string
	SID          string
	Product      string
	Timeout      time.Duration
	RateInterval time.Duration
}

// Client talks to the underwriting service.
type Client struct {
	baseURL    *url.URL
	key        string
	secret     string
	sid        string
	product    string
	httpClient *http.Client
	gate       *ratelimit.Gate
}

// NewClient constructs an underwriter client from configuration.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Key) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("p2ppicks: api key and secret are required")
	}
	if strings.TrimSpace(cfg.SID) == "" {
		return nil, fmt.Errorf("p2ppicks: subscriber session id is required")
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("p2ppicks: parsing base url failed: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rate := cfg.RateInterval
	if rate <= 0 {
		rate = time.Second
	}
	product := strings.TrimSpace(cfg.Product)
	if product == "" {
		product = DefaultProduct
	}
	return &Client{
		baseURL:    parsed,
		key:        strings.TrimSpace(cfg.Key),
		secret:     strings.TrimSpace(cfg.Secret),
		sid:        strings.TrimSpace(cfg.SID),
		product:    product,
		httpClient: &http.Client{Timeout: timeout},
		gate:       ratelimit.NewGate(rate),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Picks fetches the currently published picks for the subscribed product.
func (c *Client) Picks(ctx context.Context) (PicksSnapshot, error) {
	raw, err := c.request(ctx, "picks", "list", map[string]string{
		"p2p_product": c.product,
	})
	if err != nil {
		return PicksSnapshot{}, err
	}
	var wire picksWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return PicksSnapshot{}, apierr.NonRetryablef("p2ppicks: decoding picks failed: %w", err)
	}
	return wire.toSnapshot(time.Now())
}

// SubscriberActive reports whether the subscriber session is in good
// standing. The investor refuses to run on an inactive subscription.
func (c *Client) SubscriberActive(ctx context.Context) (bool, error) {
	raw, err := c.request(ctx, "subscriber", "status", map[string]string{
		"p2p_sid": c.sid,
	})
	if err != nil {
		return false, err
	}
	status := gjson.GetBytes(raw, "status").String()
	return status == "active", nil
}

// Validate exchanges subscriber credentials for a session id.
func (c *Client) Validate(ctx context.Context, email, password string) (sid, status string, err error) {
	raw, err := c.request(ctx, "subscriber", "validate", map[string]string{
		"p2p_email":    email,
		"p2p_password": password,
	})
	if err != nil {
		return "", "", err
	}
	return gjson.GetBytes(raw, "sid").String(), gjson.GetBytes(raw, "status").String(), nil
}

type reportPick struct {
	Product string `json:"product"`
	LoanID  int64  `json:"loan_id"`
	Note    int64  `json:"note"`
}

type reportEntry struct {
	SID   string       `json:"sid"`
	Picks []reportPick `json:"picks"`
}

// Report sends a best-effort usage report of fulfilled orders back to the
// underwriter. Callers treat a failure here as log-only: an investment must
// never be considered failed because the report did not go through.
func (c *Client) Report(ctx context.Context, confirmations []lendingclub.OrderConfirmation) error {
	picks := make([]reportPick, 0, len(confirmations))
	for _, conf := range confirmations {
		if !orderFulfilled(conf.ExecutionStatus) {
			continue
		}
		picks = append(picks, reportPick{
			Product: c.product,
			LoanID:  conf.LoanID,
			Note:    conf.InvestedAmount.IntPart(),
		})
	}
	if len(picks) == 0 {
		logger.Infof("p2ppicks: 0 of %d orders fulfilled, nothing to report", len(confirmations))
		return nil
	}
	payload, err := json.Marshal([]reportEntry{{SID: c.sid, Picks: picks}})
	if err != nil {
		return fmt.Errorf("p2ppicks: encoding report failed: %w", err)
	}
	raw, err := c.request(ctx, "subscriber", "report", map[string]string{
		"p2p_payload": string(payload),
	})
	if err != nil {
		return err
	}
	noteTotal := gjson.GetBytes(raw, "note_total")
	logger.Infof("p2ppicks: reported $%s invested across %d of %d loans",
		noteTotal.String(), len(picks), len(confirmations))
	return nil
}

func orderFulfilled(statuses []string) bool {
	for _, s := range statuses {
		if strings.Contains(s, "ORDER_FULFILLED") {
			return true
		}
	}
	return false
}

// request posts a signed form request and returns the raw bytes of the
// envelope's response member.
func (c *Client) request(ctx context.Context, method, action string, params map[string]string) (json.RawMessage, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("p2ppicks client not initialized")
	}
	endpoint, err := c.baseURL.Parse(fmt.Sprintf("%s/%s", method, action))
	if err != nil {
		return nil, fmt.Errorf("p2ppicks: resolving %s/%s failed: %w", method, action, err)
	}

	form := url.Values{}
	signed := make(map[string]string, len(params)+1)
	for k, v := range params {
		signed[k] = v
	}
	signed["api_key"] = c.key
	for k, v := range signed {
		form.Set(k, v)
	}
	form.Set("sig", signRequest(method, action, signed, c.secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apierr.Transient(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apierr.Transient(err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, apierr.Transientf("p2ppicks: %s/%s returned %d", method, action, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, apierr.NonRetryablef("p2ppicks: %s/%s returned %d", method, action, resp.StatusCode)
	}

	envelope := gjson.GetBytes(data, "response")
	if !envelope.Exists() {
		if errMsg := gjson.GetBytes(data, "meta.error").String(); errMsg != "" {
			return nil, apierr.NonRetryablef("p2ppicks: %s/%s error: %s", method, action, errMsg)
		}
		return nil, apierr.NonRetryablef("p2ppicks: %s/%s response missing envelope", method, action)
	}
	return json.RawMessage(envelope.Raw), nil
}
