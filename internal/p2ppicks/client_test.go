package p2ppicks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickvest/internal/lendingclub"
	"pickvest/internal/pkg/apierr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(Config{
		BaseURL: server.URL + "/",
		Key:     "key123",
		Secret:  "sekrit",
		SID:     "sid-1",
	})
	require.NoError(t, err)
	c.gate = nil // no pacing in tests
	c.SetHTTPClient(server.Client())
	return c
}

func TestPicks(t *testing.T) {
	t.Run("Parses Envelope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/picks/list", r.URL.Path)
			assert.Equal(t, "key123", r.PostFormValue("api_key"))
			assert.Equal(t, "profit-maximizer", r.PostFormValue("p2p_product"))
			expected := signRequest("picks", "list", map[string]string{
				"api_key":     "key123",
				"p2p_product": "profit-maximizer",
			}, "sekrit")
			assert.Equal(t, expected, r.PostFormValue("sig"))

			w.Write([]byte(`{"meta": {"status": "ok"}, "response": {
				"timestamp": "2026-08-29 14:00:00",
				"picks": [
					{"loan_id": 101, "grade": "d", "term": 36, "top": "5%"},
					{"loan_id": 102, "grade": "C", "term": 60, "top": "10%"}
				]
			}}`))
		})

		snap, err := c.Picks(context.Background())
		require.NoError(t, err)
		require.Len(t, snap.Picks, 2)
		assert.Equal(t, Pick{LoanID: 101, Grade: "D", Term: 36, Tier: "5%"}, snap.Picks[0])
		assert.True(t, snap.AsOf().Equal(time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)))
	})

	t.Run("Missing Envelope Is NonRetryable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"meta": {"error": "invalid signature"}}`))
		})
		_, err := c.Picks(context.Background())
		assert.True(t, apierr.IsNonRetryable(err))
		assert.Contains(t, err.Error(), "invalid signature")
	})

	t.Run("Server Error Is Transient", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := c.Picks(context.Background())
		assert.True(t, apierr.IsTransient(err))
	})
}

func TestSubscriberActive(t *testing.T) {
	t.Run("Active Status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/subscriber/status", r.URL.Path)
			assert.Equal(t, "sid-1", r.PostFormValue("p2p_sid"))
			w.Write([]byte(`{"response": {"status": "active"}}`))
		})
		active, err := c.SubscriberActive(context.Background())
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("Expired Status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"response": {"status": "expired"}}`))
		})
		active, err := c.SubscriberActive(context.Background())
		require.NoError(t, err)
		assert.False(t, active)
	})
}

func TestValidate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "user@example.com", r.PostFormValue("p2p_email"))
		w.Write([]byte(`{"response": {"sid": "fresh-sid", "status": "active"}}`))
	})
	sid, status, err := c.Validate(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "fresh-sid", sid)
	assert.Equal(t, "active", status)
}

func TestReport(t *testing.T) {
	fulfilled := lendingclub.OrderConfirmation{
		LoanID:          101,
		InvestedAmount:  decimal.RequireFromString("25"),
		ExecutionStatus: []string{"ORDER_FULFILLED"},
	}
	unfulfilled := lendingclub.OrderConfirmation{
		LoanID:          102,
		InvestedAmount:  decimal.Zero,
		ExecutionStatus: []string{"NOT_AN_IN_FUNDING_LOAN"},
	}

	t.Run("Reports Only Fulfilled Orders", func(t *testing.T) {
		var payload string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/subscriber/report", r.URL.Path)
			payload = r.PostFormValue("p2p_payload")
			w.Write([]byte(`{"response": {"note_total": 25}}`))
		})

		err := c.Report(context.Background(), []lendingclub.OrderConfirmation{fulfilled, unfulfilled})
		require.NoError(t, err)
		assert.Contains(t, payload, `"loan_id":101`)
		assert.NotContains(t, payload, `"loan_id":102`)
		assert.Contains(t, payload, `"sid":"sid-1"`)
	})

	t.Run("Nothing Fulfilled Skips The Request", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		assert.NoError(t, c.Report(context.Background(), []lendingclub.OrderConfirmation{unfulfilled}))
	})
}
