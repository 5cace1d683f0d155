package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Minimal Config Gets Defaults", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
app:
  secrets_path: secrets.json
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.App.LogLevel)
		assert.Equal(t, 16.95, cfg.Strategy.MinInterestRate)
		assert.Equal(t, "F2", cfg.Strategy.MaxSubGrade)
		assert.Equal(t, []string{"5%"}, cfg.Strategy.PickTiers)
		assert.Equal(t, 25.0, cfg.Strategy.AmountPerLoan)
		assert.Equal(t, 1000, cfg.LendingClub.RateIntervalMS)
		assert.Equal(t, 1000, cfg.Poll.IntervalMS)
		assert.Equal(t, 60, cfg.Poll.TimeoutSeconds)
		assert.Equal(t, 30, cfg.Reconcile.WindowMinutes)
		assert.Equal(t, 5, cfg.Schedule.HourMarkOffsetSeconds)
	})

	t.Run("Explicit Values Override Defaults", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
strategy:
  min_interest_rate: 12.5
  max_sub_grade: D4
  pick_tiers: ["5%", "10%"]
  amount_per_loan: 50
  portfolio: Picks
poll:
  timeout_seconds: 120
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 12.5, cfg.Strategy.MinInterestRate)
		assert.Equal(t, "D4", cfg.Strategy.MaxSubGrade)
		assert.Equal(t, []string{"5%", "10%"}, cfg.Strategy.PickTiers)
		assert.Equal(t, 50.0, cfg.Strategy.AmountPerLoan)
		assert.Equal(t, "Picks", cfg.Strategy.Portfolio)
		assert.Equal(t, 120, cfg.Poll.TimeoutSeconds)
	})

	t.Run("Missing File Fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("Empty Path Fails", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"Amount Below Minimum Unit", `
strategy:
  amount_per_loan: 10
`},
		{"Amount Not A Multiple Of Unit", `
strategy:
  amount_per_loan: 30
`},
		{"Invalid Sub Grade", `
strategy:
  max_sub_grade: Z9
`},
		{"Invalid Grade Letter", `
strategy:
  grades: ["D", "X"]
`},
		{"Poll Timeout Below Interval", `
poll:
  interval_ms: 10000
  timeout_seconds: 5
`},
		{"Telegram Enabled Without Token", `
notify:
  telegram:
    enabled: true
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Run("Valid Secrets", func(t *testing.T) {
		path := writeFile(t, "secrets.json", `{
			"lc_api_key": "abc",
			"lc_investor_id": 12345,
			"p2p_key": "k",
			"p2p_secret": "s",
			"p2p_sid": "sid"
		}`)
		sec, err := LoadSecrets(path)
		require.NoError(t, err)
		assert.Equal(t, "abc", sec.LCAPIKey)
		assert.Equal(t, "12345", sec.LCInvestorID, "numeric investor id is normalized to a string")
	})

	t.Run("String Investor Id Accepted", func(t *testing.T) {
		path := writeFile(t, "secrets.json", `{
			"lc_api_key": "abc",
			"lc_investor_id": "67890",
			"p2p_key": "k",
			"p2p_secret": "s",
			"p2p_sid": "sid"
		}`)
		sec, err := LoadSecrets(path)
		require.NoError(t, err)
		assert.Equal(t, "67890", sec.LCInvestorID)
	})

	t.Run("Missing Field Rejected", func(t *testing.T) {
		path := writeFile(t, "secrets.json", `{
			"lc_api_key": "abc",
			"p2p_key": "k",
			"p2p_secret": "s",
			"p2p_sid": "sid"
		}`)
		_, err := LoadSecrets(path)
		assert.Error(t, err)
	})

	t.Run("Empty Key Rejected", func(t *testing.T) {
		path := writeFile(t, "secrets.json", `{
			"lc_api_key": "",
			"lc_investor_id": 1,
			"p2p_key": "k",
			"p2p_secret": "s",
			"p2p_sid": "sid"
		}`)
		_, err := LoadSecrets(path)
		assert.Error(t, err)
	})

	t.Run("Malformed JSON Rejected", func(t *testing.T) {
		_, err := LoadSecrets(writeFile(t, "secrets.json", `{not json`))
		assert.Error(t, err)
	})
}
