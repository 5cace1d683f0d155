package config

import "strings"

const (
	defaultLogLevel           = "info"
	defaultSecretsPath        = "secrets.json"
	defaultMinInterestRate    = 16.95
	defaultMaxSubGrade        = "F2"
	defaultPickTier           = "5%"
	defaultAmountPerLoan      = 25.0
	defaultLCTimeoutSeconds   = 15
	defaultLCRateIntervalMS   = 1000
	defaultP2PTimeoutSeconds  = 15
	defaultP2PRateIntervalMS  = 1000
	defaultPollIntervalMS     = 1000
	defaultPollBackoffSeconds = 2
	defaultPollTimeoutSeconds = 60
	defaultReconcileWindowMin = 30
	defaultReconcileBaseSec   = 5
	defaultReconcileStepSec   = 5
	defaultReconcileMaxSec    = 30
	defaultHourMarkOffsetSec  = 5
	defaultJournalPath        = "data/pickvest.db"
)

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(c.App.SecretsPath) == "" {
		c.App.SecretsPath = defaultSecretsPath
	}
	if c.Strategy.MinInterestRate == 0 {
		c.Strategy.MinInterestRate = defaultMinInterestRate
	}
	if strings.TrimSpace(c.Strategy.MaxSubGrade) == "" {
		c.Strategy.MaxSubGrade = defaultMaxSubGrade
	}
	if len(c.Strategy.PickTiers) == 0 {
		c.Strategy.PickTiers = []string{defaultPickTier}
	}
	if c.Strategy.AmountPerLoan == 0 {
		c.Strategy.AmountPerLoan = defaultAmountPerLoan
	}
	if c.LendingClub.TimeoutSeconds <= 0 {
		c.LendingClub.TimeoutSeconds = defaultLCTimeoutSeconds
	}
	if c.LendingClub.RateIntervalMS <= 0 {
		c.LendingClub.RateIntervalMS = defaultLCRateIntervalMS
	}
	if c.P2PPicks.TimeoutSeconds <= 0 {
		c.P2PPicks.TimeoutSeconds = defaultP2PTimeoutSeconds
	}
	if c.P2PPicks.RateIntervalMS <= 0 {
		c.P2PPicks.RateIntervalMS = defaultP2PRateIntervalMS
	}
	if c.Poll.IntervalMS <= 0 {
		c.Poll.IntervalMS = defaultPollIntervalMS
	}
	if c.Poll.ErrorBackoffSeconds <= 0 {
		c.Poll.ErrorBackoffSeconds = defaultPollBackoffSeconds
	}
	if c.Poll.TimeoutSeconds <= 0 {
		c.Poll.TimeoutSeconds = defaultPollTimeoutSeconds
	}
	if c.Reconcile.WindowMinutes <= 0 {
		c.Reconcile.WindowMinutes = defaultReconcileWindowMin
	}
	if c.Reconcile.BaseDelaySeconds <= 0 {
		c.Reconcile.BaseDelaySeconds = defaultReconcileBaseSec
	}
	if c.Reconcile.DelayStepSeconds < 0 {
		c.Reconcile.DelayStepSeconds = defaultReconcileStepSec
	}
	if c.Reconcile.MaxDelaySeconds <= 0 {
		c.Reconcile.MaxDelaySeconds = defaultReconcileMaxSec
	}
	if c.Schedule.HourMarkOffsetSeconds <= 0 {
		c.Schedule.HourMarkOffsetSeconds = defaultHourMarkOffsetSec
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
}
