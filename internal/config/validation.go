package config

import (
	"fmt"
	"math"
	"strings"
)

// minInvestmentUnit is the marketplace's smallest order increment.
const minInvestmentUnit = 25.0

func validate(c *Config) error {
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Poll.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.MinInterestRate < 0 {
		return fmt.Errorf("strategy.min_interest_rate must be >= 0")
	}
	if !validSubGrade(s.MaxSubGrade) {
		return fmt.Errorf("strategy.max_sub_grade %q is not a valid sub-grade (A1..G5)", s.MaxSubGrade)
	}
	if s.AmountPerLoan < minInvestmentUnit {
		return fmt.Errorf("strategy.amount_per_loan must be at least %.2f", minInvestmentUnit)
	}
	if rem := math.Mod(s.AmountPerLoan, minInvestmentUnit); rem != 0 {
		return fmt.Errorf("strategy.amount_per_loan must be a multiple of %.2f", minInvestmentUnit)
	}
	if len(s.PickTiers) == 0 {
		return fmt.Errorf("strategy.pick_tiers requires at least one tier")
	}
	for _, tier := range s.PickTiers {
		if strings.TrimSpace(tier) == "" {
			return fmt.Errorf("strategy.pick_tiers contains an empty tier")
		}
	}
	for _, g := range s.Grades {
		g = strings.ToUpper(strings.TrimSpace(g))
		if len(g) != 1 || g[0] < 'A' || g[0] > 'G' {
			return fmt.Errorf("strategy.grades contains invalid grade %q", g)
		}
	}
	return nil
}

func (p *PollConfig) validate() error {
	if p.TimeoutSeconds <= p.IntervalMS/1000 {
		return fmt.Errorf("poll.timeout_seconds must exceed the poll interval")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}

func validSubGrade(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'A' && s[0] <= 'G' && s[1] >= '1' && s[1] <= '5'
}
