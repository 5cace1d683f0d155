package config

// Config is the pickvest main configuration carrier.
type Config struct {
	App         AppConfig         `toml:"app"`
	Strategy    StrategyConfig    `toml:"strategy"`
	LendingClub LendingClubConfig `toml:"lendingclub"`
	P2PPicks    P2PPicksConfig    `toml:"p2ppicks"`
	Poll        PollConfig        `toml:"poll"`
	Reconcile   ReconcileConfig   `toml:"reconcile"`
	Schedule    ScheduleConfig    `toml:"schedule"`
	Journal     JournalConfig     `toml:"journal"`
	Notify      NotifyConfig      `toml:"notify"`
}

type AppConfig struct {
	LogLevel    string `toml:"log_level"`
	LogPath     string `toml:"log_path"`
	SecretsPath string `toml:"secrets_path"`
}

// StrategyConfig holds the investment filter and sizing rules.
type StrategyConfig struct {
	MinInterestRate  float64  `toml:"min_interest_rate"`
	MinRateExclusive bool     `toml:"min_rate_exclusive"`
	MaxSubGrade      string   `toml:"max_sub_grade"`
	PickTiers        []string `toml:"pick_tiers"`
	Grades           []string `toml:"grades"`
	AmountPerLoan    float64  `toml:"amount_per_loan"`
	Portfolio        string   `toml:"portfolio"`
}

type LendingClubConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RateIntervalMS int    `toml:"rate_interval_ms"`
}

type P2PPicksConfig struct {
	BaseURL        string `toml:"base_url"`
	Product        string `toml:"product"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RateIntervalMS int    `toml:"rate_interval_ms"`
}

// PollConfig tunes the change-detection loops for both feeds.
type PollConfig struct {
	IntervalMS          int `toml:"interval_ms"`
	ErrorBackoffSeconds int `toml:"error_backoff_seconds"`
	TimeoutSeconds      int `toml:"timeout_seconds"`
}

// ReconcileConfig bounds the unfulfilled-order retry loop.
type ReconcileConfig struct {
	WindowMinutes    int `toml:"window_minutes"`
	BaseDelaySeconds int `toml:"base_delay_seconds"`
	DelayStepSeconds int `toml:"delay_step_seconds"`
	MaxDelaySeconds  int `toml:"max_delay_seconds"`
}

type ScheduleConfig struct {
	HourMarkOffsetSeconds int `toml:"hour_mark_offset_seconds"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}
