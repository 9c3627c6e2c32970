package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/taxibot/internal/channel"
)

// TelegramConfig holds settings of the privileged (main) bot and the driver group.
type TelegramConfig struct {
	Token    string  `yaml:"token" envconfig:"BOT_TOKEN"`
	Name     string  `yaml:"name" envconfig:"BOT_NAME"`
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"TELEGRAM_ADMIN_IDS"`
	// GroupID is the driver group receiving order announcements.
	GroupID int64  `yaml:"group_id" envconfig:"TELEGRAM_GROUP_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// FrontEndConfig seeds one customer bot at startup.
type FrontEndConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// RouteConfig seeds one route at startup; Channel may be empty.
type RouteConfig struct {
	Name    string `yaml:"name"`
	Channel string `yaml:"channel"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for per-user rate limiting on customer bots.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SenderConfig sizes the asynchronous notification queue.
type SenderConfig struct {
	QueueSize int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers   int `yaml:"workers" envconfig:"SENDER_WORKERS"`
}

// DispatchConfig sizes the inbound worker shards and loop supervision.
type DispatchConfig struct {
	Shards         int `yaml:"shards" envconfig:"DISPATCH_SHARDS"`
	QueueSize      int `yaml:"queue_size" envconfig:"DISPATCH_QUEUE_SIZE"`
	RestartDelayMS int `yaml:"restart_delay_ms" envconfig:"DISPATCH_RESTART_DELAY_MS"`
}

// OpsConfig configures the health and metrics listener; empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config aggregates the whole application configuration.
type Config struct {
	Telegram  TelegramConfig   `yaml:"telegram"`
	FrontEnds []FrontEndConfig `yaml:"frontends" ignored:"true"`
	Routes    []RouteConfig    `yaml:"routes" ignored:"true"`
	Logging   LoggingConfig    `yaml:"logging"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Sender    SenderConfig     `yaml:"sender"`
	Dispatch  DispatchConfig   `yaml:"dispatch"`
	Ops       OpsConfig        `yaml:"ops"`
}

// CoreConfig lets *Config serve as its own carrier.
func (c *Config) CoreConfig() *Config { return c }

// Load reads the YAML file at path, overlays environment variables and
// normalizes the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and reports every invalid field at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	return errors.Join(
		cfg.Telegram.normalize(),
		cfg.normalizeSeeds(),
		cfg.RateLimit.normalize(),
		cfg.Dispatch.normalize(),
	)
}

func (t *TelegramConfig) normalize() error {
	var errs []error
	t.Token = strings.TrimSpace(t.Token)
	if t.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if strings.TrimSpace(t.Name) == "" {
		t.Name = "Main Bot"
	}
	if t.GroupID == 0 {
		errs = append(errs, errors.New("telegram.group_id is required"))
	}
	switch mode := strings.ToLower(strings.TrimSpace(t.RunMode)); mode {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	default:
		errs = append(errs, fmt.Errorf("telegram.run_mode %q: only %s is supported", t.RunMode, RunModeLongpoll))
	}
	if t.LongPollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
	}
	return errors.Join(errs...)
}

// normalizeSeeds checks the front-ends and routes seeded at startup. Tokens
// must be unique, including against the main bot.
func (c *Config) normalizeSeeds() error {
	var errs []error
	tokens := map[string]bool{c.Telegram.Token: true}
	for i := range c.FrontEnds {
		fe := &c.FrontEnds[i]
		fe.Token = strings.TrimSpace(fe.Token)
		switch {
		case fe.Token == "":
			errs = append(errs, fmt.Errorf("frontends[%d].token is required", i))
		case tokens[fe.Token]:
			errs = append(errs, fmt.Errorf("frontends[%d].token is a duplicate", i))
		}
		tokens[fe.Token] = true
		if strings.TrimSpace(fe.Name) == "" {
			fe.Name = "frontend-" + strconv.Itoa(i+1)
		}
	}
	for i := range c.Routes {
		r := &c.Routes[i]
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Errorf("routes[%d].name is required", i))
		}
		r.Channel = strings.TrimSpace(r.Channel)
		if r.Channel == "" {
			continue
		}
		if _, err := channel.ParseTopic(r.Channel); err != nil {
			errs = append(errs, fmt.Errorf("routes[%d].channel: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (r *RateLimitConfig) normalize() error {
	var errs []error
	if r.IntervalMS < 0 {
		errs = append(errs, errors.New("rate_limit.interval_ms must be >= 0"))
	}
	r.Burst = max(r.Burst, 1)
	kept := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		switch key := strings.ToLower(strings.TrimSpace(v)); key {
		case "":
		case UpdateCallback, UpdateMessage:
			kept = append(kept, key)
		default:
			errs = append(errs, fmt.Errorf("rate_limit.exclude_updates: unknown update type %q", v))
		}
	}
	r.ExcludeUpdates = kept
	return errors.Join(errs...)
}

func (d *DispatchConfig) normalize() error {
	if d.Shards <= 0 {
		d.Shards = 16
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 64
	}
	if d.RestartDelayMS <= 0 {
		d.RestartDelayMS = 2000
	}
	return nil
}
