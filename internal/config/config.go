package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MinBookDepth = 1
	MaxBookDepth = 5
)

type Config struct {
	Log         LogConfig         `yaml:"log"`
	OKX         OKXConfig         `yaml:"okx"`
	WS          WSConfig          `yaml:"ws"`
	Feeds       FeedsConfig       `yaml:"feeds"`
	Engine      EngineConfig      `yaml:"engine"`
	Pairs       []PairConfig      `yaml:"pairs"`
	State       StateConfig       `yaml:"state"`
	TradeRecord TradeRecordConfig `yaml:"trade_record"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Timescale   TimescaleConfig   `yaml:"timescale"`
	Telegram    TelegramConfig    `yaml:"telegram"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type OKXConfig struct {
	PublicWSURL  string        `yaml:"public_ws_url"`
	PrivateWSURL string        `yaml:"private_ws_url"`
	RESTURL      string        `yaml:"rest_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Simulated    bool          `yaml:"simulated"`
	ProxyURL     string        `yaml:"proxy_url"`
}

type WSConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// FeedLogConfig is the per-channel log surface: an on/off switch, an optional
// rotating file destination, and a severity window.
type FeedLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	File     string `yaml:"file"`
	MinLevel string `yaml:"min_level"`
	MaxLevel string `yaml:"max_level"`
}

type ThrottleConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type FeedsConfig struct {
	SpotPrice FeedLogConfig  `yaml:"spot_price"`
	OrderBook FeedLogConfig  `yaml:"order_book"`
	Positions FeedLogConfig  `yaml:"positions"`
	Throttle  ThrottleConfig `yaml:"throttle"`
}

type EngineConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	OpenCooldown  time.Duration `yaml:"open_cooldown"`
	CloseCooldown time.Duration `yaml:"close_cooldown"`
}

// PairConfig defines one arbitrage pair. Thresholds are relative spreads
// (0.02 means 2%); SellDepth is the 1-indexed ask level read from the book.
type PairConfig struct {
	Spot           string  `yaml:"spot"`
	Swap           string  `yaml:"swap"`
	OpenThreshold  float64 `yaml:"open_threshold"`
	CloseThreshold float64 `yaml:"close_threshold"`
	SellDepth      int     `yaml:"sell_depth"`
	SpotSize       float64 `yaml:"spot_size"`
	SwapSize       float64 `yaml:"swap_size"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TradeRecordConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type TimescaleConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Schema  string `yaml:"schema"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Credentials are never read from the yaml file, only from the environment.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		APIKey:     strings.TrimSpace(os.Getenv("OKX_API_KEY")),
		SecretKey:  strings.TrimSpace(os.Getenv("OKX_SECRET_KEY")),
		Passphrase: strings.TrimSpace(os.Getenv("OKX_PASSPHRASE")),
	}
	if creds.APIKey == "" {
		return Credentials{}, errors.New("OKX_API_KEY is required")
	}
	if creds.SecretKey == "" {
		return Credentials{}, errors.New("OKX_SECRET_KEY is required")
	}
	if creds.Passphrase == "" {
		return Credentials{}, errors.New("OKX_PASSPHRASE is required")
	}
	return creds, nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.OKX.PublicWSURL == "" {
		cfg.OKX.PublicWSURL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if cfg.OKX.PrivateWSURL == "" {
		cfg.OKX.PrivateWSURL = "wss://ws.okx.com:8443/ws/v5/private"
	}
	if cfg.OKX.RESTURL == "" {
		cfg.OKX.RESTURL = "https://www.okx.com"
	}
	if cfg.OKX.Timeout == 0 {
		cfg.OKX.Timeout = 10 * time.Second
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 25 * time.Second
	}
	if cfg.Feeds.Throttle.Interval == 0 {
		cfg.Feeds.Throttle.Interval = 5 * time.Second
	}
	if cfg.Engine.PollInterval == 0 {
		cfg.Engine.PollInterval = time.Second
	}
	if cfg.Engine.OpenCooldown == 0 {
		cfg.Engine.OpenCooldown = 5 * time.Second
	}
	if cfg.Engine.CloseCooldown == 0 {
		cfg.Engine.CloseCooldown = 5 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/okx-spread-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	for i := range cfg.Pairs {
		if cfg.Pairs[i].SellDepth == 0 {
			cfg.Pairs[i].SellDepth = 2
		}
		if cfg.Pairs[i].SpotSize == 0 {
			cfg.Pairs[i].SpotSize = 1
		}
		if cfg.Pairs[i].SwapSize == 0 {
			cfg.Pairs[i].SwapSize = 1
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Pairs) == 0 {
		return errors.New("at least one trading pair is required")
	}
	for i, pair := range cfg.Pairs {
		if pair.Spot == "" {
			return fmt.Errorf("pairs[%d].spot is required", i)
		}
		if pair.Swap == "" {
			return fmt.Errorf("pairs[%d].swap is required", i)
		}
		if pair.SellDepth < MinBookDepth || pair.SellDepth > MaxBookDepth {
			return fmt.Errorf("pairs[%d].sell_depth %d outside [%d,%d]", i, pair.SellDepth, MinBookDepth, MaxBookDepth)
		}
		if pair.SpotSize <= 0 {
			return fmt.Errorf("pairs[%d].spot_size must be > 0", i)
		}
		if pair.SwapSize <= 0 {
			return fmt.Errorf("pairs[%d].swap_size must be > 0", i)
		}
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		return errors.New("metrics.listen_addr is required when metrics are enabled")
	}
	return nil
}

// Instruments returns the deduplicated union of spot and swap ids across all
// configured pairs, preserving first-seen order.
func (c *Config) Instruments() []string {
	seen := make(map[string]struct{}, len(c.Pairs)*2)
	out := make([]string, 0, len(c.Pairs)*2)
	for _, pair := range c.Pairs {
		for _, id := range []string{pair.Spot, pair.Swap} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// MaxSellDepth is the deepest ask level any pair reads. The book feed is
// configured once with this depth so a single subscription serves every pair.
func (c *Config) MaxSellDepth() int {
	max := MinBookDepth
	for _, pair := range c.Pairs {
		if pair.SellDepth > max {
			max = pair.SellDepth
		}
	}
	return max
}
