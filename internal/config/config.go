package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/ethereum"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/feed"
)

const envPrefix = "SCANNER"

type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Price    PriceConfig    `mapstructure:"price"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Log      LogConfig      `mapstructure:"log"`
	Debug    bool           `mapstructure:"debug"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type FeedConfig struct {
	URL                string          `mapstructure:"url"`
	SubscriptionMethod string          `mapstructure:"subscription_method"`
	SubscriptionKind   string          `mapstructure:"subscription_kind"`
	MaxMessageSize     int64           `mapstructure:"max_message_size"`
	HandshakeTimeout   time.Duration   `mapstructure:"handshake_timeout"`
	CloseTimeout       time.Duration   `mapstructure:"close_timeout"`
	Reconnect          ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	Multiplier    float64       `mapstructure:"multiplier"`
	Randomization float64       `mapstructure:"randomization"`
}

type ScannerConfig struct {
	Routers             []string `mapstructure:"routers"`
	Selectors           []string `mapstructure:"selectors"`
	BigSwapThresholdEth string   `mapstructure:"big_swap_threshold_eth"`
	EthUSDPrice         float64  `mapstructure:"eth_usd_price"`
}

type PriceConfig struct {
	RPCURL     string        `mapstructure:"rpc_url"`
	Aggregator string        `mapstructure:"aggregator"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AlertConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Load reads .env, the optional YAML file at configFile and the environment,
// in increasing order of precedence, then validates the result.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &apperrors.ConfigError{Key: ".env", Err: err}
	}

	v := viper.New()
	setDefaults(v)
	bindLegacyEnv(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, &apperrors.ConfigError{Key: "config file", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &apperrors.ConfigError{Key: "config", Err: err}
	}
	if _, set := os.LookupEnv(envPrefix + "_DEBUG"); !set && legacyDebug(os.Getenv("DEBUG")) {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.subscription_method", "eth_subscribe")
	v.SetDefault("feed.subscription_kind", "alchemy_pendingTransactions")
	v.SetDefault("feed.max_message_size", 1<<20)
	v.SetDefault("feed.handshake_timeout", "10s")
	v.SetDefault("feed.close_timeout", "1s")
	v.SetDefault("feed.reconnect.initial_delay", "5s")
	v.SetDefault("feed.reconnect.max_delay", "60s")
	v.SetDefault("feed.reconnect.multiplier", 2.0)
	v.SetDefault("feed.reconnect.randomization", 0.2)

	v.SetDefault("scanner.routers", ethereum.DefaultRouters)
	v.SetDefault("scanner.selectors", ethereum.DefaultSelectors())
	v.SetDefault("scanner.big_swap_threshold_eth", "50")
	v.SetDefault("scanner.eth_usd_price", 2000.0)

	v.SetDefault("price.rpc_url", "")
	v.SetDefault("price.aggregator", ethereum.ChainlinkETHUSDAddress)
	v.SetDefault("price.ttl", "60s")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")
	v.SetDefault("alert.queue_size", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("debug", false)

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.dsn", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "mempool")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "mempool.pending_swaps")
}

// bindLegacyEnv keeps the bare variable names deployments already use. The
// prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"feed.url":           "ALCHEMY_WS_URL",
		"telegram.bot_token": "TELEGRAM_BOT_TOKEN",
		"telegram.chat_id":   "TELEGRAM_CHAT_ID",
	}
	for key, env := range legacy {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// legacyDebug reads the bare DEBUG variable, which deployments set to 1, true
// or yes.
func legacyDebug(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Validate checks every value the scanner cannot start without.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return &apperrors.ConfigError{Key: "feed.url", Err: errors.New("required (set SCANNER_FEED_URL or ALCHEMY_WS_URL)")}
	}
	u, err := url.Parse(c.Feed.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return &apperrors.ConfigError{Key: "feed.url", Err: errors.New("must be a ws:// or wss:// URL")}
	}
	if c.Feed.MaxMessageSize <= 0 {
		return &apperrors.ConfigError{Key: "feed.max_message_size", Err: errors.New("must be positive")}
	}

	r := c.Feed.Reconnect
	if r.InitialDelay <= 0 {
		return &apperrors.ConfigError{Key: "feed.reconnect.initial_delay", Err: errors.New("must be positive")}
	}
	if r.MaxDelay < r.InitialDelay {
		return &apperrors.ConfigError{Key: "feed.reconnect.max_delay", Err: errors.New("must not be below initial_delay")}
	}
	if r.Multiplier < 1 {
		return &apperrors.ConfigError{Key: "feed.reconnect.multiplier", Err: errors.New("must be at least 1")}
	}
	if r.Randomization < 0 || r.Randomization >= 1 {
		return &apperrors.ConfigError{Key: "feed.reconnect.randomization", Err: errors.New("must be in [0, 1)")}
	}

	if len(c.Scanner.Routers) == 0 {
		return &apperrors.ConfigError{Key: "scanner.routers", Err: errors.New("at least one router is required")}
	}
	if len(c.Scanner.Selectors) == 0 {
		return &apperrors.ConfigError{Key: "scanner.selectors", Err: errors.New("at least one selector is required")}
	}
	if _, err := ethereum.NewRouterSet(c.Scanner.Routers); err != nil {
		return &apperrors.ConfigError{Key: "scanner.routers", Err: err}
	}
	if _, err := ethereum.NewSelectorSet(c.Scanner.Selectors); err != nil {
		return &apperrors.ConfigError{Key: "scanner.selectors", Err: err}
	}
	threshold, err := decimal.NewFromString(c.Scanner.BigSwapThresholdEth)
	if err != nil {
		return &apperrors.ConfigError{Key: "scanner.big_swap_threshold_eth", Err: err}
	}
	if threshold.IsNegative() {
		return &apperrors.ConfigError{Key: "scanner.big_swap_threshold_eth", Err: errors.New("must not be negative")}
	}
	if c.Scanner.EthUSDPrice <= 0 {
		return &apperrors.ConfigError{Key: "scanner.eth_usd_price", Err: errors.New("must be positive")}
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return &apperrors.ConfigError{Key: "telegram", Err: errors.New("bot_token and chat_id must be set together")}
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		return &apperrors.ConfigError{Key: "kafka.topic", Err: errors.New("required when brokers are set")}
	}
	return nil
}

// BigSwapThreshold is the parsed threshold; only valid after Validate.
func (c *Config) BigSwapThreshold() decimal.Decimal {
	return decimal.RequireFromString(c.Scanner.BigSwapThresholdEth)
}

func (c *Config) EthUSDPrice() decimal.Decimal {
	return decimal.NewFromFloat(c.Scanner.EthUSDPrice)
}

// String renders the config with secrets removed, for the startup log.
func (c *Config) String() string {
	return fmt.Sprintf("feed=%s routers=%d selectors=%d threshold=%s ETH telegram=%t http=%t journal=%t nats=%t kafka=%t",
		feed.MaskURL(c.Feed.URL), len(c.Scanner.Routers), len(c.Scanner.Selectors), c.Scanner.BigSwapThresholdEth,
		c.Telegram.BotToken != "", c.HTTP.Enabled, c.Database.DSN != "", c.NATS.URL != "", len(c.Kafka.Brokers) > 0)
}
