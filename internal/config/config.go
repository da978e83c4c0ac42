package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Cron       CronConfig       `mapstructure:"cron"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Collectors CollectorsConfig `mapstructure:"collectors"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// APIToken guards write endpoints under /api/. Empty disables the check.
	APIToken string `mapstructure:"api_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig selects the store backend. Driver is one of postgres, sqlite or memory.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	EventSubject   string        `mapstructure:"event_subject"`
	ScoreSubject   string        `mapstructure:"score_subject"`
}

// CronConfig holds schedule specs. Specs use the seconds field (robfig/cron WithSeconds).
type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Scoring        string `mapstructure:"scoring"`
	Collect        string `mapstructure:"collect"`
	Recommendation string `mapstructure:"recommendation"`
}

type ScoringConfig struct {
	WindowDays   int `mapstructure:"window_days"`
	HistoryDepth int `mapstructure:"history_depth"`
}

type ResolverConfig struct {
	MatchThreshold float64 `mapstructure:"match_threshold"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

type IngestConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	DedupWindow    time.Duration `mapstructure:"dedup_window"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type LLMConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type CollectorsConfig struct {
	Feeds []FeedConfig `mapstructure:"feeds"`
}

// FeedConfig describes a pull collector that fetches inbound events as JSON from an HTTP endpoint.
type FeedConfig struct {
	Name     string        `mapstructure:"name"`
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Schedule string        `mapstructure:"schedule"`
}

type RecommendConfig struct {
	Limit    int           `mapstructure:"limit"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.api_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30m")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("nats.event_subject", "productradar.events.>")
	v.SetDefault("nats.score_subject", "productradar.scores")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.scoring", "0 0 * * * *")
	v.SetDefault("cron.collect", "0 */30 * * * *")
	v.SetDefault("cron.recommendation", "0 15 */4 * * *")

	v.SetDefault("scoring.window_days", 31)
	v.SetDefault("scoring.history_depth", 10)
	v.SetDefault("resolver.match_threshold", 80)
	v.SetDefault("resolver.max_retries", 3)
	v.SetDefault("ingest.batch_size", 500)
	v.SetDefault("ingest.flush_interval", "2s")
	v.SetDefault("ingest.dedup_window", "1m")
	v.SetDefault("ingest.health_interval", "30s")

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "claude-haiku-4-5")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.batch_size", 25)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("recommend.limit", 10)
	v.SetDefault("recommend.cache_ttl", "4h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
