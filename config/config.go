package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete process configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Run         RunConfig         `mapstructure:"run"`
	Retry       map[string]Retry  `mapstructure:"retry"`
	Workers     []WorkerConfig    `mapstructure:"workers"`
	Store       StoreConfig       `mapstructure:"store"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	NewsCatcher NewsCatcherConfig `mapstructure:"newscatcher"`
	RSS         RSSConfig         `mapstructure:"rss"`
	NLP         NLPConfig         `mapstructure:"nlp"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Guard       GuardConfig       `mapstructure:"guard"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// RunConfig bounds run execution
type RunConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// Retry overrides a stage's retry policy; zero fields keep the default
type Retry struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// WorkerConfig declares a group of workers and the stages they may execute
type WorkerConfig struct {
	Name         string   `mapstructure:"name"`
	Count        int      `mapstructure:"count"`
	Capabilities []string `mapstructure:"capabilities"`
}

// StoreConfig selects the article store backend: memory, redis or mongo
type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
	Mongo   MongoConfig `mapstructure:"mongo"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// RegistryConfig selects the client registry backend: file, mongo or postgres
type RegistryConfig struct {
	Backend  string         `mapstructure:"backend"`
	Path     string         `mapstructure:"path"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// SecretsConfig selects the secret store: aws or static
type SecretsConfig struct {
	Backend string                       `mapstructure:"backend"`
	Region  string                       `mapstructure:"region"`
	Profile string                       `mapstructure:"profile"`
	Static  map[string]map[string]string `mapstructure:"static"`
}

type NewsCatcherConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	RateLimit float64       `mapstructure:"rate_limit"`
	PageSize  int           `mapstructure:"page_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RSSConfig struct {
	Count   int  `mapstructure:"count"`
	Extract bool `mapstructure:"extract"`
}

// NLPConfig selects the sentiment classifier: http or cohere
type NLPConfig struct {
	Classifier string        `mapstructure:"classifier"`
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	ControlTopic  string   `mapstructure:"control_topic"`
	FailuresTopic string   `mapstructure:"failures_topic"`
	GroupID       string   `mapstructure:"group_id"`
}

// GuardConfig enables the cross-process one-run-per-client guard in redis
type GuardConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: DefaultPort},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Timezone: DefaultTimezone},
		Run:       RunConfig{Timeout: RunTimeout, AttemptTimeout: AttemptTimeout},
		Workers: []WorkerConfig{
			{Name: "io", Count: DefaultWorkers, Capabilities: []string{"fetch", "deliver"}},
			{Name: "nlp", Count: 1, Capabilities: []string{"enrich"}},
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: DefaultKeyPrefix},
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: "news", Collection: "news"},
		},
		Registry: RegistryConfig{
			Backend:  "file",
			Path:     "clients.yaml",
			Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "news", Collection: "clients"},
			Postgres: PostgresConfig{Table: "clients"},
		},
		Secrets: SecretsConfig{Backend: "aws"},
		NewsCatcher: NewsCatcherConfig{
			BaseURL:   NewsCatcherURL,
			RateLimit: NewsCatcherRateLimit,
			PageSize:  NewsCatcherPageSize,
			Timeout:   30 * time.Second,
		},
		RSS: RSSConfig{Count: DefaultRSSCount, Extract: true},
		NLP: NLPConfig{Classifier: "http", Endpoint: "http://localhost:8000", Timeout: 30 * time.Second},
		Kafka: KafkaConfig{
			ControlTopic:  "newsdesk.control",
			FailuresTopic: "newsdesk.failures",
			GroupID:       "newsdesk",
		},
	}
}

// Load reads configuration from path (optional), the environment and defaults.
// Environment variables use the NEWSDESK_ prefix with dots replaced by underscores,
// e.g. NEWSDESK_STORE_BACKEND=redis.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NEWSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers default values with viper so env overrides resolve
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("scheduler.timezone", d.Scheduler.Timezone)
	v.SetDefault("run.timeout", d.Run.Timeout)
	v.SetDefault("run.attempt_timeout", d.Run.AttemptTimeout)
	v.SetDefault("workers", d.Workers)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", d.Store.Redis.Prefix)
	v.SetDefault("store.mongo.uri", d.Store.Mongo.URI)
	v.SetDefault("store.mongo.database", d.Store.Mongo.Database)
	v.SetDefault("store.mongo.collection", d.Store.Mongo.Collection)

	v.SetDefault("registry.backend", d.Registry.Backend)
	v.SetDefault("registry.path", d.Registry.Path)
	v.SetDefault("registry.mongo.uri", d.Registry.Mongo.URI)
	v.SetDefault("registry.mongo.database", d.Registry.Mongo.Database)
	v.SetDefault("registry.mongo.collection", d.Registry.Mongo.Collection)
	v.SetDefault("registry.postgres.dsn", "")
	v.SetDefault("registry.postgres.table", d.Registry.Postgres.Table)

	v.SetDefault("secrets.backend", d.Secrets.Backend)
	v.SetDefault("secrets.region", "")
	v.SetDefault("secrets.profile", "")

	v.SetDefault("newscatcher.base_url", d.NewsCatcher.BaseURL)
	v.SetDefault("newscatcher.api_key", "")
	v.SetDefault("newscatcher.rate_limit", d.NewsCatcher.RateLimit)
	v.SetDefault("newscatcher.page_size", d.NewsCatcher.PageSize)
	v.SetDefault("newscatcher.timeout", d.NewsCatcher.Timeout)

	v.SetDefault("rss.count", d.RSS.Count)
	v.SetDefault("rss.extract", d.RSS.Extract)

	v.SetDefault("nlp.classifier", d.NLP.Classifier)
	v.SetDefault("nlp.endpoint", d.NLP.Endpoint)
	v.SetDefault("nlp.api_key", "")
	v.SetDefault("nlp.model", "")
	v.SetDefault("nlp.timeout", d.NLP.Timeout)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.control_topic", d.Kafka.ControlTopic)
	v.SetDefault("kafka.failures_topic", d.Kafka.FailuresTopic)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)

	v.SetDefault("guard.enabled", false)
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Store.Backend, "memory", "redis", "mongo") {
		errs = append(errs, fmt.Errorf("store.backend %q: want memory, redis or mongo", c.Store.Backend))
	}
	if !oneOf(c.Registry.Backend, "file", "mongo", "postgres") {
		errs = append(errs, fmt.Errorf("registry.backend %q: want file, mongo or postgres", c.Registry.Backend))
	}
	if !oneOf(c.Secrets.Backend, "aws", "static") {
		errs = append(errs, fmt.Errorf("secrets.backend %q: want aws or static", c.Secrets.Backend))
	}
	if !oneOf(c.NLP.Classifier, "http", "cohere") {
		errs = append(errs, fmt.Errorf("nlp.classifier %q: want http or cohere", c.NLP.Classifier))
	}
	if c.Run.Timeout <= 0 {
		errs = append(errs, errors.New("run.timeout must be positive"))
	}
	if c.Run.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("run.attempt_timeout must be positive"))
	}
	if len(c.Workers) == 0 {
		errs = append(errs, errors.New("at least one worker group is required"))
	}
	for _, w := range c.Workers {
		if w.Count <= 0 {
			errs = append(errs, fmt.Errorf("worker group %q: count must be positive", w.Name))
		}
	}
	if c.Guard.Enabled && c.Store.Backend != "redis" {
		errs = append(errs, errors.New("guard.enabled requires store.backend=redis"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.enabled requires kafka.brokers"))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
