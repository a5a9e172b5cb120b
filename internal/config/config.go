package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-refinery/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Jina        JinaConfig        `yaml:"jina" mapstructure:"jina"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Discovery   DiscoveryConfig   `yaml:"discovery" mapstructure:"discovery"`
	Refinery    RefineryConfig    `yaml:"refinery" mapstructure:"refinery"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Entitlement EntitlementConfig `yaml:"entitlement" mapstructure:"entitlement"`
	Lock        LockConfig        `yaml:"lock" mapstructure:"lock"`
	Redis       RedisConfig       `yaml:"redis" mapstructure:"redis"`
	Notion      NotionConfig      `yaml:"notion" mapstructure:"notion"`
	Salesforce  SalesforceConfig  `yaml:"salesforce" mapstructure:"salesforce"`
	Pricing     cost.Rates        `yaml:"pricing" mapstructure:"pricing"`
	Breaker     BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds classifier settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// JinaConfig holds Jina search and reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// DiscoveryConfig selects and tunes the evidence discovery backend.
type DiscoveryConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	MaxFragments int    `yaml:"max_fragments" mapstructure:"max_fragments"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ReadWebsite  bool   `yaml:"read_website" mapstructure:"read_website"`
}

// RefineryConfig holds record stamping defaults.
type RefineryConfig struct {
	TenantID     string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ProjectID    string `yaml:"project_id" mapstructure:"project_id"`
	JobPrefix    string `yaml:"job_prefix" mapstructure:"job_prefix"`
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RateLimit          float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EntitlementConfig configures the credit gate around each enrichment.
type EntitlementConfig struct {
	Mode    string `yaml:"mode" mapstructure:"mode"`
	Credits int64  `yaml:"credits" mapstructure:"credits"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// LockConfig configures the per-lead processing lock.
type LockConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	TTLSecs int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// NotionConfig holds Notion API credentials for the lead queue.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// BreakerConfig tunes the circuit breakers around external services.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REFINERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so AutomaticEnv can bind them.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "refinery.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("discovery.provider", "jina")
	v.SetDefault("discovery.max_fragments", 5)
	v.SetDefault("discovery.timeout_secs", 20)
	v.SetDefault("discovery.read_website", false)
	v.SetDefault("refinery.tenant_id", "INSTITUTIONAL-DEFAULT")
	v.SetDefault("refinery.project_id", "REFINERY-MAIN")
	v.SetDefault("refinery.job_prefix", "INFY-REQ")
	v.SetDefault("refinery.taxonomy_path", "")
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("entitlement.mode", "unlimited")
	v.SetDefault("entitlement.credits", 0)
	v.SetDefault("entitlement.key", "refinery:credits")
	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.ttl_secs", 300)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.lead_db", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 20.0)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown_secs", 30)
	v.SetDefault("pricing.jina.per_search", 0.01)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.perplexity.per_query", 0.005)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given command mode are
// present. Modes: enrich, serve, queue, publish, store.
func (c *Config) Validate(mode string) error {
	var errs []string
	req := func(val, key string) {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, key+" is required")
		}
	}

	storeChecks := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
		}
		req(c.Store.DatabaseURL, "store.database_url")
	}

	enrichChecks := func() {
		storeChecks()
		req(c.Anthropic.Key, "anthropic.key")
		switch c.Discovery.Provider {
		case "jina":
			req(c.Jina.Key, "jina.key")
		case "perplexity":
			req(c.Perplexity.Key, "perplexity.key")
		case "none":
		default:
			errs = append(errs, fmt.Sprintf("discovery.provider %q must be jina, perplexity or none", c.Discovery.Provider))
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			errs = append(errs, fmt.Sprintf("batch.concurrency must be between 1 and 50 (got %d)", c.Batch.Concurrency))
		}
		if c.Discovery.MaxFragments < 1 {
			errs = append(errs, "discovery.max_fragments must be > 0")
		}
		switch c.Entitlement.Mode {
		case "unlimited":
		case "memory":
			if c.Entitlement.Credits < 0 {
				errs = append(errs, "entitlement.credits must be >= 0")
			}
		case "redis":
			req(c.Redis.Addr, "redis.addr")
			req(c.Entitlement.Key, "entitlement.key")
		default:
			errs = append(errs, fmt.Sprintf("entitlement.mode %q must be unlimited, memory or redis", c.Entitlement.Mode))
		}
		switch c.Lock.Backend {
		case "memory":
		case "redis":
			req(c.Redis.Addr, "redis.addr")
		default:
			errs = append(errs, fmt.Sprintf("lock.backend %q must be memory or redis", c.Lock.Backend))
		}
	}

	switch mode {
	case "store":
		storeChecks()
	case "enrich":
		enrichChecks()
	case "serve":
		enrichChecks()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "queue":
		enrichChecks()
		req(c.Notion.Token, "notion.token")
		req(c.Notion.LeadDB, "notion.lead_db")
	case "publish":
		storeChecks()
		req(c.Salesforce.ClientID, "salesforce.client_id")
		req(c.Salesforce.Username, "salesforce.username")
		req(c.Salesforce.KeyPath, "salesforce.key_path")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
