package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/assemble"
	"github.com/sells-group/lead-refinery/internal/cost"
	"github.com/sells-group/lead-refinery/internal/discovery"
	"github.com/sells-group/lead-refinery/internal/entitlement"
	"github.com/sells-group/lead-refinery/internal/leadlock"
	"github.com/sells-group/lead-refinery/internal/metrics"
	"github.com/sells-group/lead-refinery/internal/pipeline"
	"github.com/sells-group/lead-refinery/internal/resilience"
	"github.com/sells-group/lead-refinery/internal/resolve"
	"github.com/sells-group/lead-refinery/internal/store"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
	anthropicpkg "github.com/sells-group/lead-refinery/pkg/anthropic"
	"github.com/sells-group/lead-refinery/pkg/jina"
	"github.com/sells-group/lead-refinery/pkg/perplexity"
)

// refineryEnv holds everything an enriching command needs.
type refineryEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
	redis    *redis.Client
}

// Close releases the store and any Redis connection.
func (e *refineryEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "refinery.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func loadTaxonomy() (*taxonomy.Registry, error) {
	if cfg.Refinery.TaxonomyPath != "" {
		return taxonomy.Load(cfg.Refinery.TaxonomyPath)
	}
	return taxonomy.Default()
}

func newRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func newBreaker(name string) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:             name,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         time.Duration(cfg.Breaker.CooldownSecs) * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			zap.L().Warn("circuit breaker state change",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func buildDiscoverer() discovery.Discoverer {
	opts := []discovery.Option{
		discovery.WithMaxFragments(cfg.Discovery.MaxFragments),
		discovery.WithTimeout(time.Duration(cfg.Discovery.TimeoutSecs) * time.Second),
		discovery.WithReadWebsite(cfg.Discovery.ReadWebsite),
	}
	switch cfg.Discovery.Provider {
	case "jina":
		jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		opts = append(opts, discovery.WithBreaker(newBreaker("jina")))
		return discovery.NewJina(jina.NewClient(cfg.Jina.Key, jinaOpts...), opts...)
	case "perplexity":
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		opts = append(opts, discovery.WithBreaker(newBreaker("perplexity")))
		return discovery.NewPerplexity(client, opts...)
	default:
		return discovery.Noop{}
	}
}

// buildGate selects the credit gate for the configured entitlement mode.
func buildGate(rdb func() *redis.Client) entitlement.Gate {
	switch cfg.Entitlement.Mode {
	case "memory":
		return entitlement.NewQuota(cfg.Entitlement.Credits)
	case "redis":
		return entitlement.NewRedisQuota(rdb(), cfg.Entitlement.Key)
	default:
		return entitlement.Unlimited{}
	}
}

func buildLocker(rdb func() *redis.Client) leadlock.Locker {
	if cfg.Lock.Backend == "redis" {
		return leadlock.NewRedis(rdb(), time.Duration(cfg.Lock.TTLSecs)*time.Second)
	}
	return leadlock.NewMemory()
}

// initRefinery validates config for mode and wires the pipeline.
// Callers should defer env.Close().
func initRefinery(ctx context.Context, mode string) (*refineryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	reg, err := loadTaxonomy()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &refineryEnv{Store: st, Metrics: metrics.New()}
	rdb := func() *redis.Client {
		if env.redis == nil {
			env.redis = newRedis()
		}
		return env.redis
	}

	calc := cost.NewCalculator(cfg.Pricing)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithTimeout(time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second),
	)
	resolver := resolve.NewResolver(anthropicClient, reg,
		resolve.WithModel(cfg.Anthropic.Model),
		resolve.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
		resolve.WithTemperature(cfg.Anthropic.Temperature),
		resolve.WithTimeout(time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second),
		resolve.WithBreaker(newBreaker("anthropic")),
		resolve.WithCostCalculator(calc),
	)

	env.Pipeline = pipeline.New(
		buildDiscoverer(),
		resolver,
		assemble.New(cfg.Refinery.TenantID, cfg.Refinery.ProjectID, cfg.Refinery.JobPrefix),
		st,
		pipeline.WithGate(buildGate(rdb)),
		pipeline.WithLocker(buildLocker(rdb)),
		pipeline.WithMetrics(env.Metrics),
		pipeline.WithCostCalculator(calc),
	)

	zap.L().Info("refinery ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("discovery", cfg.Discovery.Provider),
		zap.String("taxonomy_version", reg.Version()),
		zap.String("entitlement", cfg.Entitlement.Mode),
	)
	return env, nil
}
