//go:build !integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-refinery/internal/config"
	"github.com/sells-group/lead-refinery/internal/discovery"
	"github.com/sells-group/lead-refinery/internal/entitlement"
	"github.com/sells-group/lead-refinery/internal/leadlock"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/store"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Anthropic:   config.AnthropicConfig{Key: "sk-test", Model: "claude-test", MaxTokens: 512, TimeoutSecs: 5},
		Discovery:   config.DiscoveryConfig{Provider: "none", MaxFragments: 5, TimeoutSecs: 5},
		Refinery:    config.RefineryConfig{TenantID: "T", ProjectID: "P", JobPrefix: "INFY-REQ"},
		Batch:       config.BatchConfig{Concurrency: 2},
		Entitlement: config.EntitlementConfig{Mode: "unlimited"},
		Lock:        config.LockConfig{Backend: "memory", TTLSecs: 60},
		Redis:       config.RedisConfig{Addr: "localhost:6379"},
	}
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	_, err = st.FetchAll(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = os.Stat(filepath.Join(tmpDir, "refinery.db"))
	assert.NoError(t, err)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestBuildGate(t *testing.T) {
	cfg = testConfig(t)
	calls := 0
	rdb := func() *redis.Client {
		calls++
		return newRedis()
	}

	cfg.Entitlement = config.EntitlementConfig{Mode: "unlimited"}
	assert.IsType(t, entitlement.Unlimited{}, buildGate(rdb))

	cfg.Entitlement = config.EntitlementConfig{Mode: "memory", Credits: 3}
	q, ok := buildGate(rdb).(*entitlement.Quota)
	require.True(t, ok)
	assert.Equal(t, int64(3), q.Remaining())

	cfg.Entitlement = config.EntitlementConfig{Mode: "redis", Key: "refinery:credits"}
	assert.IsType(t, &entitlement.RedisQuota{}, buildGate(rdb))
	assert.Equal(t, 1, calls)
}

func TestBuildLocker(t *testing.T) {
	cfg = testConfig(t)
	rdb := func() *redis.Client { return newRedis() }

	assert.IsType(t, &leadlock.Memory{}, buildLocker(rdb))

	cfg.Lock.Backend = "redis"
	assert.IsType(t, &leadlock.Redis{}, buildLocker(rdb))
}

func TestBuildDiscoverer(t *testing.T) {
	cfg = testConfig(t)

	assert.Equal(t, "none", buildDiscoverer().Provider())

	cfg.Discovery.Provider = "jina"
	cfg.Jina = config.JinaConfig{Key: "k", BaseURL: "https://r.jina.ai", SearchBaseURL: "https://s.jina.ai"}
	assert.IsType(t, &discovery.Jina{}, buildDiscoverer())

	cfg.Discovery.Provider = "perplexity"
	cfg.Perplexity = config.PerplexityConfig{Key: "k", BaseURL: "https://api.perplexity.ai", Model: "sonar"}
	assert.IsType(t, &discovery.Perplexity{}, buildDiscoverer())
}

func TestNewBreaker_UsesConfig(t *testing.T) {
	cfg = testConfig(t)
	cfg.Breaker = config.BreakerConfig{FailureThreshold: 2, CooldownSecs: 1}

	b := newBreaker("anthropic")
	assert.Equal(t, "anthropic", b.Name())
}

func TestInitRefinery(t *testing.T) {
	cfg = testConfig(t)

	env, err := initRefinery(context.Background(), "enrich")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Metrics)
	assert.Nil(t, env.redis)
}

func TestInitRefinery_InvalidConfig(t *testing.T) {
	cfg = testConfig(t)
	cfg.Anthropic.Key = ""

	_, err := initRefinery(context.Background(), "enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestInitRefinery_BadTaxonomyPath(t *testing.T) {
	cfg = testConfig(t)
	cfg.Refinery.TaxonomyPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := initRefinery(context.Background(), "enrich")
	require.Error(t, err)
}

func TestPrintStates(t *testing.T) {
	var buf bytes.Buffer
	err := printStates(&buf, []model.LeadState{{
		RawLeadID: "lead-1",
		Identity:  model.LeadIdentity{Email: "jane@acme.com", FirmName: "Acme Corp"},
		Status:    model.LeadStatusError,
		Attempts:  2,
		Error:     "resolve: resolution failed",
		UpdatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "RAW LEAD ID")
	assert.Contains(t, out, "lead-1")
	assert.Contains(t, out, "jane@acme.com")
	assert.Contains(t, out, "2026-03-04 05:06:07")
	assert.Contains(t, out, "resolve: resolution failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestPrintTaxonomy(t *testing.T) {
	reg, err := taxonomy.Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printTaxonomy(&buf, reg))

	out := buf.String()
	assert.Contains(t, out, "Taxonomy version "+reg.Version())
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "FUNCTION")
	assert.Contains(t, out, "INDUSTRY")
	assert.Contains(t, out, reg.JobLevels()[0].ID)
}

func TestRedisQuota_RequiresRedisMode(t *testing.T) {
	cfg = testConfig(t)

	_, _, err := redisQuota()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want redis")
}
