package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLimiter builds a limiter on a controllable clock with the sweeper
// disabled so tests never sleep.
func testLimiter(t *testing.T, cfg *Config) (*Limiter, *time.Time) {
	t.Helper()
	if cfg.CleanupInterval != 0 {
		t.Fatal("tests drive eviction directly")
	}
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func analysisConfig() *Config {
	return &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules: []Rule{
			{Path: "/analyses/", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
			{Path: "/progress/", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
		},
	}
}

func TestAllowSpendsBurstThenDenies(t *testing.T) {
	l, _ := testLimiter(t, analysisConfig())

	allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	assert.True(t, allowed)

	allowed, decision := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 10, decision.Limit)
	assert.Equal(t, 0, decision.Remaining)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestAllowRefillsWithTime(t *testing.T) {
	l, now := testLimiter(t, analysisConfig())

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	require.False(t, allowed)

	// 10 per hour refills one token every 6 minutes.
	*now = now.Add(7 * time.Minute)
	allowed, _ = l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	assert.False(t, allowed)
}

func TestAllowBudgetSharedAcrossSubjects(t *testing.T) {
	// Varying the domain id must not widen the analyses budget.
	l, _ := testLimiter(t, analysisConfig())

	allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/analyses/8/run", "POST")
	require.True(t, allowed)

	allowed, _ = l.Allow("10.0.0.1", "/analyses/9/run", "POST")
	assert.False(t, allowed)
}

func TestAllowClientsIsolated(t *testing.T) {
	l, _ := testLimiter(t, analysisConfig())

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
	require.False(t, allowed)

	allowed, _ = l.Allow("10.0.0.2", "/analyses/7/run", "POST")
	assert.True(t, allowed)
}

func TestAllowMethodsHaveSeparateBudgets(t *testing.T) {
	l, _ := testLimiter(t, analysisConfig())

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
		require.True(t, allowed)
	}

	// GETs fall to the default budget, untouched by the POST spend.
	allowed, decision := l.Allow("10.0.0.1", "/analyses/7/run", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 100, decision.Limit)
}

func TestRuleForPrecedence(t *testing.T) {
	cfg := analysisConfig()
	cfg.Rules = append(cfg.Rules, Rule{Path: "/analyses/special", Method: "POST", Limit: 1, Window: time.Hour})
	l, _ := testLimiter(t, cfg)

	tests := []struct {
		name   string
		path   string
		method string
		limit  int
	}{
		{"exact beats prefix", "/analyses/special", "POST", 1},
		{"prefix match", "/analyses/7/run", "POST", 10},
		{"unmatched falls to default", "/sessions", "GET", 100},
		{"health exempt", "/health", "GET", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.limit, l.ruleFor(tt.path, tt.method).Limit)
		})
	}
}

func TestAllowDisabledLimiter(t *testing.T) {
	l, _ := testLimiter(t, &Config{Enabled: false})

	for i := 0; i < 50; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/analyses/7/run", "POST")
		require.True(t, allowed)
	}
}

func TestAllowlistAndDenylist(t *testing.T) {
	cfg := analysisConfig()
	cfg.Allowlist = map[string]bool{"10.0.0.9": true}
	cfg.Denylist = map[string]bool{"10.0.0.66": true}
	l, _ := testLimiter(t, cfg)

	for i := 0; i < 50; i++ {
		allowed, _ := l.Allow("10.0.0.9", "/analyses/7/run", "POST")
		require.True(t, allowed)
	}

	allowed, decision := l.Allow("10.0.0.66", "/progress/7", "POST")
	assert.False(t, allowed)
	assert.False(t, decision.Allowed)
}

func TestDecisionRemainingAndReset(t *testing.T) {
	l, now := testLimiter(t, analysisConfig())

	_, decision := l.Allow("10.0.0.1", "/progress/7", "POST")
	assert.True(t, decision.Allowed)
	assert.Equal(t, 120, decision.Limit)
	assert.Equal(t, 19, decision.Remaining)
	assert.True(t, decision.ResetAt.After(*now))
}

func TestEvictIdleDropsStaleBuckets(t *testing.T) {
	l, now := testLimiter(t, analysisConfig())

	l.Allow("10.0.0.1", "/progress/7", "POST")
	*now = now.Add(30 * time.Minute)
	l.Allow("10.0.0.2", "/progress/7", "POST")

	l.evictIdle(now.Add(-idleEviction))
	l.mu.Lock()
	assert.Len(t, l.buckets, 2)
	l.mu.Unlock()

	*now = now.Add(45 * time.Minute)
	l.evictIdle(now.Add(-idleEviction))
	l.mu.Lock()
	assert.Len(t, l.buckets, 1)
	l.mu.Unlock()
}

func TestAllowConcurrentClients(t *testing.T) {
	l, _ := testLimiter(t, analysisConfig())

	var wg sync.WaitGroup
	denied := make([]int, 8)
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := fmt.Sprintf("10.0.1.%d", c)
			for i := 0; i < 30; i++ {
				if ok, _ := l.Allow(client, "/progress/7", "POST"); !ok {
					denied[c]++
				}
			}
		}()
	}
	wg.Wait()

	// Burst is 20, so each client had exactly 10 requests denied.
	for c, n := range denied {
		assert.Equal(t, 10, n, "client %d", c)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(analysisConfig())
	l.Stop()
	l.Stop()
}

func TestSplitClientList(t *testing.T) {
	assert.Empty(t, splitClientList(""))
	assert.Equal(t, map[string]bool{"10.0.0.1": true, "10.0.0.2": true},
		splitClientList(" 10.0.0.1, 10.0.0.2 ,"))
}

func TestLoadConfigDisabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	cfg := LoadConfig()
	assert.False(t, cfg.Enabled)
}

func TestDefaultRulesTiering(t *testing.T) {
	rules := DefaultRules()
	require.NotEmpty(t, rules)
	// The analyses tier must be the strictest budget of the set.
	for _, r := range rules[1:] {
		perHour := float64(r.Limit) / r.Window.Hours()
		assert.Greater(t, perHour, float64(rules[0].Limit)/rules[0].Window.Hours(), r.Path)
	}
}
