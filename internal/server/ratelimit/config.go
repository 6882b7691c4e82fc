package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfig reads limiter settings from the environment and attaches
// the endpoint budget tiers.
func LoadConfig() *Config {
	if !envBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    envInt("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   envDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: envDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Allowlist:       splitClientList(os.Getenv("RATE_LIMIT_ALLOWLIST")),
		Denylist:        splitClientList(os.Getenv("RATE_LIMIT_DENYLIST")),
		Rules:           DefaultRules(),
	}
}

// DefaultRules returns the endpoint budget tiers. Reads fall to the
// default budget and health checks are exempt in the matcher.
func DefaultRules() []Rule {
	return []Rule{
		// An analysis run fans out dozens of model queries, so it gets
		// the tightest budget.
		{Path: "/analyses/", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		// Progress saves arrive on every client-side step change.
		{Path: "/progress/", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/progress/", Method: "DELETE", Limit: 30, Window: time.Minute, Burst: 5},
	}
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// splitClientList parses a comma-separated client id list into a set.
func splitClientList(list string) map[string]bool {
	set := make(map[string]bool)
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}
