// Package ratelimit enforces per-client request budgets with token
// buckets. Budgets are tiered per endpoint: an analysis run fans out
// dozens of model queries, so it gets a far smaller budget than a
// progress save or a read.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Rule is one endpoint budget. A Path ending in "/" matches any
// request under that prefix; any other Path matches exactly. Limit 0
// means unlimited.
type Rule struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	// Burst is the bucket capacity. Defaults to Limit.
	Burst int
}

// Config holds the limiter settings.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Allowlist       map[string]bool
	Denylist        map[string]bool
	Rules           []Rule
}

// Decision reports the budget state after one request was weighed.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucket refills continuously with elapsed time rather than in window
// steps, so a client that paces requests never sees a hard window edge.
type bucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second
	tokens   float64
	updated  time.Time
	lastSeen time.Time
}

// take refills the bucket up to now, then spends one token if one is
// available. It reports whether the request fit, the whole tokens left,
// and when the bucket will be full again.
func (b *bucket) take(now time.Time) (bool, int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.updated).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.updated = now
	b.lastSeen = now

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	resetAt := now
	if b.tokens < b.capacity {
		deficit := (b.capacity - b.tokens) / b.rate
		resetAt = now.Add(time.Duration(deficit * float64(time.Second)))
	}
	return allowed, int(b.tokens), resetAt
}

// idleEviction is how long a client's bucket survives without traffic
// before the sweeper drops it.
const idleEviction = time.Hour

// Limiter weighs requests against per-client, per-rule token buckets.
// Every path under a prefix rule draws from the same budget, so a
// client cannot widen its budget by varying the subject id.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     *Config

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and, when cleanup is configured, starts
// a background sweeper that evicts idle buckets. Callers own Stop.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.sweep(cfg.CleanupInterval)
	}
	return l
}

// Allow weighs one request from clientID against its budget for the
// matched rule.
func (l *Limiter) Allow(clientID, path, method string) (bool, Decision) {
	if !l.cfg.Enabled || l.cfg.Allowlist[clientID] {
		return true, Decision{Allowed: true}
	}
	if l.cfg.Denylist[clientID] {
		return false, Decision{}
	}

	rule := l.ruleFor(path, method)
	if rule.Limit <= 0 {
		return true, Decision{Allowed: true}
	}

	key := clientID + " " + method + " " + rule.Path
	now := l.now()
	allowed, remaining, resetAt := l.bucketFor(key, rule, now).take(now)

	decision := Decision{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		if wait := resetAt.Sub(now); wait > 0 {
			decision.RetryAfter = wait
		}
	}
	return allowed, decision
}

// ruleFor resolves the budget for a request. Exact path rules win over
// prefix rules; health checks are never limited; anything unmatched
// falls to the default budget.
func (l *Limiter) ruleFor(path, method string) *Rule {
	if path == "/health" {
		return &Rule{}
	}

	var prefix *Rule
	for i := range l.cfg.Rules {
		r := &l.cfg.Rules[i]
		if r.Method != method {
			continue
		}
		if r.Path == path {
			return r
		}
		if prefix == nil && strings.HasSuffix(r.Path, "/") && strings.HasPrefix(path, r.Path) {
			prefix = r
		}
	}
	if prefix != nil {
		return prefix
	}
	return &Rule{
		Path:   path,
		Limit:  l.cfg.DefaultLimit,
		Window: l.cfg.DefaultWindow,
		Burst:  l.cfg.DefaultLimit,
	}
}

func (l *Limiter) bucketFor(key string, rule *Rule, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	capacity := rule.Burst
	if capacity <= 0 {
		capacity = rule.Limit
	}
	b := &bucket{
		capacity: float64(capacity),
		rate:     float64(rule.Limit) / rule.Window.Seconds(),
		tokens:   float64(capacity),
		updated:  now,
		lastSeen: now,
	}
	l.buckets[key] = b
	return b
}

func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(l.now().Add(-idleEviction))
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets whose last traffic predates cutoff.
func (l *Limiter) evictIdle(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, key)
		}
	}
}

// Stop shuts down the background sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
