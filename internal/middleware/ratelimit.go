package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/errors"
	"github.com/localmind/backend/internal/util"
)

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(c *gin.Context) string

// UserOrIPKey counts authenticated requests per user and everything else per client IP
func UserOrIPKey(c *gin.Context) string {
	if userID := c.GetString(util.ContextUserID); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// Name labels the limiter in metrics and Redis keys
	Name    string
	KeyFunc KeyFunc
}

// DefaultRateLimitConfig is the general API limit
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:   100,
		Window:  time.Minute,
		Name:    "api",
		KeyFunc: UserOrIPKey,
	}
}

// ChatRateLimitConfig limits how many chat turns a user may start per minute
func ChatRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Limit:   perMinute,
		Window:  time.Minute,
		Name:    "chat",
		KeyFunc: UserOrIPKey,
	}
}

func (cfg RateLimitConfig) withDefaults() RateLimitConfig {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = UserOrIPKey
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	return cfg
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RetryAfter returns whole seconds until the next token
func (tb *TokenBucket) RetryAfter() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.tokens >= 1 {
		return 0
	}
	return int((1-tb.tokens)/tb.refillRate) + 1
}

func (tb *TokenBucket) full(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(now)
	return tb.tokens >= tb.maxTokens
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitConfig
	mu      sync.Mutex
}

// NewLimiter creates an in-memory limiter. Idle buckets are swept every window.
func NewLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config.withDefaults(),
	}
	go rl.cleanupRoutine()
	return rl
}

// NewRateLimiter creates an in-memory rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	return NewLimiter(config).Middleware()
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		bucket := rl.bucket(key)
		if !bucket.Allow() {
			rejectRateLimited(c, rl.config, bucket.RetryAfter(), "memory")
			return
		}
		c.Next()
	}
}

// Allow checks and consumes a token for key
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	return bucket
}

// cleanupRoutine drops buckets that have refilled completely; they are
// indistinguishable from new ones.
func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.config.Window)
	defer ticker.Stop()
	for now := range ticker.C {
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			if bucket.full(now) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

func rejectRateLimited(c *gin.Context, cfg RateLimitConfig, retryAfter int, limiter string) {
	RecordRateLimitExceeded(cfg.Name, limiter)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, errors.RateLimited("").WithDetails("retry after "+strconv.Itoa(retryAfter)+"s"))
}
