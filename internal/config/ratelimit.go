package config

import "time"

// RateLimitConfig drives the token bucket in front of the invoke endpoint.
// KeyStrategy is one of "command", "ip" or "ip_command".
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_command"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// LoginThrottleConfig bounds failed logins per email.  After MaxAttempts
// failures within Window further attempts are refused until it expires.
type LoginThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

func LoadLoginThrottleConfig() LoginThrottleConfig {
	def := LoginThrottleConfig{
		Enabled:     envBool("LOGIN_THROTTLE_ENABLED", true),
		MaxAttempts: envInt("LOGIN_THROTTLE_MAX_ATTEMPTS", 5),
		Window:      envDur("LOGIN_THROTTLE_WINDOW", 15*time.Minute),
		Prefix:      envStr("LOGIN_THROTTLE_PREFIX", "login"),
	}
	if def.MaxAttempts < 1 {
		def.MaxAttempts = 1
	}
	if def.Window <= 0 {
		def.Window = time.Minute
	}
	return def
}
