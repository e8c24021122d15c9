package config

import (
	"strings"
	"time"
)

// CacheConfig defines which read commands have their responses cached in
// Redis.  Only commands whose data this backend never mutates belong here.
type CacheConfig struct {
	Enabled      bool
	Commands     map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Commands:     parseList(envStr("CACHE_COMMANDS", "obtener-marcas")),
		TTL:          envDur("CACHE_TTL", 10*time.Minute),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseList(s string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out[p] = true
		}
	}
	return out
}
