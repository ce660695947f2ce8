package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// CacheConfig controls the Redis response cache used for the read-mostly
// catalog endpoints (tests, parameters, doctors, lab info). Per-patient data
// is never cached.
type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	Methods      []string      `envconfig:"CACHE_METHODS" default:"GET"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	KeyStrategy  string        `envconfig:"CACHE_KEY_STRATEGY" default:"route_query"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

// LoadCacheConfig decodes CACHE_*.
func LoadCacheConfig() (CacheConfig, error) {
	loadDotenv()
	var cc CacheConfig
	if err := envconfig.Process("", &cc); err != nil {
		return CacheConfig{}, fmt.Errorf("load cache config: %w", err)
	}
	if cc.TTL <= 0 {
		cc.TTL = 30 * time.Second
	}
	return cc, nil
}

// Cacheable reports whether responses to the given HTTP method are cached.
func (cc CacheConfig) Cacheable(method string) bool {
	for _, m := range cc.Methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}
