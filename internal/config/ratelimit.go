package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig tunes the Redis token bucket placed in front of the API.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"60"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"RATE_LIMIT_KEY_STRATEGY" default:"ip_user_route"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
	Debug          bool          `envconfig:"RATE_LIMIT_DEBUG" default:"false"`

	// Burst and RefillEvery are shorthands; when set they override
	// Capacity and RefillTokens/RefillInterval respectively.
	Burst       int           `envconfig:"RATE_LIMIT_BURST" default:"0"`
	RefillEvery time.Duration `envconfig:"RATE_LIMIT_REFILL_EVERY" default:"0"`
}

// LoadRateLimitConfig decodes RATE_LIMIT_* and normalizes the result.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	loadDotenv()
	var rl RateLimitConfig
	if err := envconfig.Process("", &rl); err != nil {
		return RateLimitConfig{}, fmt.Errorf("load rate limit config: %w", err)
	}
	return rl.Normalize(), nil
}

// Normalize applies the shorthands and clamps values into a usable range.
// The bucket key must outlive at least a few refill intervals or idle
// clients would be handed a full bucket on every request.
func (rl RateLimitConfig) Normalize() RateLimitConfig {
	if rl.Burst > 0 {
		rl.Capacity = rl.Burst
	}
	if rl.RefillEvery > 0 {
		rl.RefillTokens = 1
		rl.RefillInterval = rl.RefillEvery
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	if rl.Prefix == "" {
		rl.Prefix = "rl"
	}
	return rl
}
