package config

// Redis backs the distributed rate limiter and the catalog response cache.
// Both degrade to no-ops when the client is nil, so a missing Redis never
// prevents the API from starting.

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach Redis. REDIS_HOST and REDIS_PORT take
// precedence over the REDIS_ADDR shorthand when both are set.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Host     string `envconfig:"REDIS_HOST"`
	Port     string `envconfig:"REDIS_PORT"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	TLS      bool   `envconfig:"REDIS_TLS" default:"false"`
}

// LoadRedisConfig decodes the REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
	loadDotenv()
	var rc RedisConfig
	if err := envconfig.Process("", &rc); err != nil {
		return RedisConfig{}, fmt.Errorf("load redis config: %w", err)
	}
	return rc, nil
}

// Address resolves the effective host:port.
func (rc RedisConfig) Address() string {
	if rc.Host != "" && rc.Port != "" {
		return rc.Host + ":" + rc.Port
	}
	return rc.Addr
}

// NewRedisClient connects to Redis and pings it with a short timeout.
// It returns nil when the server is unreachable; callers treat nil as
// "Redis features disabled".
func NewRedisClient(rc RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Address(),
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
