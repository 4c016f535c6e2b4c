package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type serverConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration

	StoreBackend string // "redis" or "postgres"
	RedisAddr    string
	RedisDB      int
	PostgresDSN  string

	SigningMethod string
	HMACKey       string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string

	LoginThrottle   bool
	RefreshThrottle bool
	RevokeFamily    bool

	CleanupInterval time.Duration

	AuditEnabled   bool
	MetricsEnabled bool
	LogLevel       string
	LogPretty      bool

	// StaticUsers seeds the built-in credential provider, one
	// "email:password:role" entry per element.
	StaticUsers []string
}

func loadConfig(path string) (*serverConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.postgres_dsn", "")

	v.SetDefault("jwt.signing_method", "hs256")
	v.SetDefault("jwt.hmac_key", "")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.issuer", "tokengate")
	v.SetDefault("refresh.ttl", "168h")

	v.SetDefault("security.login_throttle", false)
	v.SetDefault("security.refresh_throttle", false)
	v.SetDefault("security.revoke_family_on_reuse", false)

	v.SetDefault("cleanup.interval", "1h")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("users.static", []string{})

	v.SetEnvPrefix("TOKENGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &serverConfig{
		Addr:            v.GetString("server.addr"),
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		IdleTimeout:     v.GetDuration("server.idle_timeout"),
		GracefulTimeout: v.GetDuration("server.graceful_timeout"),
		StoreBackend:    v.GetString("store.backend"),
		RedisAddr:       v.GetString("store.redis_addr"),
		RedisDB:         v.GetInt("store.redis_db"),
		PostgresDSN:     v.GetString("store.postgres_dsn"),
		SigningMethod:   v.GetString("jwt.signing_method"),
		HMACKey:         v.GetString("jwt.hmac_key"),
		AccessTTL:       v.GetDuration("jwt.access_ttl"),
		RefreshTTL:      v.GetDuration("refresh.ttl"),
		Issuer:          v.GetString("jwt.issuer"),
		LoginThrottle:   v.GetBool("security.login_throttle"),
		RefreshThrottle: v.GetBool("security.refresh_throttle"),
		RevokeFamily:    v.GetBool("security.revoke_family_on_reuse"),
		CleanupInterval: v.GetDuration("cleanup.interval"),
		AuditEnabled:    v.GetBool("audit.enabled"),
		MetricsEnabled:  v.GetBool("metrics.enabled"),
		LogLevel:        v.GetString("log.level"),
		LogPretty:       v.GetBool("log.pretty"),
		StaticUsers:     v.GetStringSlice("users.static"),
	}

	if cfg.SigningMethod == "hs256" && cfg.HMACKey == "" {
		return nil, errors.New("jwt.hmac_key is required for hs256")
	}
	if cfg.StoreBackend == "postgres" && cfg.PostgresDSN == "" {
		return nil, errors.New("store.postgres_dsn is required for the postgres backend")
	}

	return cfg, nil
}
