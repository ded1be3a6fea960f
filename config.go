package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashadvance/pkg/logger"
	"cashadvance/store"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devJWTSecret = "dev-insecure-secret-change"

type Config struct {
	Port          string
	DB            store.Config
	AutoMigrate   bool
	JWTSecret     []byte
	JWTTTL        time.Duration
	RefreshTTL    time.Duration
	AutoApprove   bool
	AdminEmail    string
	AdminPassword string
	Log           logger.Config
	CORSOrigins   []string
	AuthRateLimit float64
	AuthBurst     int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	// set when JWT_SECRET was missing and the development secret is in use
	insecureSecret bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_dsn", "")
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", "5m")
	v.SetDefault("db_slow_query", "200ms")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", "24h")
	v.SetDefault("refresh_ttl", "720h")
	v.SetDefault("auto_approve", true)
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("auth_rate_limit", 5.0)
	v.SetDefault("auth_rate_burst", 10)
	v.SetDefault("http_read_timeout", "15s")
	v.SetDefault("http_write_timeout", "15s")
}

// loadConfig reads ./.env (without overriding variables already set), an
// optional config.yaml, then the environment, which wins.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	}
	v.AutomaticEnv()
	return configFrom(v)
}

func configFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port: v.GetString("port"),
		DB: store.Config{
			Driver:       v.GetString("db_driver"),
			DSN:          v.GetString("db_dsn"),
			MaxOpenConns: v.GetInt("db_max_open_conns"),
			MaxIdleConns: v.GetInt("db_max_idle_conns"),
			ConnMaxLife:  v.GetDuration("db_conn_max_lifetime"),
			SlowQuery:    v.GetDuration("db_slow_query"),
		},
		AutoMigrate:   v.GetBool("db_auto_migrate"),
		JWTTTL:        v.GetDuration("jwt_ttl"),
		RefreshTTL:    v.GetDuration("refresh_ttl"),
		AutoApprove:   v.GetBool("auto_approve"),
		AdminEmail:    strings.TrimSpace(v.GetString("admin_email")),
		AdminPassword: v.GetString("admin_password"),
		Log: logger.Config{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
			File:   v.GetString("log_file"),
		},
		CORSOrigins:   splitList(v.GetString("cors_origins")),
		AuthRateLimit: v.GetFloat64("auth_rate_limit"),
		AuthBurst:     v.GetInt("auth_rate_burst"),
		ReadTimeout:   v.GetDuration("http_read_timeout"),
		WriteTimeout:  v.GetDuration("http_write_timeout"),
	}
	secret := v.GetString("jwt_secret")
	if secret == "" {
		secret = devJWTSecret // development fallback
		cfg.insecureSecret = true
	}
	cfg.JWTSecret = []byte(secret)
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", v.GetString("jwt_ttl"))
	}
	if cfg.Port == "" {
		return nil, errors.New("PORT must not be empty")
	}
	return cfg, nil
}

// warnings reports settings that are fine for development but not production.
func (c *Config) warnings(log *slog.Logger) {
	if c.insecureSecret {
		log.Warn("JWT_SECRET is not set; using the development secret")
	}
	for _, o := range c.CORSOrigins {
		if o == "*" {
			log.Warn("CORS allows every origin")
			break
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
