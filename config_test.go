package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := configFrom(newTestViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.AutoApprove)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, []byte(devJWTSecret), cfg.JWTSecret)
	assert.True(t, cfg.insecureSecret)
}

func TestConfigOverrides(t *testing.T) {
	cfg, err := configFrom(newTestViper(map[string]any{
		"port":         "9090",
		"db_driver":    "sqlite",
		"jwt_secret":   "s3cret",
		"jwt_ttl":      "1h",
		"auto_approve": false,
		"cors_origins": "https://a.example, https://b.example ,",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.False(t, cfg.insecureSecret)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.AutoApprove)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTO_APPROVE", "false")
	t.Setenv("ADMIN_EMAIL", " root@example.com ")
	v := newTestViper(nil)
	v.AutomaticEnv()

	cfg, err := configFrom(v)
	require.NoError(t, err)
	assert.False(t, cfg.AutoApprove)
	assert.Equal(t, "root@example.com", cfg.AdminEmail)
}

func TestConfigRejectsBadValues(t *testing.T) {
	_, err := configFrom(newTestViper(map[string]any{"jwt_ttl": "0s"}))
	assert.Error(t, err)

	_, err = configFrom(newTestViper(map[string]any{"port": ""}))
	assert.Error(t, err)
}
