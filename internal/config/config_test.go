package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "DB_PATH", "LOG_LEVEL", "JWT_SECRET", "BCRYPT_COST", "REFERRAL_REWARD",
	"USER_ID_PREFIX", "REFERRAL_CODE_PREFIX", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := load(filepath.Join(dir, ".env"), dir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/membership.db", cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.EqualValues(t, 100, cfg.ReferralReward)
	assert.Equal(t, "MYC", cfg.UserIDPrefix)
	assert.Equal(t, "REF", cfg.ReferralCodePrefix)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "membership-events", cfg.KafkaTopic)
	assert.EqualValues(t, 5, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REFERRAL_REWARD", "250")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := load(filepath.Join(dir, ".env"), dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.EqualValues(t, 250, cfg.ReferralReward)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_DotEnvAndYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("JWT_SECRET=dotenv-secret-0123456789\nBCRYPT_COST=10\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("db_path: /tmp/yaml.db\nbcrypt_cost: 8\nuser_id_prefix: ABC\n"), 0o600))

	cfg, err := load(filepath.Join(dir, ".env"), dir)
	require.NoError(t, err)

	assert.Equal(t, "dotenv-secret-0123456789", cfg.JWTSecret)
	assert.Equal(t, 10, cfg.BcryptCost, "environment (via .env) beats config.yaml")
	assert.Equal(t, "/tmp/yaml.db", cfg.DBPath)
	assert.Equal(t, "ABC", cfg.UserIDPrefix)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "not-a-number"},
		{"PORT", "70000"},
		{"BCRYPT_COST", "2"},
		{"JWT_SECRET", "short"},
		{"REFERRAL_REWARD", "0"},
		{"LOG_LEVEL", "chatty"},
		{"RATE_LIMIT_BURST", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			t.Setenv(tt.key, tt.value)

			_, err := load(filepath.Join(dir, ".env"), dir)
			assert.Error(t, err)
		})
	}
}
