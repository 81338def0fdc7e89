// Package config loads server settings from the environment, an optional
// .env file and an optional config.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is everything cmd/server needs to build the application.
type Config struct {
	Port     int
	DBPath   string
	LogLevel slog.Level

	// JWTSecret signs operator tokens. Empty disables the operator guard.
	JWTSecret  string
	BcryptCost int

	ReferralReward     int64
	UserIDPrefix       string
	ReferralCodePrefix string

	// KafkaBrokers empty means events go to the log instead.
	KafkaBrokers []string
	KafkaTopic   string

	RateLimitRPS   float64
	RateLimitBurst int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/membership.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("referral_reward", 100)
	v.SetDefault("user_id_prefix", "MYC")
	v.SetDefault("referral_code_prefix", "REF")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "membership-events")
	v.SetDefault("rate_limit_rps", 5)
	v.SetDefault("rate_limit_burst", 10)
}

// Load reads .env and config.yaml from the working directory, if present.
func Load() (*Config, error) {
	return load(".env", ".")
}

func load(envFile, configDir string) (*Config, error) {
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config.yaml: %w", err)
		}
	}

	cfg := &Config{
		Port:               v.GetInt("port"),
		DBPath:             strings.TrimSpace(v.GetString("db_path")),
		JWTSecret:          v.GetString("jwt_secret"),
		BcryptCost:         v.GetInt("bcrypt_cost"),
		ReferralReward:     v.GetInt64("referral_reward"),
		UserIDPrefix:       strings.TrimSpace(v.GetString("user_id_prefix")),
		ReferralCodePrefix: strings.TrimSpace(v.GetString("referral_code_prefix")),
		KafkaBrokers:       splitList(v.GetString("kafka_brokers")),
		KafkaTopic:         strings.TrimSpace(v.GetString("kafka_topic")),
		RateLimitRPS:       v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters when set"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	if c.ReferralReward <= 0 {
		errs = append(errs, fmt.Errorf("REFERRAL_REWARD must be positive, got %d", c.ReferralReward))
	}
	if c.UserIDPrefix == "" || c.ReferralCodePrefix == "" {
		errs = append(errs, errors.New("USER_ID_PREFIX and REFERRAL_CODE_PREFIX must not be empty"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
