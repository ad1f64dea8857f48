/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the credit-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string  `mapstructure:"SERVER_PORT"`
	DatabaseURL                string  `mapstructure:"DATABASE_URL"`
	RedisURL                   string  `mapstructure:"REDIS_URL"`
	RedisKeyPrefix             string  `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL                string  `mapstructure:"RABBITMQ_URL"`
	IdentityJWKSURL            string  `mapstructure:"IDENTITY_JWKS_URL"`
	IdentityAudience           string  `mapstructure:"IDENTITY_AUDIENCE"`
	IdentityIssuer             string  `mapstructure:"IDENTITY_ISSUER"`
	InternalAPIKey             string  `mapstructure:"INTERNAL_API_KEY"`
	DefaultRevenueSharePercent float64 `mapstructure:"DEFAULT_REVENUE_SHARE_PERCENT"`
	WebhookRateLimitPerMinute  int     `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
	WebhookIdempotencyTTLMin   int     `mapstructure:"WEBHOOK_IDEMPOTENCY_TTL_MINUTES"`
	ConservationAuditEnabled   bool    `mapstructure:"CONSERVATION_AUDIT_ENABLED"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("REDIS_KEY_PREFIX", "slotpost:webhook")
	viper.SetDefault("DEFAULT_REVENUE_SHARE_PERCENT", 0.2)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 120)
	viper.SetDefault("WEBHOOK_IDEMPOTENCY_TTL_MINUTES", 1440)
	viper.SetDefault("CONSERVATION_AUDIT_ENABLED", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "CREDIT_REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("IDENTITY_JWKS_URL")
	_ = viper.BindEnv("IDENTITY_AUDIENCE")
	_ = viper.BindEnv("IDENTITY_ISSUER")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "CREDIT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("DEFAULT_REVENUE_SHARE_PERCENT")
	_ = viper.BindEnv("WEBHOOK_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WEBHOOK_IDEMPOTENCY_TTL_MINUTES")
	_ = viper.BindEnv("CONSERVATION_AUDIT_ENABLED")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("CREDIT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "slotpost:webhook"
	}

	// The default revenue share is a rate in [0, 1]. Misconfiguration must
	// never produce negative earnings or a commission above the gross price.
	if config.DefaultRevenueSharePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative revenue share configured; coercing to zero\" rate=%f", config.DefaultRevenueSharePercent)
		config.DefaultRevenueSharePercent = 0
	}
	if config.DefaultRevenueSharePercent > 1 {
		log.Printf("level=warn component=config msg=\"revenue share above 1; capping\" rate=%f", config.DefaultRevenueSharePercent)
		config.DefaultRevenueSharePercent = 1
	}

	if config.WebhookRateLimitPerMinute < 0 {
		config.WebhookRateLimitPerMinute = 0
	}
	if config.WebhookIdempotencyTTLMin <= 0 {
		config.WebhookIdempotencyTTLMin = 1440
	}

	return
}
