package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, optionally, a
// config.yaml in the working directory. Environment variables use the FABLE_
// prefix with underscores for nesting (FABLE_SERVER_PORT, FABLE_AUTH_QUEUE_ISSUER).
// Environment variables take precedence over file values.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Missing config files are fine; env-only configuration is the normal
	// deployment mode.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every known key so AutomaticEnv can resolve them,
// along with the defaults that have sensible values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.platform.issuer", "")
	v.SetDefault("auth.platform.audience", "")
	v.SetDefault("auth.platform.cert_url", "")
	v.SetDefault("auth.platform.signing_secret", "")
	v.SetDefault("auth.platform.cert_cache_seconds", 300)
	v.SetDefault("auth.queue.issuer", "")
	v.SetDefault("auth.queue.audience", "")
	v.SetDefault("auth.queue.cert_url", "")
	v.SetDefault("auth.queue.signing_secret", "")
	v.SetDefault("auth.queue.cert_cache_seconds", 300)
	v.SetDefault("auth.allow_shared_fallback", false)
	v.SetDefault("auth.fallback_api_key", "")
	v.SetDefault("auth.credential_cipher_key", "")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.chat_model", "gpt-3.5-turbo")
	v.SetDefault("llm.image_model", "dall-e-2")
	v.SetDefault("llm.temperature", 1.1)

	v.SetDefault("chat.base_url", "")
	v.SetDefault("chat.api_token", "")

	v.SetDefault("task.worker_url", "")
	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.delivery_timeout_seconds", 120)
	v.SetDefault("task.stuck_task_age_minutes", 30)
	v.SetDefault("task.token_lifetime_minutes", 15)
}

// validate applies struct-tag validation plus the cross-field rules the tags
// cannot express.
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validateTrustRoot("auth.platform", cfg.Auth.Platform); err != nil {
		return err
	}
	if err := validateTrustRoot("auth.queue", cfg.Auth.Queue); err != nil {
		return err
	}

	// The dispatcher mints tokens against the queue root, so that root must
	// carry a signing secret rather than only a discovery endpoint.
	if cfg.Auth.Queue.SigningSecret == "" {
		return fmt.Errorf("invalid configuration: auth.queue.signing_secret is required for task dispatch")
	}

	if cfg.Auth.AllowSharedFallback && cfg.Auth.FallbackAPIKey == "" {
		return fmt.Errorf(
			"invalid configuration: auth.fallback_api_key is required when auth.allow_shared_fallback is enabled")
	}

	return nil
}

func validateTrustRoot(name string, root TrustRootConfig) error {
	if root.CertURL == "" && root.SigningSecret == "" {
		return fmt.Errorf("invalid configuration: %s needs either cert_url or signing_secret", name)
	}
	if root.CertURL != "" && root.SigningSecret != "" {
		return fmt.Errorf("invalid configuration: %s must not set both cert_url and signing_secret", name)
	}
	if root.SigningSecret != "" && len(root.SigningSecret) < 32 {
		return fmt.Errorf("invalid configuration: %s.signing_secret must be at least 32 characters", name)
	}
	return nil
}
