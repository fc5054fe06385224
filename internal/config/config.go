package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Chat     ChatConfig     `mapstructure:"chat"     validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// TrustRootConfig describes one issuer the application accepts bearer tokens
// from. A root validates either against a remote public-certificate discovery
// endpoint (CertURL) or against a static shared secret (SigningSecret).
// Exactly one of the two must be set.
type TrustRootConfig struct {
	Issuer   string `mapstructure:"issuer"   validate:"required"`
	Audience string `mapstructure:"audience" validate:"required"`

	// CertURL is the issuer's public-key discovery endpoint, serving a JSON
	// map of key id to PEM-encoded x509 certificate.
	CertURL string `mapstructure:"cert_url"`

	// SigningSecret is the HMAC secret shared with the issuer. Used for the
	// internal task-queue root, where this process is also the token minter.
	SigningSecret string `mapstructure:"signing_secret"`

	// CertCacheSeconds bounds how long fetched certificates are reused
	// before a refresh. Zero means the default of 300 seconds.
	CertCacheSeconds int `mapstructure:"cert_cache_seconds"`
}

// AuthConfig contains the two trust roots and the credential policy.
type AuthConfig struct {
	// Platform is the trust root for inbound chat-platform webhooks.
	Platform TrustRootConfig `mapstructure:"platform" validate:"required"`

	// Queue is the trust root for background-task invocations. The task
	// dispatcher mints tokens against this root's signing secret.
	Queue TrustRootConfig `mapstructure:"queue" validate:"required"`

	// AllowSharedFallback enables the perUser -> sharedFallback credential
	// resolution policy: when a user has no stored generation-API key, the
	// shared FallbackAPIKey is used instead of prompting for provisioning.
	AllowSharedFallback bool `mapstructure:"allow_shared_fallback"`

	// FallbackAPIKey is the shared generation-API key used when
	// AllowSharedFallback is enabled.
	FallbackAPIKey string `mapstructure:"fallback_api_key"`

	// CredentialCipherKey is a 64-character hex string (32 bytes) used to
	// encrypt stored per-user API keys at rest.
	CredentialCipherKey string `mapstructure:"credential_cipher_key" validate:"required,len=64,hexadecimal"`
}

// LLMConfig contains generation-API settings.
type LLMConfig struct {
	// Provider selects the generation backend.
	Provider string `mapstructure:"provider" validate:"required,oneof=openai gemini"`

	// ChatModel is the completion model name (e.g. gpt-3.5-turbo).
	ChatModel string `mapstructure:"chat_model" validate:"required"`

	// ImageModel is the image-generation model name (e.g. dall-e-2).
	ImageModel string `mapstructure:"image_model"`

	// Temperature is the sampling temperature for completions.
	Temperature float64 `mapstructure:"temperature"`
}

// ChatConfig contains chat-platform message API settings.
type ChatConfig struct {
	// BaseURL is the root of the chat platform's REST API.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// APIToken authenticates outbound message create/update calls.
	APIToken string `mapstructure:"api_token" validate:"required"`
}

// TaskConfig contains background-task dispatch settings.
type TaskConfig struct {
	// WorkerURL is the HTTP endpoint tasks are delivered to. It is also the
	// audience of the identity assertion attached to each delivery.
	WorkerURL string `mapstructure:"worker_url" validate:"required,url"`

	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`

	// DeliveryTimeoutSeconds bounds a single delivery attempt.
	DeliveryTimeoutSeconds int `mapstructure:"delivery_timeout_seconds" validate:"required,gt=0"`

	// StuckTaskAgeMinutes is how long a task may sit in the delivering state
	// before the monitor resets it for redelivery.
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`

	// TokenLifetimeMinutes is the lifetime of minted delivery tokens.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}
