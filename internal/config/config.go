package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port          int    `env:"PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RedisURL      string `env:"REDIS_URL,required"`
	SessionSecret string `env:"SESSION_SECRET"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	AppBaseURL    string `env:"APP_BASE_URL" envDefault:""`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	GitHubClientID      string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret  string `env:"GITHUB_CLIENT_SECRET"`
	GoogleClientID      string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `env:"GOOGLE_CLIENT_SECRET"`
	TwitterClientID     string `env:"TWITTER_CLIENT_ID"`
	TwitterClientSecret string `env:"TWITTER_CLIENT_SECRET"`

	SolanaRPCURL           string `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`
	SolanaNotaryPrivateKey string `env:"SOLANA_NOTARY_PRIVATE_KEY"`

	PKCETTLSeconds         int `env:"PKCE_TTL_SECONDS" envDefault:"600"`
	ProviderTimeoutSeconds int `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"10"`
	LedgerTimeoutSeconds   int `env:"LEDGER_TIMEOUT_SECONDS" envDefault:"30"`
}

func (c *Config) PKCETTL() time.Duration {
	return time.Duration(c.PKCETTLSeconds) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: provider access tokens will not be encrypted at rest")
		}
		if c.SolanaNotaryPrivateKey == "" {
			log.Warn().Msg("SOLANA_NOTARY_PRIVATE_KEY is empty: consent hashes will not be anchored on-chain")
		}
	}

	// PKCE verifiers must never outlive one authorization round-trip.
	if c.PKCETTLSeconds <= 0 || c.PKCETTLSeconds > 600 {
		return fmt.Errorf("PKCE_TTL_SECONDS must be between 1 and 600, got %d", c.PKCETTLSeconds)
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
