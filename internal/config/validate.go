package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// Sink kinds
const (
	SinkLocal = "local"
	SinkS3    = "s3"
)

// Validate validates the entire configuration
func (c *Config) Validate() error {
	checks := []func(*Config) error{
		validateServerConfig,
		validatePlatformConfig,
		validateListenerConfig,
		validateOutputConfig,
		validateWrappedConfig,
	}

	for _, check := range checks {
		if err := check(c); err != nil {
			return err
		}
	}

	return nil
}

// Variant returns the configured platform variant
func (c *Config) Variant() entity.Variant {
	return entity.Variant(c.Platform.Variant)
}

// Location returns the timezone of the fetch window
func (c *Config) Location() (*time.Location, error) {
	if c.Platform.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Platform.Timezone)
}

func validateServerConfig(cfg *Config) error {
	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port, must be between 1 and 65535, got %q", cfg.Server.Port)
	}
	return nil
}

func validatePlatformConfig(cfg *Config) error {
	if !cfg.Variant().IsValid() {
		return fmt.Errorf("unknown platform variant %q, expected %q or %q", cfg.Platform.Variant, entity.VariantBark, entity.VariantTweet)
	}
	if cfg.Variant() == entity.VariantBark && cfg.Platform.BaseURL == "" {
		return fmt.Errorf("platform base url is empty")
	}
	if cfg.Variant() == entity.VariantTweet && cfg.Twitter.BearerToken == "" {
		return fmt.Errorf("twitter bearer token is required for the tweet variant")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("invalid platform timezone: %w", err)
	}
	return nil
}

func validateListenerConfig(cfg *Config) error {
	if !cfg.Listener.Enabled {
		return nil
	}
	if cfg.Variant() != entity.VariantBark {
		return fmt.Errorf("the mention listener is only available for the %q variant", entity.VariantBark)
	}
	if cfg.Platform.Token == "" {
		return fmt.Errorf("platform token is required when the listener is enabled")
	}
	if cfg.Platform.BotHandle == "" || cfg.Platform.Keyword == "" {
		return fmt.Errorf("bot handle and keyword are required when the listener is enabled")
	}
	if cfg.Listener.ReconnectDelay <= 0 {
		return fmt.Errorf("listener reconnect delay must be positive")
	}
	return nil
}

func validateOutputConfig(cfg *Config) error {
	if cfg.Output.DumpDir == "" {
		return fmt.Errorf("post dump directory is empty")
	}
	switch cfg.Output.Sink {
	case SinkLocal:
		if cfg.Output.ImageDir == "" {
			return fmt.Errorf("image directory is empty")
		}
	case SinkS3:
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required when the sink is %q", SinkS3)
		}
	default:
		return fmt.Errorf("unknown sink %q, expected %q or %q", cfg.Output.Sink, SinkLocal, SinkS3)
	}
	return nil
}

func validateWrappedConfig(cfg *Config) error {
	if _, err := entity.NewLikeBuckets(cfg.Wrapped.LikeThresholds); err != nil {
		return err
	}
	if cfg.Wrapped.MaxCloudWords < 1 {
		return fmt.Errorf("max cloud words must be positive, got %d", cfg.Wrapped.MaxCloudWords)
	}
	return nil
}
