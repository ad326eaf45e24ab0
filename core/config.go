package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultDispatchTimeoutSeconds   = 10
	DefaultDispatchMaxRetries       = 2
	DefaultDispatchInitialBackoffMS = 1000
	DefaultDispatchMaxBackoffMS     = 5000
	DefaultDispatchMaxConcurrent    = 16
	DefaultReferenceTimeoutSeconds  = 30
	DefaultReferenceMaxResponseSize = int64(10 << 20)
)

var DefaultReferenceProviders = []string{
	"https://notion-api.splitbee.io/v1/page",
	"https://notion-api.vercel.app/v1/page",
}

type DispatchConfig struct {
	TimeoutSeconds   int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries       int    `koanf:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMS int    `koanf:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int    `koanf:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxConcurrent    int    `koanf:"max_concurrent" mapstructure:"max_concurrent"`
	UserAgent        string `koanf:"user_agent" mapstructure:"user_agent"`
}

func (c DispatchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c DispatchConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

func (c DispatchConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

type ReferenceConfig struct {
	Providers        []string `koanf:"providers" mapstructure:"providers"`
	TimeoutSeconds   int      `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxResponseBytes int64    `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
}

func (c ReferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Dispatch    DispatchConfig  `koanf:"dispatch" mapstructure:"dispatch"`
	Reference   ReferenceConfig `koanf:"reference" mapstructure:"reference"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "leads",
		Dispatch: DispatchConfig{
			TimeoutSeconds:   DefaultDispatchTimeoutSeconds,
			MaxRetries:       DefaultDispatchMaxRetries,
			InitialBackoffMS: DefaultDispatchInitialBackoffMS,
			MaxBackoffMS:     DefaultDispatchMaxBackoffMS,
			MaxConcurrent:    DefaultDispatchMaxConcurrent,
			UserAgent:        "go-leads/1",
		},
		Reference: ReferenceConfig{
			Providers:        append([]string(nil), DefaultReferenceProviders...),
			TimeoutSeconds:   DefaultReferenceTimeoutSeconds,
			MaxResponseBytes: DefaultReferenceMaxResponseSize,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dispatch.TimeoutSeconds <= 0 {
		return fmt.Errorf("core: dispatch.timeout_seconds must be positive")
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("core: dispatch.max_retries must not be negative")
	}
	if c.Dispatch.InitialBackoffMS < 0 || c.Dispatch.MaxBackoffMS < 0 {
		return fmt.Errorf("core: dispatch backoff must not be negative")
	}
	if c.Dispatch.MaxConcurrent <= 0 {
		return fmt.Errorf("core: dispatch.max_concurrent must be positive")
	}
	if len(c.Reference.Providers) == 0 {
		return fmt.Errorf("core: reference.providers is required")
	}
	for _, provider := range c.Reference.Providers {
		parsed, err := url.Parse(strings.TrimSpace(provider))
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("core: reference provider %q is invalid", provider)
		}
	}
	if c.Reference.TimeoutSeconds <= 0 {
		return fmt.Errorf("core: reference.timeout_seconds must be positive")
	}
	return nil
}
