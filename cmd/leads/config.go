package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	cfgx "github.com/goliatone/go-config/cfgx"
	"github.com/goliatone/go-leads/core"
)

const envPrefix = "LEADS_"

type HTTPConfig struct {
	Addr      string `koanf:"addr" mapstructure:"addr"`
	JWTSecret string `koanf:"jwt_secret" mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type LogConfig struct {
	Level string `koanf:"level" mapstructure:"level"`
}

// AppConfig holds the settings owned by the binary. Service settings are
// decoded separately into core.Config.
type AppConfig struct {
	HTTP     HTTPConfig     `koanf:"http" mapstructure:"http"`
	Database DatabaseConfig `koanf:"database" mapstructure:"database"`
	Log      LogConfig      `koanf:"log" mapstructure:"log"`
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{Driver: driverSQLite, DSN: "file:leads.db?_foreign_keys=on"},
		Log:      LogConfig{Level: "info"},
	}
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("leads: http.addr is required")
	}
	switch c.Database.Driver {
	case driverSQLite, driverPostgres, driverPgx:
	default:
		return fmt.Errorf("leads: unsupported database.driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("leads: database.dsn is required")
	}
	return nil
}

// Environment values are strings; these keys are converted before decoding.
var (
	listKeys = map[string]bool{
		"reference.providers": true,
	}
	intKeys = map[string]bool{
		"dispatch.timeout_seconds":     true,
		"dispatch.max_retries":         true,
		"dispatch.initial_backoff_ms":  true,
		"dispatch.max_backoff_ms":      true,
		"dispatch.max_concurrent":      true,
		"reference.timeout_seconds":    true,
		"reference.max_response_bytes": true,
	}
	boolKeys = map[string]bool{
		"database.debug": true,
	}
)

// EnvLoader reads LEADS_* variables into a nested raw map. A double
// underscore separates sections: LEADS_DISPATCH__MAX_RETRIES becomes
// dispatch.max_retries.
type EnvLoader struct {
	Environ func() []string
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	raw := map[string]any{}
	for _, entry := range environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__")
		typed, err := envValue(strings.Join(path, "."), value)
		if err != nil {
			return nil, fmt.Errorf("leads: %s: %w", key, err)
		}
		if err := setPath(raw, path, typed); err != nil {
			return nil, fmt.Errorf("leads: %s: %w", key, err)
		}
	}
	return raw, nil
}

func envValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch {
	case listKeys[key]:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case intKeys[key]:
		return strconv.ParseInt(value, 10, 64)
	case boolKeys[key]:
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}

func setPath(raw map[string]any, path []string, value any) error {
	node := raw
	for i, segment := range path {
		if segment == "" {
			return fmt.Errorf("empty key segment")
		}
		if i == len(path)-1 {
			node[segment] = value
			return nil
		}
		child, ok := node[segment].(map[string]any)
		if !ok {
			if _, exists := node[segment]; exists {
				return fmt.Errorf("%s is both a value and a section", segment)
			}
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	return nil
}

// serviceSections are handed to the core config provider; everything else
// belongs to AppConfig.
var serviceSections = []string{"service_name", "dispatch", "reference"}

type loadedConfig struct {
	App     AppConfig
	Service core.RawConfigLoader
}

func loadConfig(ctx context.Context, loader core.RawConfigLoader) (loadedConfig, error) {
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return loadedConfig{}, err
	}
	appRaw := map[string]any{}
	serviceRaw := map[string]any{}
	for key, value := range raw {
		if isServiceSection(key) {
			serviceRaw[key] = value
			continue
		}
		appRaw[key] = value
	}
	app, err := cfgx.Build[AppConfig](appRaw,
		cfgx.WithDefaults(DefaultAppConfig()),
		cfgx.WithValidator[AppConfig]((*AppConfig).Validate),
	)
	if err != nil {
		return loadedConfig{}, err
	}
	return loadedConfig{App: app, Service: core.NewStaticRawConfigLoader(serviceRaw)}, nil
}

func isServiceSection(key string) bool {
	for _, section := range serviceSections {
		if key == section {
			return true
		}
	}
	return false
}
