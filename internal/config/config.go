// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/jeranaias/g4chat/internal/util"
)

// AppName names the XDG subdirectories.
const AppName = "g4chat"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "G4CHAT_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete g4chat configuration.
type Config struct {
	API     APIConfig     `toml:"api" json:"api"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// BaseURL is the backend origin, without the /api/v1 prefix.
	BaseURL string `toml:"base_url" json:"base_url"`
	// Timeout bounds each REST call. Streams are not bounded.
	Timeout time.Duration `toml:"timeout" json:"timeout"`
	// RateLimit is REST requests per second; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// Burst is the limiter's bucket size.
	Burst int `toml:"burst" json:"burst"`
}

// ChatConfig contains conversation behavior.
type ChatConfig struct {
	// Streaming selects the SSE endpoint; false uses the single-response one.
	Streaming bool `toml:"streaming" json:"streaming"`
	// RollbackOptimistic reverts local session changes the backend refused.
	RollbackOptimistic bool `toml:"rollback_optimistic" json:"rollback_optimistic"`
	// ReadBufferSize is the stream read size in bytes.
	ReadBufferSize int `toml:"read_buffer_size" json:"read_buffer_size"`
}

// StorageConfig contains local file locations.
type StorageConfig struct {
	StatePath   string `toml:"state_path" json:"state_path"`
	ArchivePath string `toml:"archive_path" json:"archive_path"`
	// WatchState reloads the state file when another process changes it.
	WatchState bool `toml:"watch_state" json:"watch_state"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// Development switches to human-readable console output.
	Development bool `toml:"development" json:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   30 * time.Second,
			RateLimit: 5,
			Burst:     10,
		},
		Chat: ChatConfig{
			Streaming:          true,
			RollbackOptimistic: true,
			ReadBufferSize:     4096,
		},
		Storage: StorageConfig{
			StatePath:   filepath.Join(xdg.DataHome, AppName, "state.json"),
			ArchivePath: filepath.Join(xdg.DataHome, AppName, "archive.db"),
			WatchState:  true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the g4chat configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file (if any), the .env file and the
// environment, then fills defaults and validates.
func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath is Load with an explicit config file. A missing file is not an
// error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Unknown keys are rejected so typos surface.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment. Variables
// already set are kept. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg as TOML to path, atomically and owner-only.
func Save(cfg *Config, path string) error {
	data, err := cfg.TOML()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// TOML encodes cfg.
func (c *Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// String returns the TOML form, for display.
func (c *Config) String() string {
	data, err := c.TOML()
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envBinding maps a variable suffix to a dotted config key.
var envBindings = map[string]string{
	"BASE_URL":            "api.base_url",
	"TIMEOUT":             "api.timeout",
	"RATE_LIMIT":          "api.rate_limit",
	"BURST":               "api.burst",
	"STREAMING":           "chat.streaming",
	"ROLLBACK_OPTIMISTIC": "chat.rollback_optimistic",
	"READ_BUFFER_SIZE":    "chat.read_buffer_size",
	"STATE_PATH":          "storage.state_path",
	"ARCHIVE_PATH":        "storage.archive_path",
	"WATCH_STATE":         "storage.watch_state",
	"LOG_LEVEL":           "log.level",
	"LOG_DEVELOPMENT":     "log.development",
}

// EnvKeys returns the supported environment variables, sorted.
func EnvKeys() []string {
	keys := make([]string, 0, len(envBindings))
	for suffix := range envBindings {
		keys = append(keys, EnvPrefix+suffix)
	}
	sort.Strings(keys)
	return keys
}

// EnvByKey maps each dotted key to the variable that overrides it.
func EnvByKey() map[string]string {
	out := make(map[string]string, len(envBindings))
	for suffix, key := range envBindings {
		out[key] = EnvPrefix + suffix
	}
	return out
}

// ApplyEnvOverrides applies G4CHAT_* variables. Every malformed value is
// reported.
func (c *Config) ApplyEnvOverrides() error {
	var errs []error
	for _, env := range EnvKeys() {
		raw, ok := os.LookupEnv(env)
		if !ok || raw == "" {
			continue
		}
		key := envBindings[strings.TrimPrefix(env, EnvPrefix)]
		if err := c.Set(key, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", env, err))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills zero values that have a default. Booleans are left alone:
// false is a valid choice.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.API.RateLimit > 0 && c.API.Burst == 0 {
		c.API.Burst = defaults.API.Burst
	}
	if c.Chat.ReadBufferSize == 0 {
		c.Chat.ReadBufferSize = defaults.Chat.ReadBufferSize
	}
	if c.Storage.StatePath == "" {
		c.Storage.StatePath = defaults.Storage.StatePath
	}
	if c.Storage.ArchivePath == "" {
		c.Storage.ArchivePath = defaults.Storage.ArchivePath
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.API.BaseURL),
		})
	}
	if c.API.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "api.timeout", Message: "must not be negative"})
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "api.rate_limit", Message: "must not be negative"})
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		errs = append(errs, ValidationError{Field: "api.burst", Message: "must be at least 1 when rate limiting"})
	}
	if n := c.Chat.ReadBufferSize; n < 64 || n > 1<<20 {
		errs = append(errs, ValidationError{
			Field:   "chat.read_buffer_size",
			Message: fmt.Sprintf("%d out of range [64, 1048576]", n),
		})
	}
	if c.Storage.StatePath == "" {
		errs = append(errs, ValidationError{Field: "storage.state_path", Message: "must be set"})
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	walkKeys(reflect.TypeOf(Config{}), "", &keys)
	return keys
}

func walkKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := prefix + f.Tag.Get("toml")
		if f.Type.Kind() == reflect.Struct {
			walkKeys(f.Type, name+".", keys)
			continue
		}
		*keys = append(*keys, name)
	}
}

// lookup finds the field for a dotted key such as "api.base_url".
func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a setting", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Get returns the value of a dotted key.
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the setting named by key.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	return setFieldValue(field, strings.TrimSpace(value))
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue parses s into field according to its type.
func setFieldValue(field reflect.Value, s string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration value: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %w", err)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("cannot set %s", field.Type())
	}
	return nil
}
