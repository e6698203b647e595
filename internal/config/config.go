// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/jeranaias/morpheus-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete morpheus configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" json:"server"`
	Auth      AuthConfig      `toml:"auth" json:"auth"`
	Audio     AudioConfig     `toml:"audio" json:"audio"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Directory DirectoryConfig `toml:"directory" json:"directory"`
	Log       LogConfig       `toml:"log" json:"log"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// ServerConfig locates the chat service.
type ServerConfig struct {
	BaseURL    string `toml:"base_url" json:"base_url" env:"MORPHEUS_BASE_URL"`
	StreamPath string `toml:"stream_path" json:"stream_path" env:"MORPHEUS_STREAM_PATH"`

	// ConnectTimeoutSecs bounds connecting and waiting for the first byte
	// of a streamed reply. The stream itself never times out.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs" env:"MORPHEUS_CONNECT_TIMEOUT_SECS"`

	// RequestTimeoutSecs bounds directory and audio calls.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" env:"MORPHEUS_REQUEST_TIMEOUT_SECS"`
}

// AuthConfig says where the bearer token lives.
type AuthConfig struct {
	TokenFile string `toml:"token_file" json:"token_file" env:"MORPHEUS_TOKEN_FILE"`
}

// AudioConfig controls narration of storyteller replies.
type AudioConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" env:"MORPHEUS_AUDIO"`

	// AutoGenerate requests narration as soon as an eligible reply completes.
	AutoGenerate bool   `toml:"auto_generate" json:"auto_generate" env:"MORPHEUS_AUDIO_AUTO"`
	Role         string `toml:"role" json:"role"`

	// KeywordFallback also narrates untagged replies that read like stories.
	// Deprecated: kept for servers that do not tag the agent.
	KeywordFallback bool `toml:"keyword_fallback" json:"keyword_fallback"`
	MinWords        int  `toml:"min_words" json:"min_words"`
}

// StorageConfig locates local state.
type StorageConfig struct {
	StatePath string `toml:"state_path" json:"state_path" env:"MORPHEUS_STATE_PATH"`
}

// DirectoryConfig tunes the conversation list.
type DirectoryConfig struct {
	CacheSize int `toml:"cache_size" json:"cache_size"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `toml:"level" json:"level" env:"MORPHEUS_LOG_LEVEL"`
	Format string `toml:"format" json:"format" env:"MORPHEUS_LOG_FORMAT"`

	// File receives logs while the full-screen UI owns the terminal.
	File string `toml:"file" json:"file" env:"MORPHEUS_LOG_FILE"`
}

// UIConfig holds display preferences.
type UIConfig struct {
	Theme      string `toml:"theme" json:"theme"`
	Markdown   bool   `toml:"markdown" json:"markdown"`
	WordWrap   int    `toml:"word_wrap" json:"word_wrap"`
	ShowSafety bool   `toml:"show_safety" json:"show_safety"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".morpheus"
	}
	return &Config{
		Server: ServerConfig{
			BaseURL:            "http://127.0.0.1:8000",
			StreamPath:         "/chat/stream",
			ConnectTimeoutSecs: 15,
			RequestTimeoutSecs: 30,
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dir, "token"),
		},
		Audio: AudioConfig{
			Enabled:  true,
			Role:     "storyteller",
			MinWords: 80,
		},
		Storage: StorageConfig{
			StatePath: filepath.Join(dir, "state.db"),
		},
		Directory: DirectoryConfig{
			CacheSize: 32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(dir, "morpheus.log"),
		},
		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
			WordWrap: 100,
		},
	}
}

// ConnectTimeout returns the streaming connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Server.ConnectTimeoutSecs) * time.Second
}

// RequestTimeout returns the REST request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the morpheus directory, MORPHEUS_HOME or ~/.morpheus.
func ConfigDir() (string, error) {
	if dir := os.Getenv("MORPHEUS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".morpheus"), nil
}

// ConfigPath returns the path to config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if it exists, then applies
// environment overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit file. A missing file yields the
// defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, statErr
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg; keys absent from the file keep their
// current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides overlays MORPHEUS_* environment variables.
//
// Environment variables:
//   - MORPHEUS_BASE_URL, MORPHEUS_STREAM_PATH
//   - MORPHEUS_CONNECT_TIMEOUT_SECS, MORPHEUS_REQUEST_TIMEOUT_SECS
//   - MORPHEUS_TOKEN_FILE
//   - MORPHEUS_AUDIO, MORPHEUS_AUDIO_AUTO
//   - MORPHEUS_STATE_PATH
//   - MORPHEUS_LOG_LEVEL, MORPHEUS_LOG_FORMAT, MORPHEUS_LOG_FILE
func (c *Config) ApplyEnvOverrides() error {
	return env.Parse(c)
}

// SetDefaults fills zero values left by a sparse file or environment.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Server.BaseURL == "" {
		c.Server.BaseURL = d.Server.BaseURL
	}
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = d.Server.StreamPath
	}
	if !strings.HasPrefix(c.Server.StreamPath, "/") {
		c.Server.StreamPath = "/" + c.Server.StreamPath
	}
	if c.Server.ConnectTimeoutSecs == 0 {
		c.Server.ConnectTimeoutSecs = d.Server.ConnectTimeoutSecs
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = d.Auth.TokenFile
	}
	if c.Audio.Role == "" {
		c.Audio.Role = d.Audio.Role
	}
	if c.Audio.MinWords == 0 {
		c.Audio.MinWords = d.Audio.MinWords
	}
	if c.Storage.StatePath == "" {
		c.Storage.StatePath = d.Storage.StatePath
	}
	if c.Directory.CacheSize == 0 {
		c.Directory.CacheSize = d.Directory.CacheSize
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# morpheus configuration file\n")
	buf.WriteString("# Environment variables (MORPHEUS_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

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

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" {
		add("server.base_url", "invalid URL '%s'", c.Server.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	}
	if c.Server.ConnectTimeoutSecs < 1 || c.Server.ConnectTimeoutSecs > 300 {
		add("server.connect_timeout_secs", "must be between 1 and 300, got %d", c.Server.ConnectTimeoutSecs)
	}
	if c.Server.RequestTimeoutSecs < 1 || c.Server.RequestTimeoutSecs > 600 {
		add("server.request_timeout_secs", "must be between 1 and 600, got %d", c.Server.RequestTimeoutSecs)
	}

	if c.Audio.MinWords < 1 {
		add("audio.min_words", "must be positive, got %d", c.Audio.MinWords)
	}
	if c.Directory.CacheSize < 1 || c.Directory.CacheSize > 1024 {
		add("directory.cache_size", "must be between 1 and 1024, got %d", c.Directory.CacheSize)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: trace, debug, info, warn, error, disabled", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		add("log.format", "invalid format '%s', must be console or json", c.Log.Format)
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be between 20 and 400, got %d", c.UI.WordWrap)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// lookup resolves a dotted key such as "server.base_url" by toml tag.
func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown key: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("'%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Get returns the value at a dotted key.
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the setting at a dotted key.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer value: %v", key, err)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean value: %v", key, err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("'%s' is a section, not a setting", key)
	}
	return nil
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// String renders the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
