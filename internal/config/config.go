// Package config loads ~/.leadsync/config.toml and the LEADSYNC_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEADSYNC_"

// Config represents the global ~/.leadsync/config.toml.
type Config struct {
	DefaultSession string             `toml:"default_session"`
	Sessions       map[string]Session `toml:"sessions"`
}

// Session holds the settings of one named session. Zero fields fall back
// to Defaults.
type Session struct {
	PushURL        string        `toml:"push_url"`
	APIBaseURL     string        `toml:"api_base_url"`
	UserID         string        `toml:"user_id"`
	Username       string        `toml:"username"`
	Token          string        `toml:"token"`
	TokenSecret    string        `toml:"token_secret"`
	LogLevel       string        `toml:"log_level"`
	ReconnectBase  time.Duration `toml:"reconnect_base"`
	MaxAttempts    int           `toml:"max_attempts"`
	Heartbeat      time.Duration `toml:"heartbeat"`
	DialTimeout    time.Duration `toml:"dial_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	EchoWindow     time.Duration `toml:"echo_window"`
	PageSize       int           `toml:"page_size"`
	Animation      Animation     `toml:"animation"`
}

// Animation holds the list animation durations.
type Animation struct {
	Move      time.Duration `toml:"move"`
	Highlight time.Duration `toml:"highlight"`
	Badge     time.Duration `toml:"badge"`
	Pulse     time.Duration `toml:"pulse"`
}

// Defaults returns the built-in session settings.
func Defaults() Session {
	return Session{
		LogLevel:       "info",
		ReconnectBase:  3 * time.Second,
		MaxAttempts:    5,
		Heartbeat:      30 * time.Second,
		DialTimeout:    10 * time.Second,
		RequestTimeout: 15 * time.Second,
		EchoWindow:     15 * time.Second,
		PageSize:       50,
		Animation: Animation{
			Move:      300 * time.Millisecond,
			Highlight: 1500 * time.Millisecond,
			Badge:     200 * time.Millisecond,
			Pulse:     400 * time.Millisecond,
		},
	}
}

// Load reads config from the given path. Returns nil and an error if the
// file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Session returns the named session merged over Defaults. A nil config
// yields the defaults.
func (c *Config) Session(name string) Session {
	s := Defaults()
	if c == nil {
		return s
	}
	if file, ok := c.Sessions[name]; ok {
		s.merge(file)
	}
	return s
}

func (s *Session) merge(o Session) {
	setString(&s.PushURL, o.PushURL)
	setString(&s.APIBaseURL, o.APIBaseURL)
	setString(&s.UserID, o.UserID)
	setString(&s.Username, o.Username)
	setString(&s.Token, o.Token)
	setString(&s.TokenSecret, o.TokenSecret)
	setString(&s.LogLevel, o.LogLevel)
	setDuration(&s.ReconnectBase, o.ReconnectBase)
	setInt(&s.MaxAttempts, o.MaxAttempts)
	setDuration(&s.Heartbeat, o.Heartbeat)
	setDuration(&s.DialTimeout, o.DialTimeout)
	setDuration(&s.RequestTimeout, o.RequestTimeout)
	setDuration(&s.EchoWindow, o.EchoWindow)
	setInt(&s.PageSize, o.PageSize)
	setDuration(&s.Animation.Move, o.Animation.Move)
	setDuration(&s.Animation.Highlight, o.Animation.Highlight)
	setDuration(&s.Animation.Badge, o.Animation.Badge)
	setDuration(&s.Animation.Pulse, o.Animation.Pulse)
}

// ApplyEnv overrides s with LEADSYNC_* variables found by lookup.
func (s *Session) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PUSH_URL":     &s.PushURL,
		"API_BASE_URL": &s.APIBaseURL,
		"USER_ID":      &s.UserID,
		"USERNAME":     &s.Username,
		"TOKEN":        &s.Token,
		"TOKEN_SECRET": &s.TokenSecret,
		"LOG_LEVEL":    &s.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_ATTEMPTS": &s.MaxAttempts,
		"PAGE_SIZE":    &s.PageSize,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"RECONNECT_BASE":  &s.ReconnectBase,
		"HEARTBEAT":       &s.Heartbeat,
		"DIAL_TIMEOUT":    &s.DialTimeout,
		"REQUEST_TIMEOUT": &s.RequestTimeout,
		"ECHO_WINDOW":     &s.EchoWindow,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}
	return nil
}

// Validate reports settings the console cannot start without.
func (s Session) Validate() error {
	var errs []error
	if s.PushURL == "" {
		errs = append(errs, errors.New("push_url is required"))
	}
	if s.APIBaseURL == "" {
		errs = append(errs, errors.New("api_base_url is required"))
	}
	if s.UserID == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if s.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_attempts must not be negative, got %d", s.MaxAttempts))
	}
	return errors.Join(errs...)
}

// Resolve builds the effective settings for a session: defaults, then the
// config file at path (which may be missing), then the optional .env files,
// then the process environment.
func Resolve(path, name string, envFiles ...string) (Session, error) {
	cfg, err := Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Session{}, fmt.Errorf("load %s: %w", path, err)
	}
	s := cfg.Session(name)

	if err := loadEnvFiles(envFiles...); err != nil {
		return Session{}, err
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return Session{}, err
	}
	if err := s.Validate(); err != nil {
		return Session{}, fmt.Errorf("session %q: %w", name, err)
	}
	return s, nil
}

// loadEnvFiles loads .env files without overriding variables already set.
// Missing files are skipped.
func loadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
