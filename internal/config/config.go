// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (KEEPER_CREDENTIALS_PASSWORD, ...).
const EnvPrefix = "KEEPER"

// DefaultConfigFile is used when no --config flag is given.
const DefaultConfigFile = "config.json"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
	// ErrConfigMalformed is returned when the file cannot be parsed, a required
	// key is missing, or a value is out of range.
	ErrConfigMalformed = errors.New("configuration malformed")
)

// requiredKeys must be present in the file or the environment. Defaults do not count.
var requiredKeys = []string{
	"login_url",
	"session_url",
	"credentials.username",
	"credentials.password",
	"form_fields.username_field",
	"form_fields.password_field",
	"session_settings.timeout",
	"session_settings.refresh_interval",
	"session_settings.max_retries",
}

// Config is the full application configuration. The session keys live at the
// top level of the file; logger and browser are optional sections.
type Config struct {
	LoginURL        string          `mapstructure:"login_url" yaml:"login_url"`
	SessionURL      string          `mapstructure:"session_url" yaml:"session_url"`
	Credentials     Credentials     `mapstructure:"credentials" yaml:"credentials"`
	FormFields      FormFields      `mapstructure:"form_fields" yaml:"form_fields"`
	SessionSettings SessionSettings `mapstructure:"session_settings" yaml:"session_settings"`
	Logger          LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser         BrowserConfig   `mapstructure:"browser" yaml:"browser"`
}

// Credentials holds the login identity.
type Credentials struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
}

// String never prints the password.
func (c Credentials) String() string {
	if c.Password == "" {
		return fmt.Sprintf("%s (no password)", c.Username)
	}
	return fmt.Sprintf("%s (password: ********)", c.Username)
}

// FormFields identifies the login form elements. UsernameField and
// PasswordField are element names; SubmitButton is an XPath expression and may
// be empty, in which case the fallback locators are used.
type FormFields struct {
	UsernameField string `mapstructure:"username_field" yaml:"username_field"`
	PasswordField string `mapstructure:"password_field" yaml:"password_field"`
	SubmitButton  string `mapstructure:"submit_button" yaml:"submit_button"`
}

// SessionSettings holds timing and retry parameters. All durations are
// expressed in (possibly fractional) seconds in the file.
type SessionSettings struct {
	Headless         bool    `mapstructure:"headless" yaml:"headless"`
	Timeout          float64 `mapstructure:"timeout" yaml:"timeout"`
	RefreshInterval  float64 `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	MaxRetries       int     `mapstructure:"max_retries" yaml:"max_retries"`
	LoginSettle      float64 `mapstructure:"login_settle" yaml:"login_settle"`
	NavigationSettle float64 `mapstructure:"navigation_settle" yaml:"navigation_settle"`
	PageLoadTimeout  float64 `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
}

// TimeoutDuration is the element wait bound.
func (s SessionSettings) TimeoutDuration() time.Duration { return seconds(s.Timeout) }

// RefreshIntervalDuration is the keepalive period.
func (s SessionSettings) RefreshIntervalDuration() time.Duration {
	return seconds(s.RefreshInterval)
}

// LoginSettleDuration is the pause between clicking submit and checking the URL.
func (s SessionSettings) LoginSettleDuration() time.Duration { return seconds(s.LoginSettle) }

// NavigationSettleDuration is the pause after navigating to the session URL.
func (s SessionSettings) NavigationSettleDuration() time.Duration {
	return seconds(s.NavigationSettle)
}

// PageLoadTimeoutDuration bounds a navigation or reload. It is separate from
// the element wait because slow pages routinely take longer than a form field.
func (s SessionSettings) PageLoadTimeoutDuration() time.Duration {
	return seconds(s.PageLoadTimeout)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels on the console.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// BrowserConfig holds settings for launching the browser process.
type BrowserConfig struct {
	Driver          string     `mapstructure:"driver" yaml:"driver"`
	ExecPath        string     `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string   `mapstructure:"args" yaml:"args"`
	WindowSize      WindowSize `mapstructure:"window_size" yaml:"window_size"`
	IgnoreTLSErrors bool       `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// Stealth hides the usual automation markers (navigator.webdriver) from pages.
	Stealth   bool   `mapstructure:"stealth" yaml:"stealth"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// Headless and PageLoadTimeout mirror session_settings; see Config.BrowserOptions.
	Headless        bool          `mapstructure:"-" yaml:"-"`
	PageLoadTimeout time.Duration `mapstructure:"-" yaml:"-"`
}

// WindowSize is the initial browser window size. Zero values leave the driver default.
type WindowSize struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserOptions returns the browser section with the headless flag and the
// page load timeout taken from the session settings, where the file keeps them.
func (c *Config) BrowserOptions() BrowserConfig {
	b := c.Browser
	b.Headless = c.SessionSettings.Headless
	b.PageLoadTimeout = c.SessionSettings.PageLoadTimeoutDuration()
	return b
}

// NewDefaultConfig creates a configuration populated with default values only.
// The result does not pass Validate on its own.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for the optional parameters.
func SetDefaults(v *viper.Viper) {
	// -- Form --
	v.SetDefault("form_fields.submit_button", "")

	// -- Session --
	v.SetDefault("session_settings.headless", false)
	v.SetDefault("session_settings.login_settle", 3)
	v.SetDefault("session_settings.navigation_settle", 2)
	v.SetDefault("session_settings.page_load_timeout", 60)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "session-keeper")
	v.SetDefault("logger.log_file", "session_keeper.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", false)

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.stealth", true)
}

// Load reads, defaults and validates the configuration at path using a fresh viper instance.
func Load(path string) (*Config, error) {
	return LoadWithViper(viper.New(), path)
}

// LoadWithViper is Load on a caller-supplied viper instance, so command-line
// flags already bound to v take precedence over the file.
func LoadWithViper(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	resolved, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot expand %q: %v", ErrConfigNotFound, path, err)
	}

	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, resolved)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, resolved, err)
	}

	SetDefaults(v)
	v.SetConfigFile(resolved)
	if filepath.Ext(resolved) == "" {
		v.SetConfigType("json")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: error reading %s: %v", ErrConfigMalformed, resolved, err)
	}

	return NewConfigFromViper(v)
}

// NewConfigFromViper creates a configuration from a populated viper instance,
// checking required keys and value ranges.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data so they are picked up
	// even when the file omits them.
	_ = v.BindEnv("credentials.username", EnvPrefix+"_CREDENTIALS_USERNAME")
	_ = v.BindEnv("credentials.password", EnvPrefix+"_CREDENTIALS_PASSWORD")

	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required keys: %s", ErrConfigMalformed, strings.Join(missing, ", "))
	}

	// Unmarshal truncates 2.9 to 2 and accepts "3", so integer keys are checked first.
	if err := checkInteger(v, "session_settings.max_retries"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling config: %v", ErrConfigMalformed, err)
	}

	cfg.Logger.LogFile, _ = homedir.Expand(cfg.Logger.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}
	return &cfg, nil
}

// checkInteger fails unless the raw value of key is a whole number. Strings
// are only accepted from the environment, where every value is a string.
func checkInteger(v *viper.Viper, key string) error {
	raw := v.Get(key)
	switch n := raw.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return nil
		}
	case float32:
		if f := float64(n); f == math.Trunc(f) && !math.IsInf(f, 0) {
			return nil
		}
	case string:
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if env, ok := os.LookupEnv(envKey); ok && env == n {
			if _, err := strconv.Atoi(n); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("%s must be an integer, got %#v", key, raw)
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LoginURL) == "" {
		return fmt.Errorf("login_url must not be empty")
	}
	if strings.TrimSpace(c.SessionURL) == "" {
		return fmt.Errorf("session_url must not be empty")
	}
	if c.FormFields.UsernameField == "" || c.FormFields.PasswordField == "" {
		return fmt.Errorf("form_fields.username_field and form_fields.password_field must not be empty")
	}
	if err := c.SessionSettings.Validate(); err != nil {
		return fmt.Errorf("session_settings invalid: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser invalid: %w", err)
	}
	return nil
}

// Validate checks the timing and retry parameters.
func (s *SessionSettings) Validate() error {
	// Checked after conversion: 1e-10 seconds is positive but rounds to 0s.
	if s.TimeoutDuration() <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if s.RefreshIntervalDuration() <= 0 {
		return fmt.Errorf("refresh_interval must be greater than 0")
	}
	if s.PageLoadTimeoutDuration() <= 0 {
		return fmt.Errorf("page_load_timeout must be greater than 0")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if s.LoginSettle < 0 || s.NavigationSettle < 0 {
		return fmt.Errorf("settle periods must not be negative")
	}
	return nil
}

// Validate checks the browser section.
func (b *BrowserConfig) Validate() error {
	switch b.Driver {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, b.Driver)
	}
	if b.WindowSize.Width < 0 || b.WindowSize.Height < 0 {
		return fmt.Errorf("window_size must not be negative")
	}
	return nil
}
