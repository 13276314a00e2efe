// File: internal/config/config.go
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Wallet  WalletConfig  `mapstructure:"wallet" yaml:"wallet"`
	Timing  TimingConfig  `mapstructure:"timing" yaml:"timing"`
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

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how the browser carrying the wallet extension is
// launched or reached.
type BrowserConfig struct {
	Headless      bool           `mapstructure:"headless" yaml:"headless"`
	ExtensionPath string         `mapstructure:"extension_path" yaml:"extension_path"`
	UserDataDir   string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Flask         bool           `mapstructure:"flask" yaml:"flask"`
	Args          []string       `mapstructure:"args" yaml:"args"`
	Viewport      ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	WSEndpoint    string         `mapstructure:"ws_endpoint" yaml:"ws_endpoint"`
}

// ViewportConfig is the window size applied to the wallet page before setup.
type ViewportConfig struct {
	Width  int64 `mapstructure:"width" yaml:"width"`
	Height int64 `mapstructure:"height" yaml:"height"`
}

// WalletConfig holds the account material and extension addressing.
type WalletConfig struct {
	ExtensionName string `mapstructure:"extension_name" yaml:"extension_name"`
	HomeURL       string `mapstructure:"home_url" yaml:"home_url"`
	HomePattern   string `mapstructure:"home_pattern" yaml:"home_pattern"`
	Seed          string `mapstructure:"seed" yaml:"-"`
	Password      string `mapstructure:"password" yaml:"-"`
	ShowTestNets  bool   `mapstructure:"show_test_nets" yaml:"show_test_nets"`
}

// TimingConfig tunes the waits and retry bounds used while driving the UI.
type TimingConfig struct {
	SettleDelay         time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	PopupTimeout        time.Duration `mapstructure:"popup_timeout" yaml:"popup_timeout"`
	TooltipTimeout      time.Duration `mapstructure:"tooltip_timeout" yaml:"tooltip_timeout"`
	OverlayPollInterval time.Duration `mapstructure:"overlay_poll_interval" yaml:"overlay_poll_interval"`
	ActionTimeout       time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	UnlockAttempts      int           `mapstructure:"unlock_attempts" yaml:"unlock_attempts"`
	WhatsNewAttempts    int           `mapstructure:"whats_new_attempts" yaml:"whats_new_attempts"`
	SnapInstallURL      string        `mapstructure:"snap_install_url" yaml:"snap_install_url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "walletctl")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.flask", false)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)

	// -- Wallet --
	v.SetDefault("wallet.extension_name", "MetaMask")
	v.SetDefault("wallet.home_pattern", "chrome-extension://[a-z]+/home.html")
	v.SetDefault("wallet.seed", "already turtle birth enroll since owner keep patch skirt drift any dinner")
	v.SetDefault("wallet.password", "password1234")
	v.SetDefault("wallet.show_test_nets", true)

	// -- Timing --
	v.SetDefault("timing.settle_delay", "100ms")
	v.SetDefault("timing.popup_timeout", "1s")
	v.SetDefault("timing.tooltip_timeout", "500ms")
	v.SetDefault("timing.overlay_poll_interval", "100ms")
	v.SetDefault("timing.action_timeout", "30s")
	v.SetDefault("timing.unlock_attempts", 3)
	v.SetDefault("timing.whats_new_attempts", 10)
	v.SetDefault("timing.snap_install_url", "http://localhost:8080")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Secrets are only ever read from the environment or the config file.
	_ = v.BindEnv("wallet.password", "WALLETCTL_WALLET_PASSWORD")
	_ = v.BindEnv("wallet.seed", "WALLETCTL_WALLET_SEED")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.Browser.ExtensionPath, err = homedir.Expand(c.Browser.ExtensionPath); err != nil {
		return fmt.Errorf("browser.extension_path: %w", err)
	}
	if c.Browser.UserDataDir, err = homedir.Expand(c.Browser.UserDataDir); err != nil {
		return fmt.Errorf("browser.user_data_dir: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Timing.UnlockAttempts <= 0 {
		return fmt.Errorf("timing.unlock_attempts must be a positive integer")
	}
	if c.Timing.WhatsNewAttempts <= 0 {
		return fmt.Errorf("timing.whats_new_attempts must be a positive integer")
	}
	if c.Timing.OverlayPollInterval <= 0 {
		return fmt.Errorf("timing.overlay_poll_interval must be a positive duration")
	}
	if c.Wallet.HomePattern == "" {
		return fmt.Errorf("wallet.home_pattern is required")
	}
	if _, err := regexp.Compile(c.Wallet.HomePattern); err != nil {
		return fmt.Errorf("wallet.home_pattern is not a valid expression: %w", err)
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be positive")
	}
	return nil
}
