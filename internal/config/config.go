// Package config loads the settings of the uidlist command from defaults, a YAML file and UIDLIST_ environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/uidlist"
	"github.com/ProtonMail/uidlist/imap"
	"github.com/ProtonMail/uidlist/internal/dotlock"
	"github.com/ProtonMail/uidlist/internal/reconcile"
	"github.com/ProtonMail/uidlist/limits"
	"github.com/spf13/viper"
)

// Config represents the complete uidlist configuration
type Config struct {
	Lock    LockConfig    `mapstructure:"lock"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LockConfig controls how the list lock is taken
type LockConfig struct {
	// StaleAfter is how old a lock must be before it is taken over from its owner
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// SyncConfig controls sync passes
type SyncConfig struct {
	// ConfirmScans is how many passes must miss a file before its UID is retired
	ConfirmScans int `mapstructure:"confirm_scans"`
	// Create initializes missing maildirs instead of failing
	Create bool `mapstructure:"create"`
	// WatchInterval is the minimum time between background passes of sync --watch
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// LimitsConfig bounds what a list may hold. Zero means the protocol maximum.
type LimitsConfig struct {
	MaxMessages uint32 `mapstructure:"max_messages"`
	MaxUID      uint32 `mapstructure:"max_uid"`
}

type LoggingConfig struct {
	// Level is a logrus level name
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			StaleAfter: dotlock.DefaultStaleAfter,
		},
		Sync: SyncConfig{
			ConfirmScans:  reconcile.DefaultConfirmScans,
			WatchInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// SetDefaults registers the built-in configuration with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("lock.stale_after", defaults.Lock.StaleAfter)

	viper.SetDefault("sync.confirm_scans", defaults.Sync.ConfirmScans)
	viper.SetDefault("sync.create", defaults.Sync.Create)
	viper.SetDefault("sync.watch_interval", defaults.Sync.WatchInterval)

	viper.SetDefault("limits.max_messages", defaults.Limits.MaxMessages)
	viper.SetDefault("limits.max_uid", defaults.Limits.MaxUID)

	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// BindEnv lets UIDLIST_ environment variables override every key,
// e.g. UIDLIST_LOCK_STALE_AFTER for lock.stale_after.
func BindEnv() {
	viper.SetEnvPrefix("UIDLIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the configuration viper has collected and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}

	return &cfg, nil
}

// Options turns the configuration into mailbox options.
func (c *Config) Options() []uidlist.Option {
	options := []uidlist.Option{
		uidlist.WithStaleAfter(c.Lock.StaleAfter),
		uidlist.WithConfirmScans(c.Sync.ConfirmScans),
	}

	if c.Sync.Create {
		options = append(options, uidlist.WithCreate())
	}

	if c.Limits.MaxMessages != 0 || c.Limits.MaxUID != 0 {
		maxMessages, maxUID := c.Limits.MaxMessages, imap.UID(c.Limits.MaxUID)

		if maxMessages == 0 {
			maxMessages = uint32(imap.MaxUID)
		}

		if maxUID == 0 {
			maxUID = imap.MaxUID
		}

		options = append(options, uidlist.WithLimits(limits.NewMailboxLimits(maxMessages, maxUID, imap.MaxUID)))
	}

	return options
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "uidlist")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".uidlist"
	}

	return filepath.Join(home, ".config", "uidlist")
}
