package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// VaultConfig holds settings for the credential vault.
type VaultConfig struct {
	// DatabasePath is the SQLite file holding account records.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// MinMasterSecretLen, when non-zero, rejects master secrets shorter
	// than this many bytes at key-derivation time.
	MinMasterSecretLen int `mapstructure:"min_master_secret_len" yaml:"min_master_secret_len"`

	// RememberMasterSecret enables caching the master secret in the OS
	// keyring so interactive commands do not re-prompt for it.
	RememberMasterSecret bool `mapstructure:"remember_master_secret" yaml:"remember_master_secret"`
}

// MailConfig holds transport defaults.
type MailConfig struct {
	// Mailbox is the IMAP mailbox retrieved by default.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// FetchConcurrency bounds the number of parallel per-message fetches
	// within one retrieve.
	FetchConcurrency int `mapstructure:"fetch_concurrency" yaml:"fetch_concurrency"`
}

// OverlayConfig holds settings for the body encryption overlay.
type OverlayConfig struct {
	// KeyDir is the directory holding armored OpenPGP key files, one
	// pair per identity.
	KeyDir string `mapstructure:"key_dir" yaml:"key_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Vault   VaultConfig   `mapstructure:"vault" yaml:"vault"`
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	Overlay OverlayConfig `mapstructure:"overlay" yaml:"overlay"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailvault/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailvault", "config.yaml")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailvault")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := defaultConfigDir()
	return &AppConfig{
		Vault: VaultConfig{
			DatabasePath: filepath.Join(dir, "accounts.db"),
		},
		Mail: MailConfig{
			Mailbox:          "INBOX",
			FetchConcurrency: 4,
		},
		Overlay: OverlayConfig{
			KeyDir: filepath.Join(dir, "keys"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	dir := defaultConfigDir()
	v.SetDefault("vault.database_path", filepath.Join(dir, "accounts.db"))
	v.SetDefault("vault.min_master_secret_len", 0)
	v.SetDefault("vault.remember_master_secret", false)
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.fetch_concurrency", 4)
	v.SetDefault("overlay.key_dir", filepath.Join(dir, "keys"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Mail.FetchConcurrency < 1 {
		cfg.Mail.FetchConcurrency = 4
	}
	if cfg.Mail.Mailbox == "" {
		cfg.Mail.Mailbox = "INBOX"
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("vault", cfg.Vault)
	v.Set("mail", cfg.Mail)
	v.Set("overlay", cfg.Overlay)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
