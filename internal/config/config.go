package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	APIURL    string        `env:"CRM_API_URL,    default=http://localhost:8080/api"`
	Timeout   time.Duration `env:"CRM_TIMEOUT,    default=30s"`
	LogLevel  string        `env:"CRM_LOG_LEVEL,  default=info"`
	Format    string        `env:"CRM_FORMAT,     default=json"`
	ConfigDir string        `env:"CRM_CONFIG_DIR"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom is Load without the .env step, reading from l. Tests use envconfig.MapLookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return errors.New("config: CRM_API_URL is empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: CRM_API_URL must be an absolute URL: %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: CRM_TIMEOUT must be positive: %s", c.Timeout)
	}
	return nil
}

// Dir is where the credential db and the TUI log live.
func (c *Config) Dir() (string, error) {
	if v := strings.TrimSpace(c.ConfigDir); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".crm"), nil
}

func (c *Config) LogPath() (string, error) {
	dir, err := c.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "crm.log"), nil
}
