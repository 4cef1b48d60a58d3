package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config is the API server configuration. Values come from CANTEEN_-prefixed
// environment variables, flags, or a YAML file.
type Config struct {
	Addr        string         `yaml:"addr" default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string         `yaml:"database_url" usage:"PostgreSQL connection URL (CANTEEN_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Timezone    string         `yaml:"timezone" default:"Local" usage:"IANA zone that decides which day is today"`
	Database    DatabaseConfig `yaml:"database"`
	CORS        CORSConfig     `yaml:"cors"`
	Graceful    GracefulConfig `yaml:"graceful"`
}

// DatabaseConfig tunes the connection pool.
type DatabaseConfig struct {
	MaxConns int32 `yaml:"max_conns" default:"0" usage:"Maximum pool connections, 0 keeps the pgxpool default" flag:"db-max-conns"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads the configuration and applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "CANTEEN",
		Files:     []string{"config.yaml", "/etc/canteen/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CANTEEN_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	return loc, nil
}

// applyPlatformDefaults honours the DATABASE_URL and PORT variables set by
// hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
