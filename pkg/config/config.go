package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// DefaultConfigPath is read when no -config flag is given. A missing file is
// not an error; environment variables and defaults are used instead.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-ingest.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis report cache (optional - disabled when host is empty)
	Redis RedisConfig `yaml:"redis"`

	// Ingest controls how the five input files are located and parsed.
	Ingest IngestConfig `yaml:"ingest"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ecommerce"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// ConnectRetries bounds startup connection attempts while the database comes up.
	ConnectRetries int `yaml:"connect_retries" env:"PGCONNECT_RETRIES" env-default:"5"`
}

// RedisConfig holds the optional report cache settings.
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"1h"`
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// IngestConfig locates the input files and configures the record parser.
type IngestConfig struct {
	// Delimiter separates fields. The public dataset ships with ';'.
	Delimiter string `yaml:"delimiter" env:"INGEST_DELIMITER" env-default:";"`
	// DataDir is prepended to relative file names.
	DataDir string `yaml:"data_dir" env:"INGEST_DATA_DIR" env-default:"data"`
	// MaxRejections caps the rejection reasons kept per entity kind.
	MaxRejections int `yaml:"max_rejections" env:"INGEST_MAX_REJECTIONS" env-default:"1000"`

	Files IngestFiles `yaml:"files"`
}

// IngestFiles names the input file of each entity kind.
type IngestFiles struct {
	Customers     string `yaml:"customers" env:"INGEST_CUSTOMERS_FILE" env-default:"olist_customers_dataset.csv"`
	Products      string `yaml:"products" env:"INGEST_PRODUCTS_FILE" env-default:"olist_products_dataset.csv"`
	Orders        string `yaml:"orders" env:"INGEST_ORDERS_FILE" env-default:"olist_orders_dataset.csv"`
	OrderPayments string `yaml:"order_payments" env:"INGEST_ORDER_PAYMENTS_FILE" env-default:"olist_order_payments_dataset.csv"`
	OrderItems    string `yaml:"order_items" env:"INGEST_ORDER_ITEMS_FILE" env-default:"olist_order_items_dataset.csv"`
}

// Load reads configuration from the YAML file at path with environment variable
// overrides. When the file does not exist only the environment is read.
// The version parameter is injected at build time and set on the returned Config.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Ingest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest configuration: %w", err)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	return cfg, nil
}

// Validate checks the delimiter and rejection cap.
func (c *IngestConfig) Validate() error {
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	if c.MaxRejections < 0 {
		return fmt.Errorf("max_rejections must not be negative, got %d", c.MaxRejections)
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a single rune.
// Quotes and line breaks cannot be used as delimiters.
func (c *IngestConfig) DelimiterRune() (rune, error) {
	return ParseDelimiter(c.Delimiter)
}

// ParseDelimiter converts a delimiter setting into a rune. The literal
// strings "\t" and "tab" select a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// Sources maps every entity kind to its input path. Relative names are
// resolved against dir, or DataDir when dir is empty.
func (c *IngestConfig) Sources(dir string) map[models.EntityKind]string {
	if dir == "" {
		dir = c.DataDir
	}
	resolve := func(name string) string {
		name = strings.TrimSpace(name)
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(dir, name)
	}
	return map[models.EntityKind]string{
		models.EntityCustomer:     resolve(c.Files.Customers),
		models.EntityProduct:      resolve(c.Files.Products),
		models.EntityOrder:        resolve(c.Files.Orders),
		models.EntityOrderPayment: resolve(c.Files.OrderPayments),
		models.EntityOrderItem:    resolve(c.Files.OrderItems),
	}
}

// URL returns the connection settings in URL form, as required by
// golang-migrate and database/sql.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
