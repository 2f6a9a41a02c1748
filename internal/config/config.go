package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"nodebase/backend/pkg/models"
)

// EnvPrefix prefixes every environment override, e.g. NODEBASE_DB_HOST.
const EnvPrefix = "NODEBASE"

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr           string        `mapstructure:"addr"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
		WriteTimeout   time.Duration `mapstructure:"write_timeout"`
		IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	} `mapstructure:"server"`
	DB struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		User        string `mapstructure:"user"`
		Password    string `mapstructure:"password"`
		Name        string `mapstructure:"name"`
		SSLMode     string `mapstructure:"sslmode"`
		MaxConns    int32  `mapstructure:"max_conns"`
		MinConns    int32  `mapstructure:"min_conns"`
		AutoMigrate bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"db"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
		DefaultTier     string `mapstructure:"default_tier"`
		DevTier         string `mapstructure:"dev_tier"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool          `mapstructure:"enable"`
		CertFile  string        `mapstructure:"cert_file"`
		KeyFile   string        `mapstructure:"key_file"`
		Hostnames []string      `mapstructure:"hostnames"`
		ValidFor  time.Duration `mapstructure:"valid_for"`
	} `mapstructure:"tls"`
	Pagination Pagination `mapstructure:"pagination"`
	Log        struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// Pagination bounds the listing page size.
type Pagination struct {
	DefaultPage     int `mapstructure:"default_page"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	MinPageSize     int `mapstructure:"min_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "DEV")
}

// DSN returns the libpq-style connection string understood by pgxpool.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	p := c.Pagination
	if p.MinPageSize < 1 || p.MaxPageSize < p.MinPageSize {
		return fmt.Errorf("pagination: invalid page size bounds [%d, %d]", p.MinPageSize, p.MaxPageSize)
	}
	if p.DefaultPageSize < p.MinPageSize || p.DefaultPageSize > p.MaxPageSize {
		return fmt.Errorf("pagination: default page size %d outside [%d, %d]", p.DefaultPageSize, p.MinPageSize, p.MaxPageSize)
	}
	if p.DefaultPage < 1 {
		return fmt.Errorf("pagination: default page must be >= 1, got %d", p.DefaultPage)
	}
	if !models.Tier(c.Auth.DefaultTier).Valid() {
		return fmt.Errorf("auth: unknown default_tier %q", c.Auth.DefaultTier)
	}
	if !models.Tier(c.Auth.DevTier).Valid() {
		return fmt.Errorf("auth: unknown dev_tier %q", c.Auth.DevTier)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")
	v.SetDefault("dev_mode_bypass", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "nodebase")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("auth.okta_domain", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("auth.swagger_client_id", "")
	v.SetDefault("auth.default_tier", string(models.TierFree))
	v.SetDefault("auth.dev_tier", string(models.TierPremium))

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})
	v.SetDefault("tls.valid_for", 365*24*time.Hour)

	v.SetDefault("pagination.default_page", 1)
	v.SetDefault("pagination.default_page_size", 5)
	v.SetDefault("pagination.min_page_size", 1)
	v.SetDefault("pagination.max_page_size", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig loads the configuration from an optional .env file, a
// config.yaml and the environment, in increasing order of precedence.
func LoadConfig(envFile string) (*Config, error) {
	return Load(viper.New(), envFile)
}

// Load is LoadConfig on a caller-supplied viper instance, which lets the
// server command bind its flags before reading.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	setDefaults(v)
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	config.Auth.DefaultTier = strings.ToLower(config.Auth.DefaultTier)
	config.Auth.DevTier = strings.ToLower(config.Auth.DevTier)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact. This allows users to paste the full URL from the Okta admin
// console without worrying about double prefixes.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
