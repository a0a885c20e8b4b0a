package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,     default=8080"`
	Env      string `env:"ENV,      default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth      AuthConfig
	Keys      KeyConfig
	Catalog   ServiceConfig `env:", prefix=CATALOG_"`
	Storage   ServiceConfig `env:", prefix=STORAGE_"`
	Connector ConnectorConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	SuperUser SuperUserConfig
}

type AuthConfig struct {
	// SessionTTLSeconds bounds the lifetime of the session cookie pair.
	SessionTTLSeconds int `env:"SESSION_TTL_S,  default=600"`
	// ServiceTTLSeconds bounds the lifetime of forged service credentials.
	ServiceTTLSeconds int    `env:"SERVICE_TTL_S, default=60"`
	ConsoleCookieName string `env:"CONSOLE_COOKIE, default=consoleToken"`
	FrontCookieName   string `env:"FRONT_COOKIE,   default=frontToken"`
	// CookieDomain pins the cookies to the public back-end domain.
	CookieDomain string `env:"COOKIE_DOMAIN"`
	// DefaultClientGroup is sent with storage token delegation requests.
	DefaultClientGroup string `env:"DEFAULT_CLIENT_GROUP"`
}

type KeyConfig struct {
	CatalogKeyPath string `env:"CATALOG_KEY_PATH"`
	StorageKeyPath string `env:"STORAGE_KEY_PATH"`
	DefaultKeyPath string `env:"DEFAULT_KEY_PATH"`
	// TrustedKeyDir holds one public key per authorized external admin
	// caller. Empty disables the key-based admin channel.
	TrustedKeyDir string `env:"TRUSTED_KEY_DIR"`
}

type ServiceConfig struct {
	URL       string `env:"URL"`
	ProbePath string `env:"PROBE_PATH, default=/api/admin/check/node/url"`
	ClientID  string `env:"CLIENT_ID"`
}

type ConnectorConfig struct {
	Attempts       int `env:"CONNECT_ATTEMPTS,  default=20"`
	BackoffSeconds int `env:"CONNECT_BACKOFF_S, default=1"`
	// TrustedDomains is the allowlist for self-reported downstream URLs.
	// Empty disables the check.
	TrustedDomains []string `env:"TRUSTED_DOMAINS"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=node_manager"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// SuperUserConfig overrides the built-in super-user credentials at
// startup. When Password is set the stored id-0 account is overwritten.
type SuperUserConfig struct {
	Username string `env:"SU_USERNAME, default=node-admin"`
	Email    string `env:"SU_EMAIL"`
	Password string `env:"SU_PASSWORD"`
}

// IsProduction reports whether cookies must be secure and CSP strict.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
