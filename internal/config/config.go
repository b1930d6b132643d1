package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the process configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Argon2   Argon2Config
	Ledger   LedgerConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	EnsureSchema    bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// JWTConfig configures access tokens. An empty SecretKey disables
// authentication entirely: every protected request is rejected.
type JWTConfig struct {
	SecretKey     string
	Issuer        string
	Audience      string
	ExpiryMinutes int
}

func (c JWTConfig) Enabled() bool {
	return c.SecretKey != ""
}

func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

type LedgerConfig struct {
	// Store selects the backend: "postgres" or "memory".
	Store         string
	MaxLines      int
	ListPageSize  int
	CacheTTL      time.Duration
	ChartTemplate string
}

var envBindings = map[string]string{
	"server.addr":                "SERVER_ADDR",
	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"database.ensure_schema":     "DATABASE_ENSURE_SCHEMA",
	"redis.host":                 "REDIS_HOST",
	"redis.port":                 "REDIS_PORT",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"jwt.secret_key":             "JWT_SECRET_KEY",
	"jwt.issuer":                 "JWT_ISSUER",
	"jwt.audience":               "JWT_AUDIENCE",
	"jwt.expiry_minutes":         "JWT_EXPIRY_MINUTES",
	"argon2.time":                "ARGON2_TIME",
	"argon2.memory":              "ARGON2_MEMORY",
	"argon2.threads":             "ARGON2_THREADS",
	"argon2.key_length":          "ARGON2_KEY_LENGTH",
	"argon2.salt_length":         "ARGON2_SALT_LENGTH",
	"ledger.store":               "LEDGER_STORE",
	"ledger.max_lines":           "LEDGER_MAX_LINES",
	"ledger.list_page_size":      "LEDGER_LIST_PAGE_SIZE",
	"ledger.cache_ttl":           "LEDGER_CACHE_TTL",
	"ledger.chart_template":      "LEDGER_CHART_TEMPLATE",
	"server.shutdown_timeout":    "SERVER_SHUTDOWN_TIMEOUT",
	"server.request_timeout":     "SERVER_REQUEST_TIMEOUT",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "bookkeeping")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Minute*5)
	v.SetDefault("database.ensure_schema", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.issuer", "bookkeeping-api")
	v.SetDefault("jwt.audience", "bookkeeping-clients")
	v.SetDefault("jwt.expiry_minutes", 60)

	v.SetDefault("argon2.time", 1)
	v.SetDefault("argon2.memory", 64*1024)
	v.SetDefault("argon2.threads", 4)
	v.SetDefault("argon2.key_length", 32)
	v.SetDefault("argon2.salt_length", 16)

	v.SetDefault("ledger.store", "postgres")
	v.SetDefault("ledger.max_lines", 1000)
	v.SetDefault("ledger.list_page_size", 100)
	v.SetDefault("ledger.cache_ttl", 10*time.Minute)
	v.SetDefault("ledger.chart_template", "")
}

// RegisterFlags declares the command line overrides.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml, json or toml)")
	fs.String("addr", "", "listen address, overrides server.addr")
	fs.String("store", "", "ledger store backend: postgres or memory")
	fs.String("chart-template", "", "YAML chart of accounts applied to new companies")
}

// Load reads .env, environment variables, an optional config file and the
// parsed flags, in increasing order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Get().WithError(err).Debug("No .env file loaded")
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
		bindFlag(v, fs, "server.addr", "addr")
		bindFlag(v, fs, "ledger.store", "store")
		bindFlag(v, fs, "ledger.chart_template", "chart-template")
	}

	return FromViper(v), nil
}

func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) {
	if f := fs.Lookup(name); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			EnsureSchema:    v.GetBool("database.ensure_schema"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			SecretKey:     v.GetString("jwt.secret_key"),
			Issuer:        v.GetString("jwt.issuer"),
			Audience:      v.GetString("jwt.audience"),
			ExpiryMinutes: v.GetInt("jwt.expiry_minutes"),
		},
		Argon2: Argon2Config{
			Time:       v.GetUint32("argon2.time"),
			Memory:     v.GetUint32("argon2.memory"),
			Threads:    uint8(v.GetUint("argon2.threads")),
			KeyLength:  v.GetUint32("argon2.key_length"),
			SaltLength: v.GetInt("argon2.salt_length"),
		},
		Ledger: LedgerConfig{
			Store:         strings.ToLower(v.GetString("ledger.store")),
			MaxLines:      v.GetInt("ledger.max_lines"),
			ListPageSize:  v.GetInt("ledger.list_page_size"),
			CacheTTL:      v.GetDuration("ledger.cache_ttl"),
			ChartTemplate: v.GetString("ledger.chart_template"),
		},
	}
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	return FromViper(v)
}
