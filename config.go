package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port        string         `mapstructure:"port"`
	Database    DatabaseConfig `mapstructure:"database"`
	CORSOrigins []string       `mapstructure:"cors_origins"`
	AMQP        AMQPConfig     `mapstructure:"amqp"`
	Timezone    string         `mapstructure:"timezone"`
	BcryptCost  int            `mapstructure:"bcrypt_cost"`
	Migrate     bool           `mapstructure:"migrate"`
	Log         LogConfig      `mapstructure:"log"`
	OTel        OTelConfig     `mapstructure:"otel"`

	location *time.Location
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Verbose bool   `mapstructure:"verbose"`
	Pretty  bool   `mapstructure:"pretty"`
}

type OTelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

// ConnString returns database.url when set, otherwise a postgres URL built
// from the individual PG* settings.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

var envBindings = map[string]string{
	"port":               "PORT",
	"database.url":       "DATABASE_URL",
	"database.host":      "PGHOST",
	"database.port":      "PGPORT",
	"database.name":      "PGDATABASE",
	"database.user":      "PGUSER",
	"database.password":  "PGPASSWORD",
	"database.sslmode":   "PGSSLMODE",
	"database.max_conns": "PG_MAX_CONNS",
	"cors_origins":       "CORS_ORIGINS",
	"amqp.url":           "AMQP_URL",
	"amqp.queue":         "AMQP_QUEUE",
	"timezone":           "TIMEZONE",
	"bcrypt_cost":        "BCRYPT_COST",
	"migrate":            "MIGRATE",
	"log.level":          "LOG_LEVEL",
	"otel.endpoint":      "OTEL_GRPC_ENDPOINT",
	"otel.insecure":      "OTEL_INSECURE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5000")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("amqp.queue", "transactions_queue")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads, in increasing priority: defaults, an optional config
// file, the environment (a .env file is loaded first when present) and
// command line flags.
func LoadConfig(args []string) (*Config, error) {
	_ = godotenv.Load() // ok if missing

	fs := pflag.NewFlagSet("finance-api", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Config file (yaml, toml or json)")
	fs.StringP("port", "p", "", "Listen port")
	fs.BoolP("verbose", "v", false, "Verbose logging")
	fs.Bool("pretty", false, "Human readable console logs")
	fs.Bool("migrate", false, "Apply the schema before serving")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	v.BindPFlag("port", fs.Lookup("port"))
	v.BindPFlag("log.verbose", fs.Lookup("verbose"))
	v.BindPFlag("log.pretty", fs.Lookup("pretty"))
	v.BindPFlag("migrate", fs.Lookup("migrate"))

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}
