// Package config loads accountsctl settings from defaults, an optional
// accounts.yaml, .env files and ACCOUNTS_ prefixed environment variables.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ACCOUNTS"

type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Redis    RedisConfig    `mapstructure:"redis" json:"redis"`
	Mail     MailConfig     `mapstructure:"mail" json:"mail"`
	Tokens   TokensConfig   `mapstructure:"tokens" json:"tokens"`
	Security SecurityConfig `mapstructure:"security" json:"security"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" json:"-"`
}

// RedisConfig enables the redis token store when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type MailConfig struct {
	Provider string        `mapstructure:"provider" json:"provider"`
	From     string        `mapstructure:"from" json:"from"`
	BaseURL  string        `mapstructure:"base_url" json:"base_url"`
	Async    bool          `mapstructure:"async" json:"async"`
	Mailgun  MailgunConfig `mapstructure:"mailgun" json:"mailgun"`
	SMTP     SMTPConfig    `mapstructure:"smtp" json:"smtp"`
}

type MailgunConfig struct {
	Domain  string `mapstructure:"domain" json:"domain"`
	APIKey  string `mapstructure:"api_key" json:"-"`
	APIBase string `mapstructure:"api_base" json:"api_base"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"-"`
}

type TokensConfig struct {
	RegistrationTTL  time.Duration `mapstructure:"registration_ttl" json:"registration_ttl"`
	PasswordResetTTL time.Duration `mapstructure:"password_reset_ttl" json:"password_reset_ttl"`
	EmailChangeTTL   time.Duration `mapstructure:"email_change_ttl" json:"email_change_ttl"`
	UnblockTTL       time.Duration `mapstructure:"unblock_ttl" json:"unblock_ttl"`
}

type SecurityConfig struct {
	BcryptCost         int           `mapstructure:"bcrypt_cost" json:"bcrypt_cost"`
	PasswordComplexity bool          `mapstructure:"password_complexity" json:"password_complexity"`
	HashedIDs          bool          `mapstructure:"hashed_ids" json:"hashed_ids"`
	UnblockOnLockout   bool          `mapstructure:"unblock_on_lockout" json:"unblock_on_lockout"`
	OperationTimeout   time.Duration `mapstructure:"operation_timeout" json:"operation_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts" json:"retry_attempts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

var defaults = map[string]any{
	"database.driver":              "sqlite",
	"database.dsn":                 "file:accounts.db?cache=shared",
	"redis.addr":                   "",
	"redis.password":               "",
	"redis.db":                     0,
	"redis.prefix":                 "accounts:token:",
	"mail.provider":                "log",
	"mail.from":                    "no-reply@example.com",
	"mail.base_url":                "",
	"mail.async":                   false,
	"mail.mailgun.domain":          "",
	"mail.mailgun.api_key":         "",
	"mail.mailgun.api_base":        "",
	"mail.smtp.host":               "localhost",
	"mail.smtp.port":               25,
	"mail.smtp.username":           "",
	"mail.smtp.password":           "",
	"tokens.registration_ttl":      "24h",
	"tokens.password_reset_ttl":    "1h",
	"tokens.email_change_ttl":      "24h",
	"tokens.unblock_ttl":           "24h",
	"security.bcrypt_cost":         0,
	"security.password_complexity": true,
	"security.hashed_ids":          false,
	"security.unblock_on_lockout":  true,
	"security.operation_timeout":   "10s",
	"security.retry_attempts":      3,
	"log.level":                    "info",
	"log.pretty":                   true,
}

// Options tells Load where to look.
type Options struct {
	// ConfigFile is an explicit path; when empty accounts.yaml is searched in
	// the working directory and /etc/accounts.
	ConfigFile string
	// EnvFiles are loaded with godotenv before reading the environment.
	// Missing files are ignored. Defaults to .env.
	EnvFiles []string
}

// Load resolves the configuration and validates it.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load env file "+file)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("accounts")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/accounts/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.Database),
			validation.Field(&c.Mail),
			validation.Field(&c.Tokens),
			validation.Field(&c.Security),
			validation.Field(&c.Log),
		)
	}, "invalid configuration"); err != nil {
		return err
	}
	return nil
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "postgres", "memory")),
		validation.Field(&d.DSN, validation.When(d.Driver != "memory", validation.Required)),
	)
}

func (m MailConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Provider, validation.Required, validation.In("log", "mailgun", "smtp")),
		validation.Field(&m.From, validation.Required, is.EmailFormat),
		validation.Field(&m.BaseURL, is.URL),
		validation.Field(&m.Mailgun, validation.Skip.When(m.Provider != "mailgun")),
		validation.Field(&m.SMTP, validation.Skip.When(m.Provider != "smtp")),
	)
}

func (m MailgunConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Domain, validation.Required, is.Domain),
		validation.Field(&m.APIKey, validation.Required),
		validation.Field(&m.APIBase, is.URL),
	)
}

func (s SMTPConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Host, validation.Required),
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func (t TokensConfig) Validate() error {
	positive := validation.Min(time.Second)
	return validation.ValidateStruct(&t,
		validation.Field(&t.RegistrationTTL, validation.Required, positive),
		validation.Field(&t.PasswordResetTTL, validation.Required, positive),
		validation.Field(&t.EmailChangeTTL, validation.Required, positive),
		validation.Field(&t.UnblockTTL, validation.Required, positive),
	)
}

func (s SecurityConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.BcryptCost, validation.When(s.BcryptCost != 0, validation.Min(4), validation.Max(31))),
		validation.Field(&s.OperationTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&s.RetryAttempts, validation.Min(1)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error")),
	)
}
