package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// devSecretKey signs tokens in DEV and TEST only.
const devSecretKey = "w9k3-nfe)ebu$+44=pp&uaxr2(q!x)#*d7(#lk4h^$ctqm7zza"

// ErrDevSecretKey is reported by Config.Check when a deployed environment relies on the built-in key.
var ErrDevSecretKey = errors.New("SECRET_KEY must be set outside DEV and TEST")

type (
	Config struct {
		AppName         string
		Build           string
		Env             string // DEV (local; default), TEST, QA, PROD
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string

		PasswordResetCodeTTL time.Duration

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Cache    CacheConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		TokenLifetime   time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine          string // postgres | memory
		Host            string
		Port            string
		Name            string
		User            string
		Password        string
		AdminUser       string
		AdminPassword   string
		DisableTLS      bool
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	CacheConfig struct {
		Backend       string // memory | redis
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration from the environment.
// Variables found in config/.env.<env> are loaded first when the file exists.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("app_name", "Jifunze")
	v.SetDefault("build", "develop")
	v.SetDefault("secret_key", devSecretKey)
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("password_reset_code_ttl", 10*time.Minute)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debug_host", ":4000")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.token_lifetime", time.Hour)
	v.SetDefault("server.disable_req_logs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "jifunze")
	v.SetDefault("database.user", "jifunze")
	v.SetDefault("database.password", "jifunze")
	v.SetDefault("database.admin_user", "")
	v.SetDefault("database.admin_password", "")
	v.SetDefault("database.disable_tls", true)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("debug", env == "DEV")
	if env == "TEST" {
		v.SetDefault("test_mode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		AppName:              v.GetString("app_name"),
		Build:                v.GetString("build"),
		Env:                  env,
		Debug:                v.GetBool("debug"),
		TestMode:             v.GetBool("test_mode"),
		SecretKey:            v.GetString("secret_key"),
		FrontendBaseURL:      v.GetString("frontend_base_url"),
		RollbarToken:         v.GetString("rollbar_token"),
		SendgridApiKey:       v.GetString("sendgrid_api_key"),
		PasswordResetCodeTTL: v.GetDuration("password_reset_code_ttl"),
		defaultFromEmail:     v.GetString("default_from_email"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debug_host"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			TokenLifetime:   v.GetDuration("server.token_lifetime"),
			DisableReqLogs:  v.GetBool("server.disable_req_logs"),
		},
		Database: DatabaseConfig{
			Engine:          v.GetString("database.engine"),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			Name:            v.GetString("database.name"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			AdminUser:       v.GetString("database.admin_user"),
			AdminPassword:   v.GetString("database.admin_password"),
			DisableTLS:      v.GetBool("database.disable_tls"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Cache: CacheConfig{
			Backend:       v.GetString("cache.backend"),
			RedisAddr:     v.GetString("cache.redis_addr"),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
		},
	}
}

// Check reports settings that must not reach a deployed environment.
func (c *Config) Check() error {
	switch c.Env {
	case "DEV", "TEST":
		return nil
	}
	if c.SecretKey == "" || c.SecretKey == devSecretKey {
		return ErrDevSecretKey
	}
	return nil
}

// NewTestConfig returns the configuration used by test suites: no file or env lookups.
func NewTestConfig() *Config {
	return &Config{
		AppName:              "Jifunze",
		Env:                  "TEST",
		TestMode:             true,
		SecretKey:            "test-secret-key",
		FrontendBaseURL:      "http://localhost:3000",
		PasswordResetCodeTTL: 10 * time.Minute,
		defaultFromEmail:     "noreply@localhost",
		Server: ServerConfig{
			Host:           ":0",
			TokenLifetime:  time.Hour,
			DisableReqLogs: true,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Cache:    CacheConfig{Backend: "memory"},
	}
}
