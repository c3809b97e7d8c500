package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf holds the app-wide configuration. It is loaded once at import time
// from defaults, an optional config/.env.<env> file and the environment.
var Conf *Config

type (
	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		AppName  string
		Build    string

		SecretKey       string
		FrontendBaseURL string
		DefaultFromName string
		DefaultFromAddr string
		SendgridApiKey  string
		RollbarToken    string
		WorkDir         string

		PasswordResetTimeoutDelta     time.Duration
		EmailVerificationTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Bootstrap BootstrapConfig
	}

	ServerConfig struct {
		Host                      string
		Addr                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	// BootstrapConfig describes the break-glass administrator identity: one
	// allow-listed email address that is always treated as an approved admin,
	// and the fallback password used by the account recovery operation.
	BootstrapConfig struct {
		AdminEmail            string
		AdminFallbackPassword string
	}
)

func (dc DatabaseConfig) Address() string { return dc.Host + ":" + dc.Port }

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

func init() {
	Conf = loadConfig()
}

func loadConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "YSCIP")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "f8e0(k&+1m$pxz!a7#yn5s)2l*dq9_ju4cv^rw6hb3%tg@o0ie")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "YSCIP")
	v.SetDefault("defaultFromAddr", "noreply@localhost")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("emailVerificationTimeoutDelta", 7*24*time.Hour)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "yscip")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisDB", 0)
	v.SetDefault("bootstrapAdminEmail", "gitedu@bk.ru")
	v.SetDefault("bootstrapAdminPassword", "Gitedu2024!")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromName: v.GetString("defaultFromName"),
		DefaultFromAddr: v.GetString("defaultFromAddr"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		WorkDir:         wd,

		PasswordResetTimeoutDelta:     v.GetDuration("passwordResetTimeoutDelta"),
		EmailVerificationTimeoutDelta: v.GetDuration("emailVerificationTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Name:          v.GetString("dbName"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redisAddr"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:            CleanString(v.GetString("bootstrapAdminEmail"), true /* lower */),
			AdminFallbackPassword: v.GetString("bootstrapAdminPassword"),
		},
	}
}
