// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the tip bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format   string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	File     string `mapstructure:"file"`
	MaxSize  int    `mapstructure:"max_size"`
	MaxAge   int    `mapstructure:"max_age"`
	Backups  int    `mapstructure:"backups"`
	Compress bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LedgerConfig struct {
	// StartingBalance is credited once per account at first contact, in minor
	// units (9000 = 90.00). Zero selects the external-balance variant.
	StartingBalance int64 `mapstructure:"starting_balance" validate:"gte=0"`
	HistoryLimit    int   `mapstructure:"history_limit" validate:"gte=0"`
}

type OracleConfig struct {
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Decimals is the number of fraction digits of the chain's native unit.
	Decimals int `mapstructure:"decimals" validate:"gte=0,lte=30"`
}

type ReconcileConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SweepCron string `mapstructure:"sweep_cron" validate:"required_if=Enabled true"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// PerUser is the number of commands one user may issue per Window.
	PerUser int           `mapstructure:"per_user" validate:"required_if=Enabled true,gte=0"`
	Window  time.Duration `mapstructure:"window" validate:"required_if=Enabled true"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DSN returns the PostgreSQL connection string based on config values.
func (c *Config) DSN() string {
	sslmode := c.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslmode,
	)
}
