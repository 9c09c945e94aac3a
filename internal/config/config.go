package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/validator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration is the root config tree, loaded from config.yaml plus
// FLEXPRICE_-prefixed environment overrides.
type Configuration struct {
	Deployment    DeploymentConfig    `validate:"required"`
	Server        ServerConfig        `validate:"required"`
	Logging       LoggingConfig       `validate:"required"`
	Postgres      PostgresConfig      `validate:"required"`
	Reservation   ReservationConfig   `validate:"required"`
	Reconciliation ReconciliationConfig `validate:"required"`
	Stripe        StripeConfig        `validate:"omitempty"`
	Webhook       WebhookConfig       `validate:"omitempty"`
	Email         EmailConfig         `validate:"omitempty"`
	Identity      IdentityConfig      `validate:"omitempty"`
	Jobs          JobsConfig          `validate:"omitempty"`
	SMTP          SMTPConfig          `validate:"omitempty"`
}

// IdentityConfig points at the external identity service this core reads
// through identity.HTTPProvider.
type IdentityConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// JobsConfig points at the external generation-job service this core
// reads/writes through jobs.HTTPProvider.
type JobsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// SMTPConfig configures the outbox's transactional-email transport.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port" default:"587"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" default:"billing@example.com"`
}

// EmailConfig governs the outbox's admin-alert recipient.
type EmailConfig struct {
	AdminAlertAddress string `mapstructure:"admin_alert_address" default:"ops@example.com"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password" validate:"required"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
	AutoMigrate            bool   `mapstructure:"auto_migrate" default:"false"`
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User, c.Password, c.DBName, c.Host, c.Port, c.SSLMode,
	)
}

// ReservationConfig governs the hold manager.
type ReservationConfig struct {
	HoldTTL time.Duration `mapstructure:"hold_ttl" validate:"required" default:"20m"`
}

// ReconciliationConfig governs the sweep.
type ReconciliationConfig struct {
	StaleHoldThreshold   time.Duration `mapstructure:"stale_hold_threshold" validate:"required" default:"30m"`
	MaxFixesPerCategory  int           `mapstructure:"max_fixes_per_category" validate:"required" default:"100"`
	PSPLookbackDays      int           `mapstructure:"psp_lookback_days" validate:"required" default:"30"`
}

// StripeConfig holds the PSP credentials.
type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	RedirectURLBase string `mapstructure:"redirect_url_base"`
	WebhookURLBase  string `mapstructure:"webhook_url_base"`
}

type WebhookConfig struct {
	Provider string `mapstructure:"provider" default:"stripe"`
}

// NewConfig loads config.yaml (if present) then FLEXPRICE_-prefixed env
// vars.
func NewConfig() (*Configuration, error) {
	v := viper.New()

	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("FLEXPRICE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if cfg.Reservation.HoldTTL == 0 {
		cfg.Reservation.HoldTTL = 20 * time.Minute
	}
	if cfg.Reconciliation.StaleHoldThreshold == 0 {
		cfg.Reconciliation.StaleHoldThreshold = 30 * time.Minute
	}
	if cfg.Reconciliation.MaxFixesPerCategory == 0 {
		cfg.Reconciliation.MaxFixesPerCategory = 100
	}
	if cfg.Reconciliation.PSPLookbackDays == 0 {
		cfg.Reconciliation.PSPLookbackDays = 30
	}
	if cfg.Email.AdminAlertAddress == "" {
		cfg.Email.AdminAlertAddress = "ops@example.com"
	}
	if cfg.SMTP.Port == "" {
		cfg.SMTP.Port = "587"
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = "billing@example.com"
	}

	return &cfg, nil
}

func (c Configuration) Validate() error {
	return validator.ValidateRequest(c)
}

// GetDefaultConfig returns sane local-dev defaults, used by scripts and
// tests that don't go through NewConfig.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment:  DeploymentConfig{Mode: types.ModeLocal},
		Logging:     LoggingConfig{Level: types.LogLevelDebug},
		Server:      ServerConfig{Address: ":8080"},
		Reservation: ReservationConfig{HoldTTL: 20 * time.Minute},
		Reconciliation: ReconciliationConfig{
			StaleHoldThreshold:  30 * time.Minute,
			MaxFixesPerCategory: 100,
			PSPLookbackDays:     30,
		},
		Email: EmailConfig{AdminAlertAddress: "ops@example.com"},
		SMTP:  SMTPConfig{Port: "587", From: "billing@example.com"},
	}
}
