package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yeremiapane/gaming-portal/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port          string
	GinMode       string
	LogLevel      string
	AllowedOrigin string

	DBDriver string
	DBDSN    string

	JWTSecret      string
	StaffJWTSecret string

	RedisAddr string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	PushGatewayURL string
	UploadDir      string

	Reminders ReminderConfig
}

// ReminderConfig holds the sweep cadence. Each dedup window equals the
// interval of the sweep that owns it.
type ReminderConfig struct {
	OverdueInterval   time.Duration
	DueSoonInterval   time.Duration
	DueSoonLookahead  time.Duration
	RecurringInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:5500")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("STAFF_JWT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@portal.local")
	v.SetDefault("PUSH_GATEWAY_URL", "")
	v.SetDefault("UPLOAD_DIR", "public/uploads")
	v.SetDefault("OVERDUE_SWEEP_INTERVAL", time.Hour)
	v.SetDefault("DUE_SOON_SWEEP_INTERVAL", 6*time.Hour)
	v.SetDefault("DUE_SOON_LOOKAHEAD", 24*time.Hour)
	v.SetDefault("RECURRING_OVERDUE_INTERVAL", 24*time.Hour)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		utils.ErrorLogger.Warnf("Could not load .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("PORT"),
		GinMode:        v.GetString("GIN_MODE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		AllowedOrigin:  v.GetString("ALLOWED_ORIGIN"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:          v.GetString("DB_DSN"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		StaffJWTSecret: v.GetString("STAFF_JWT_SECRET"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		SMTPHost:       v.GetString("SMTP_HOST"),
		SMTPPort:       v.GetInt("SMTP_PORT"),
		SMTPUsername:   v.GetString("SMTP_USERNAME"),
		SMTPPassword:   v.GetString("SMTP_PASSWORD"),
		SMTPFrom:       v.GetString("SMTP_FROM"),
		PushGatewayURL: v.GetString("PUSH_GATEWAY_URL"),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		Reminders: ReminderConfig{
			OverdueInterval:   v.GetDuration("OVERDUE_SWEEP_INTERVAL"),
			DueSoonInterval:   v.GetDuration("DUE_SOON_SWEEP_INTERVAL"),
			DueSoonLookahead:  v.GetDuration("DUE_SOON_LOOKAHEAD"),
			RecurringInterval: v.GetDuration("RECURRING_OVERDUE_INTERVAL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if c.StaffJWTSecret == "" {
		return fmt.Errorf("STAFF_JWT_SECRET is not set")
	}
	if c.StaffJWTSecret == c.JWTSecret {
		return fmt.Errorf("STAFF_JWT_SECRET must differ from JWT_SECRET")
	}
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is not set")
	}
	r := c.Reminders
	if r.OverdueInterval <= 0 || r.DueSoonInterval <= 0 || r.DueSoonLookahead <= 0 || r.RecurringInterval <= 0 {
		return fmt.Errorf("reminder intervals must be positive")
	}
	return nil
}

// InitDB opens the configured gorm dialect.
func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		dialector = mysql.Open(cfg.DBDSN)
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.GinMode == "release" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	utils.InfoLogger.Printf("Connected to %s database", cfg.DBDriver)
	return db, nil
}
