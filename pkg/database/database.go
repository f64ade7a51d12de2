package database

import (
	"fmt"
	"strings"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
	"mailmirror-backend/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewPostgresConnection opens the mailbox store and configures the pool.
func NewPostgresConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("database host, user and name are required")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	return db, nil
}

// Migrate creates or updates every mailbox store table.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&emaildomain.Email{}, "Labels", &emaildomain.EmailLabel{}); err != nil {
		return fmt.Errorf("setup email_labels: %w", err)
	}
	return db.AutoMigrate(
		&authdomain.User{},
		&authdomain.GoogleCredential{},
		&emaildomain.Email{},
		&emaildomain.Draft{},
		&emaildomain.Label{},
		&emaildomain.EmailLabel{},
		&emaildomain.SpamEmail{},
		&emaildomain.SentEmail{},
		&emaildomain.TrashEmail{},
		&syncdomain.SyncRun{},
	)
}

func logLevel(level string) gormlogger.LogLevel {
	switch strings.ToUpper(level) {
	case "SILENT":
		return gormlogger.Silent
	case "ERROR":
		return gormlogger.Error
	case "INFO":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
