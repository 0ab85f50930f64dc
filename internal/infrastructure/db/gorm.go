package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library-backend/internal/config"
	"library-backend/internal/domain/book"
	"library-backend/internal/domain/loan"
	"library-backend/internal/domain/user"
)

// Dialector picks the gorm driver for the configured database.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return mysql.Open(cfg.MySQLDSN()), nil
	case config.DriverSQLite:
		// busy_timeout lets concurrent writers wait for the file lock instead of failing at once
		return sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000&_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func OpenGorm(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	dial, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLogger(log)}
	if cfg.DBDriver == config.DriverSQLite {
		// a single writer connection keeps SQLite transactions strictly serial
		opts = append(opts, WithMaxOpenConns(1))
	}
	gdb, err := OpenGormWithDialector(dial, opts...)
	if err != nil {
		return nil, err
	}
	log.WithField("driver", cfg.DBDriver).Info("gorm: connected")
	return gdb, nil
}

type options struct {
	log          *logrus.Logger
	maxOpenConns int
}

type Option func(*options)

// WithLogger routes gorm's warnings and slow-query reports through logrus.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

func OpenGormWithDialector(dial gorm.Dialector, opts ...Option) (*gorm.DB, error) {
	o := &options{maxOpenConns: 30}
	for _, fn := range opts {
		fn(o)
	}

	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	if o.log != nil {
		cfg.Logger = logger.New(o.log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables the lending core reads and writes.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&book.Book{}, &user.User{}, &loan.Loan{})
}
