package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	AppPort string

	DBDriver   string
	MySQLHost  string
	MySQLPort  string
	MySQLDB    string
	MySQLUser  string
	MySQLPass  string
	SQLitePath string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	FineDailyRate decimal.Decimal

	TxMaxAttempts int
	TxBaseDelay   time.Duration

	NotifyStream    string
	NotifyQueueSize int
	OverdueCron     string

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  string
	LogFormat string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// Load reads the environment, after merging an optional .env file (existing variables win).
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:    getenv("APP_PORT", "8080"),
		DBDriver:   getenv("DB_DRIVER", DriverMySQL),
		MySQLHost:  getenv("MYSQL_HOST", "mysql"),
		MySQLPort:  getenv("MYSQL_PORT", "3306"),
		MySQLDB:    getenv("MYSQL_DB", "library"),
		MySQLUser:  getenv("MYSQL_USER", "library"),
		MySQLPass:  getenv("MYSQL_PASS", "library"),
		SQLitePath: getenv("SQLITE_PATH", "library.db"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		FineDailyRate: decimal.NewFromInt(1),

		TxMaxAttempts: getenvInt("TX_MAX_ATTEMPTS", 5),
		TxBaseDelay:   time.Duration(getenvInt("TX_BASE_DELAY_MS", 10)) * time.Millisecond,

		NotifyStream:    getenv("NOTIFY_STREAM", "library:notifications"),
		NotifyQueueSize: getenvInt("NOTIFY_QUEUE_SIZE", 256),
		OverdueCron:     getenv("OVERDUE_CRON", "@hourly"),

		RateLimitRPS:   10,
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 20),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}
	if v := os.Getenv("FINE_DAILY_RATE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			c.FineDailyRate = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimitRPS = f
		}
	}
	return c
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.FineDailyRate.IsNegative() {
		return errors.New("FINE_DAILY_RATE must not be negative")
	}
	if c.TxMaxAttempts <= 0 {
		return errors.New("TX_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME; loc=UTC keeps due dates comparable
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempTTLSecs) * time.Second
}
