package db

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"library-backend/internal/config"
	"library-backend/internal/infrastructure/logger"
)

func TestOpenGormWithDialector_PingsMySQL(t *testing.T) {
	cases := []struct {
		name    string
		pingErr error
	}{
		{"ping ok", nil},
		{"ping fails", errors.New("no ping")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			if err != nil {
				t.Fatalf("sqlmock.New: %v", err)
			}
			defer sqlDB.Close()
			mock.ExpectPing().WillReturnError(tc.pingErr)

			// SkipInitializeWithVersion keeps gorm from querying @@version
			dial := mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
			gdb, err := OpenGormWithDialector(dial, WithLogger(logger.Discard()))

			if tc.pingErr != nil {
				if err == nil {
					t.Fatalf("expected ping error, got gdb=%v", gdb)
				}
			} else {
				if err != nil {
					t.Fatalf("OpenGormWithDialector: %v", err)
				}
				if got := sqlDB.Stats().MaxOpenConnections; got != 30 {
					t.Fatalf("MaxOpenConnections = %d, want 30", got)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

// pool is a gorm.ConnPool that does not expose its *sql.DB.
type pool struct{ *sql.DB }

func TestOpenGormWithDialector_RejectsPoolWithoutSQLDB(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer sqlDB.Close()

	dial := mysql.New(mysql.Config{Conn: pool{sqlDB}, SkipInitializeWithVersion: true})
	if _, err := OpenGormWithDialector(dial, WithLogger(logger.Discard())); !errors.Is(err, gorm.ErrInvalidDB) {
		t.Fatalf("want gorm.ErrInvalidDB, got %v", err)
	}
}

func TestOpenGormWithDialector_SQLiteAndMigrate(t *testing.T) {
	// every pooled connection to :memory: is a separate database
	gdb, err := OpenGormWithDialector(sqlite.Open(":memory:"), WithLogger(logger.Discard()), WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections = %d, want 1", got)
	}

	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, table := range []string{"books", "users", "loans"} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("table %s not created", table)
		}
	}
}

func TestDialector(t *testing.T) {
	if _, err := Dialector(&config.Config{DBDriver: config.DriverSQLite, SQLitePath: "x.db"}); err != nil {
		t.Fatalf("sqlite dialector: %v", err)
	}
	if _, err := Dialector(&config.Config{DBDriver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
