package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/kart-io/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/sensei/internal/model"
	storeopts "github.com/kart-io/sensei/pkg/options/store"
)

// Models lists every table managed by AutoMigrate.
var Models = []interface{}{
	&model.ClassificationRecord{},
	&model.Document{},
	&model.Chunk{},
	&model.Session{},
	&model.Message{},
}

// Open opens the database selected by the DSN scheme and migrates the schema.
// A missing sqlite file is created empty.
func Open(opts *storeopts.Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:                 NewGormLogger(gormlogger.LogLevel(opts.LogLevel), opts.SlowThreshold),
		SkipDefaultTransaction: true,
	}

	var (
		dialector gorm.Dialector
		memory    bool
	)
	switch opts.Scheme() {
	case storeopts.SchemeSQLite:
		dsn, mem, err := sqliteDSN(opts.Target(), opts.BusyTimeout.Milliseconds())
		if err != nil {
			return nil, err
		}
		dialector, memory = sqlite.Open(dsn), mem
	case storeopts.SchemeMySQL:
		dialector = mysql.Open(opts.Target())
	case storeopts.SchemePostgres, "postgresql":
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", opts.Scheme())
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if memory {
		// every connection to :memory: is a distinct database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
		sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	}
	sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)

	if err := db.AutoMigrate(Models...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Infow("database opened", "store", opts.String())
	return db, nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// sqliteDSN appends the durability pragmas to a sqlite path and makes sure its
// parent directory exists.
func sqliteDSN(target string, busyMillis int64) (string, bool, error) {
	path, query, _ := strings.Cut(target, "?")
	memory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")

	if !memory {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", false, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	if busyMillis <= 0 {
		busyMillis = 5000
	}

	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(FULL)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyMillis),
		"_pragma=foreign_keys(on)",
	}
	if query != "" {
		pragmas = append([]string{query}, pragmas...)
	}
	return path + "?" + strings.Join(pragmas, "&"), memory, nil
}
