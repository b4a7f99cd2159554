// internal/store/postgres/db.go
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB holds one lib/pq pool and a gorm handle over that same pool.
type DB struct {
	SQL  *sql.DB
	Gorm *gorm.DB
}

// Connect opens the pool and pings it.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: failed to ping postgres: %w", err)
	}

	gormDB, err := Wrap(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Println("[Postgres] connected")
	return &DB{SQL: sqlDB, Gorm: gormDB}, nil
}

// Wrap puts gorm on top of an existing pool without opening a second one.
func Wrap(sqlDB *sql.DB) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: failed to init gorm: %w", err)
	}
	return gormDB, nil
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// RunMigrations applies the embedded SQL files in lexical order. Every file is
// idempotent, so re-running is safe.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("db: read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("db: read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("db: exec migration %s: %w", name, err)
		}
		log.Printf("[Postgres] migration %s applied", name)
	}
	return nil
}
