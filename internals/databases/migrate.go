package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// NewMigrator membuat instance golang-migrate dari file SQL yang di-embed.
// Pemanggil menutup sql.DB lewat Migrator.Close.
func NewMigrator(dsn string) (*Migrator, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	m, err := newMigrate(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Migrator{m: m}, nil
}

func newMigrate(sqlDB *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	drv, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	return m, nil
}

type Migrator struct {
	m *migrate.Migrate
}

// Up menjalankan semua migrasi yang tertunda. Tidak ada migrasi bukan error.
func (x *Migrator) Up() error {
	if err := x.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down me-rollback n migrasi.
func (x *Migrator) Down(n int) error {
	if n <= 0 {
		return fmt.Errorf("migrate down: step count must be positive, got %d", n)
	}
	if err := x.m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func (x *Migrator) Version() (uint, bool, error) {
	v, dirty, err := x.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (x *Migrator) Close() error {
	srcErr, dbErr := x.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrationFiles daftar nama file migrasi yang di-embed.
func MigrationFiles() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
