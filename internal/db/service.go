package db

import (
	"database/sql"
	"embed"
	"errors"
	"time"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DBServiceImpl implements SwapStore on PostgreSQL.
type DBServiceImpl struct {
	db *sql.DB
}

type DBOperations interface {
	Open(driverName, dataSourceName string) (*sql.DB, error)
	RunMigrations(db *sql.DB) error
}

// PostgresOperations opens real connections and applies the embedded migrations.
type PostgresOperations struct{}

func (PostgresOperations) Open(driverName, dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

func (PostgresOperations) RunMigrations(db *sql.DB) error {
	return RunMigrations(db)
}

// NewDBService connects to dsn, verifies the connection and migrates the schema.
func NewDBService(dsn string, ops DBOperations) (*DBServiceImpl, error) {
	db, err := ops.Open("postgres", dsn)
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "open connection", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &apperrors.DatabaseError{Operation: "ping database", Err: err}
	}

	if err := ops.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &DBServiceImpl{db: db}, nil
}

// RunMigrations applies every embedded migration not yet recorded.
func RunMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return &apperrors.DatabaseError{Operation: "create migration driver", Err: err}
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return &apperrors.DatabaseError{Operation: "load migrations", Err: err}
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "create migrate instance", Err: err}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &apperrors.DatabaseError{Operation: "apply migrations", Err: err}
	}
	return nil
}

func (s *DBServiceImpl) Close() error {
	return s.db.Close()
}
