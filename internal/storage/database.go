package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database for the given driver (sqlite3 or mysql).
func Open(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn must be provided", driver)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// every connection to :memory: is a separate database
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS invoices (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_id TEXT NOT NULL UNIQUE,
				file_name TEXT NOT NULL,
				vendor_name TEXT NOT NULL,
				invoice_number TEXT NOT NULL,
				document TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_vendor_name ON invoices(vendor_name)`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_number ON invoices(invoice_number)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS invoices (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				file_id VARCHAR(64) NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				vendor_name VARCHAR(255) NOT NULL,
				invoice_number VARCHAR(255) NOT NULL,
				document MEDIUMTEXT NOT NULL,
				created_at VARCHAR(32) NOT NULL,
				updated_at VARCHAR(32) NOT NULL DEFAULT '',
				PRIMARY KEY (id),
				UNIQUE KEY uniq_invoices_file_id (file_id),
				INDEX idx_invoices_created_at (created_at),
				INDEX idx_invoices_vendor_name (vendor_name),
				INDEX idx_invoices_number (invoice_number)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
