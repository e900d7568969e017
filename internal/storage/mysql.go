package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using MySQL.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a MySQL-backed store from a DSN.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS collections (
		` + "`key`" + ` VARCHAR(191) PRIMARY KEY,
		value LONGTEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStore] Initialized")
	return &MySQLStore{db: db}, nil
}

// GetItem retrieves the raw value stored under key.
func (s *MySQLStore) GetItem(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM collections WHERE `key` = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", key, err)
	}
	return []byte(value), nil
}

// SetItem stores the raw value under key, replacing any prior value.
func (s *MySQLStore) SetItem(ctx context.Context, key string, value []byte) error {
	query := "INSERT INTO collections (`key`, value, updated_at) VALUES (?, ?, NOW())" +
		" ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = NOW()"

	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to set collection %s: %w", key, err)
	}
	return nil
}

// HasItem reports whether key has been written.
func (s *MySQLStore) HasItem(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections WHERE `key` = ?", key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", key, err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*MySQLStore)(nil)
