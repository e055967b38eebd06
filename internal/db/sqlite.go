package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultPath = "./session.db"

type SQLite struct {
	path string
	conn *sql.DB
}

func NewSQLite(path string) *SQLite {
	if path == "" {
		path = DefaultPath
	}
	return &SQLite{
		path: path,
		conn: nil,
	}
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) InitDB() error {
	if s.conn != nil {
		return nil
	}

	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	// One writer: the operator's console. Serialising on a single connection keeps
	// sqlite from returning SQLITE_BUSY between the web and CLI paths of one process.
	conn.SetMaxOpenConns(1)

	// slot is always "default" for now; the column keeps room for named profiles.
	_, err = conn.Exec(`
CREATE TABLE IF NOT EXISTS credentials (
    slot TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.conn = conn
	dbLogger.Info().Str("path", s.path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *SQLite) Query(query string, args ...interface{}) (*sql.Rows, error) {
	dbLogger.Debug().Str("query", query).Msg("Query")
	return s.conn.Query(query, args...)
}

func (s *SQLite) QueryRow(query string, args ...interface{}) *sql.Row {
	dbLogger.Debug().Str("query", query).Msg("QueryRow")
	return s.conn.QueryRow(query, args...)
}

func (s *SQLite) Exec(query string, args ...interface{}) (sql.Result, error) {
	dbLogger.Debug().Str("query", query).Msg("Exec")
	return s.conn.Exec(query, args...)
}
