// Package sqlite stores ledger tables in a local SQLite file through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// Store implements repository.Store with one TEXT-only table per ledger tab.
// Row order is insertion order (rowid).
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// Open connects to the database file and provisions every ledger table.
func Open(ctx context.Context, cfg config.SQLiteConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// A single connection serialises writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(ctx, repository.Tables); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite store ready", zap.String("path", cfg.Path))
	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context, tables []repository.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, table := range tables {
		columns := make([]string, len(table.Columns))
		for i, column := range table.Columns {
			columns[i] = quote(column) + " TEXT NOT NULL DEFAULT ''"
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table.Name), strings.Join(columns, ", "))
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("create table %s: %w", table.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// ReadAll returns the table rows in insertion order.
func (s *Store) ReadAll(ctx context.Context, table repository.Table) ([]repository.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", columnList(table), quote(table.Name))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, repository.Unavailable("read", table, err)
	}
	defer rows.Close()

	var out []repository.Row
	for rows.Next() {
		values := make([]string, len(table.Columns))
		targets := make([]any, len(values))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, repository.Unavailable("scan", table, err)
		}
		out = append(out, table.RowFrom(values))
	}
	if err := rows.Err(); err != nil {
		return nil, repository.Unavailable("read", table, err)
	}
	return out, nil
}

// AppendRow inserts the row projected onto the table columns.
func (s *Store) AppendRow(ctx context.Context, table repository.Table, row repository.Row) error {
	if err := insert(ctx, s.db, table, row); err != nil {
		return repository.Unavailable("append", table, err)
	}
	s.logger.Debug("row appended", zap.String("table", table.Name))
	return nil
}

// UpdateCell overwrites the target column of the first row whose key matches.
func (s *Store) UpdateCell(ctx context.Context, table repository.Table, keyColumn, keyValue, targetColumn, newValue string) error {
	if !table.HasColumn(targetColumn) || !table.HasColumn(keyColumn) {
		return repository.Unavailable("update", table, fmt.Errorf("unknown column %s or %s", keyColumn, targetColumn))
	}
	stmt := fmt.Sprintf(
		"UPDATE %[1]s SET %[2]s = ? WHERE rowid = (SELECT rowid FROM %[1]s WHERE %[3]s = ? ORDER BY rowid LIMIT 1)",
		quote(table.Name), quote(targetColumn), quote(keyColumn),
	)
	res, err := s.db.ExecContext(ctx, stmt, newValue, keyValue)
	if err != nil {
		return repository.Unavailable("update", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return repository.Unavailable("update", table, err)
	}
	if affected == 0 {
		return repository.Missing(table, keyColumn, keyValue)
	}
	return nil
}

// ReplaceAll rewrites the whole table inside one transaction.
func (s *Store) ReplaceAll(ctx context.Context, table repository.Table, rows []repository.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.Unavailable("replace", table, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+quote(table.Name)); err != nil {
		_ = tx.Rollback()
		return repository.Unavailable("replace", table, err)
	}
	for _, row := range rows {
		if err := insert(ctx, tx, table, row); err != nil {
			_ = tx.Rollback()
			return repository.Unavailable("replace", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return repository.Unavailable("replace", table, err)
	}
	return nil
}

// CompareAndSwapCell is a single conditional UPDATE, so it is atomic across processes.
func (s *Store) CompareAndSwapCell(ctx context.Context, table repository.Table, keyColumn, keyValue, targetColumn, expected, newValue string) error {
	if !table.HasColumn(targetColumn) || !table.HasColumn(keyColumn) {
		return repository.Unavailable("compare-and-swap", table, fmt.Errorf("unknown column %s or %s", keyColumn, targetColumn))
	}
	stmt := fmt.Sprintf(
		"UPDATE %[1]s SET %[2]s = ? WHERE %[2]s = ? AND rowid = (SELECT rowid FROM %[1]s WHERE %[3]s = ? ORDER BY rowid LIMIT 1)",
		quote(table.Name), quote(targetColumn), quote(keyColumn),
	)
	res, err := s.db.ExecContext(ctx, stmt, newValue, expected, keyValue)
	if err != nil {
		return repository.Unavailable("compare-and-swap", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return repository.Unavailable("compare-and-swap", table, err)
	}
	if affected == 1 {
		return nil
	}

	var current string
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY rowid LIMIT 1", quote(targetColumn), quote(table.Name), quote(keyColumn))
	switch err := s.db.QueryRowContext(ctx, query, keyValue).Scan(&current); {
	case errors.Is(err, sql.ErrNoRows):
		return repository.Missing(table, keyColumn, keyValue)
	case err != nil:
		return repository.Unavailable("compare-and-swap", table, err)
	}
	return repository.Stale(table, keyValue, targetColumn, expected, current)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, table repository.Table, row repository.Row) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(table.Columns)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table.Name), columnList(table), placeholders)
	values := table.Values(row)
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := db.ExecContext(ctx, stmt, args...)
	return err
}

func columnList(table repository.Table) string {
	quoted := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		quoted[i] = quote(column)
	}
	return strings.Join(quoted, ", ")
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
