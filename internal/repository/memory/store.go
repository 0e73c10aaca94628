// Package memory keeps ledger tables in process memory. It backs tests and ephemeral runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/mamadbah2/batchledger/internal/repository"
)

// Operation names passed to a Fault hook.
const (
	OpReadAll    = "read_all"
	OpAppendRow  = "append_row"
	OpUpdateCell = "update_cell"
	OpReplaceAll = "replace_all"
	OpCAS        = "compare_and_swap"
)

// Fault is consulted before every operation. A non-nil error aborts the operation
// and is reported as a store outage. The hook runs without the store lock held.
type Fault func(op string, table string) error

// Store is a goroutine-safe in-memory repository.Store.
type Store struct {
	mu     sync.Mutex
	tables map[string][]repository.Row
	fault  Fault
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string][]repository.Row)}
}

// SetFault installs (or clears, with nil) the failure injection hook.
func (s *Store) SetFault(fault Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fault
}

func (s *Store) check(op string, table repository.Table) error {
	s.mu.Lock()
	fault := s.fault
	s.mu.Unlock()
	if fault == nil {
		return nil
	}
	if err := fault(op, table.Name); err != nil {
		return repository.Unavailable(op, table, err)
	}
	return nil
}

// ReadAll returns copies of every row in insertion order.
func (s *Store) ReadAll(_ context.Context, table repository.Table) ([]repository.Row, error) {
	if err := s.check(OpReadAll, table); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table.Name]
	out := make([]repository.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, table.RowFrom(table.Values(row)))
	}
	return out, nil
}

// AppendRow stores a copy of the row projected onto the table columns.
func (s *Store) AppendRow(_ context.Context, table repository.Table, row repository.Row) error {
	if err := s.check(OpAppendRow, table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[table.Name] = append(s.tables[table.Name], table.RowFrom(table.Values(row)))
	return nil
}

// UpdateCell overwrites the target column of the first row whose key matches.
func (s *Store) UpdateCell(_ context.Context, table repository.Table, keyColumn, keyValue, targetColumn, newValue string) error {
	if err := s.check(OpUpdateCell, table); err != nil {
		return err
	}
	if !table.HasColumn(targetColumn) {
		return repository.Unavailable(OpUpdateCell, table, errors.New("unknown column "+targetColumn))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.tables[table.Name] {
		if row[keyColumn] == keyValue {
			row[targetColumn] = newValue
			return nil
		}
	}
	return repository.Missing(table, keyColumn, keyValue)
}

// ReplaceAll swaps the whole table content.
func (s *Store) ReplaceAll(_ context.Context, table repository.Table, rows []repository.Row) error {
	if err := s.check(OpReplaceAll, table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]repository.Row, 0, len(rows))
	for _, row := range rows {
		copied = append(copied, table.RowFrom(table.Values(row)))
	}
	s.tables[table.Name] = copied
	return nil
}

// CompareAndSwapCell writes newValue only if the current cell equals expected.
func (s *Store) CompareAndSwapCell(_ context.Context, table repository.Table, keyColumn, keyValue, targetColumn, expected, newValue string) error {
	if err := s.check(OpCAS, table); err != nil {
		return err
	}
	if !table.HasColumn(targetColumn) {
		return repository.Unavailable(OpCAS, table, errors.New("unknown column "+targetColumn))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.tables[table.Name] {
		if row[keyColumn] != keyValue {
			continue
		}
		if row[targetColumn] != expected {
			return repository.Stale(table, keyValue, targetColumn, expected, row[targetColumn])
		}
		row[targetColumn] = newValue
		return nil
	}
	return repository.Missing(table, keyColumn, keyValue)
}
