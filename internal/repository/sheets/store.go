package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// Store implements repository.Store on top of a Google spreadsheet. Each table is a tab
// whose first row holds the column names; columns are matched by header, not position.
type Store struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore builds a Google Sheets backed store instance.
func NewStore(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id must not be empty")
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if cfg.CredentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &Store{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// sheet is a decoded tab: header plus data rows, with 1-based sheet row numbers.
type sheet struct {
	header []string
	rows   [][]string
}

func (s sheet) columnIndex(column string) int {
	for i, name := range s.header {
		if name == column {
			return i
		}
	}
	return -1
}

func (s sheet) find(keyColumn, keyValue string) (rowNumber int, values []string, ok bool) {
	idx := s.columnIndex(keyColumn)
	if idx < 0 {
		return 0, nil, false
	}
	for i, row := range s.rows {
		if cell(row, idx) == keyValue {
			// +2: one for the header row, one because sheet rows are 1-based.
			return i + 2, row, true
		}
	}
	return 0, nil, false
}

func (r *Store) load(ctx context.Context, table repository.Table) (sheet, error) {
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, tabRange(table.Name)).Context(ctx).Do()
	if err != nil {
		return sheet{}, repository.Unavailable("read", table, err)
	}
	return decode(resp.Values), nil
}

// ReadAll fetches every data row of the tab.
func (r *Store) ReadAll(ctx context.Context, table repository.Table) ([]repository.Row, error) {
	sh, err := r.load(ctx, table)
	if err != nil {
		return nil, err
	}
	return toRows(table, sh), nil
}

// AppendRow appends the row below the last one, writing the header first on an empty tab.
func (r *Store) AppendRow(ctx context.Context, table repository.Table, row repository.Row) error {
	sh, err := r.load(ctx, table)
	if err != nil {
		return err
	}
	header := sh.header
	if len(header) == 0 {
		header = table.Columns
		if err := r.write(ctx, table, tabRange(table.Name), [][]interface{}{toInterfaces(header)}); err != nil {
			return err
		}
	}

	values := make([]interface{}, len(header))
	for i, column := range header {
		values[i] = row.Get(column)
	}
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}
	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, tabRange(table.Name), payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)
	if _, err := call.Do(); err != nil {
		return repository.Unavailable("append", table, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("tab", table.Name))
	return nil
}

// UpdateCell overwrites one cell of the first row whose key matches.
func (r *Store) UpdateCell(ctx context.Context, table repository.Table, keyColumn, keyValue, targetColumn, newValue string) error {
	sh, err := r.load(ctx, table)
	if err != nil {
		return err
	}
	return r.setCell(ctx, table, sh, keyColumn, keyValue, targetColumn, newValue)
}

// ReplaceAll overwrites the tab from A1 in one update. Cells of the previous
// content that the new rows do not cover are written blank, so a failed update
// leaves the old content in place.
func (r *Store) ReplaceAll(ctx context.Context, table repository.Table, rows []repository.Row) error {
	old, err := r.load(ctx, table)
	if err != nil {
		return err
	}
	width := len(table.Columns)
	if len(old.header) > width {
		width = len(old.header)
	}
	for _, values := range old.rows {
		if len(values) > width {
			width = len(values)
		}
	}

	height := len(rows)
	if len(old.rows) > height {
		height = len(old.rows)
	}
	values := make([][]interface{}, 0, height+1)
	values = append(values, padded(table.Columns, width))
	for _, row := range rows {
		values = append(values, padded(table.Values(row), width))
	}
	for len(values) < height+1 {
		values = append(values, padded(nil, width))
	}
	if err := r.write(ctx, table, tabRange(table.Name)+"!A1", values); err != nil {
		return err
	}

	r.logger.Debug("sheet rewritten", zap.String("tab", table.Name), zap.Int("rows", len(rows)), zap.Int("blanked", height-len(rows)))
	return nil
}

// CompareAndSwapCell re-reads the row right before writing. The Sheets API has no
// conditional write, so callers also hold a per-entity lock.
func (r *Store) CompareAndSwapCell(ctx context.Context, table repository.Table, keyColumn, keyValue, targetColumn, expected, newValue string) error {
	sh, err := r.load(ctx, table)
	if err != nil {
		return err
	}
	_, values, ok := sh.find(keyColumn, keyValue)
	if !ok {
		return repository.Missing(table, keyColumn, keyValue)
	}
	idx := sh.columnIndex(targetColumn)
	if current := cell(values, idx); current != expected {
		return repository.Stale(table, keyValue, targetColumn, expected, current)
	}
	return r.setCell(ctx, table, sh, keyColumn, keyValue, targetColumn, newValue)
}

func (r *Store) setCell(ctx context.Context, table repository.Table, sh sheet, keyColumn, keyValue, targetColumn, newValue string) error {
	idx := sh.columnIndex(targetColumn)
	if idx < 0 {
		return repository.Unavailable("update", table, fmt.Errorf("column %s missing from sheet header", targetColumn))
	}
	rowNumber, _, ok := sh.find(keyColumn, keyValue)
	if !ok {
		return repository.Missing(table, keyColumn, keyValue)
	}
	target := fmt.Sprintf("'%s'!%s%d", table.Name, columnLetter(idx), rowNumber)
	return r.write(ctx, table, target, [][]interface{}{{newValue}})
}

func (r *Store) write(ctx context.Context, table repository.Table, target string, values [][]interface{}) error {
	call := r.service.Spreadsheets.Values.Update(r.spreadsheetID, target, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx)
	if _, err := call.Do(); err != nil {
		return repository.Unavailable("write "+target, table, err)
	}
	return nil
}

func padded(values []string, width int) []interface{} {
	out := make([]interface{}, width)
	for i := range out {
		out[i] = ""
		if i < len(values) {
			out[i] = values[i]
		}
	}
	return out
}

func decode(values [][]interface{}) sheet {
	if len(values) == 0 {
		return sheet{}
	}
	sh := sheet{header: toStrings(values[0])}
	for _, raw := range values[1:] {
		sh.rows = append(sh.rows, toStrings(raw))
	}
	return sh
}

func toRows(table repository.Table, sh sheet) []repository.Row {
	rows := make([]repository.Row, 0, len(sh.rows))
	for _, values := range sh.rows {
		row := make(repository.Row, len(table.Columns))
		for _, column := range table.Columns {
			row[column] = cell(values, sh.columnIndex(column))
		}
		rows = append(rows, row)
	}
	return rows
}

func cell(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}
	return values[idx]
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func tabRange(name string) string {
	return fmt.Sprintf("'%s'", name)
}

// columnLetter converts a zero-based column index to A1 notation (0 → A, 26 → AA).
func columnLetter(idx int) string {
	letters := ""
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		letters = string(rune('A'+(n-1)%26)) + letters
	}
	return letters
}
