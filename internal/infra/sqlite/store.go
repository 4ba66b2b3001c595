// Package sqlite is a local single-file TableStore backed by modernc.org/sqlite.
// The schema is applied with golang-migrate when the store is opened.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store implements port.TableStore on a SQLite database file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database file if needed, migrates it and opens it with
// foreign keys enforced.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := schema.ApplySQLite(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", dbPath))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func quote(name string) (string, error) {
	if !identifier.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func bindValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func where(filters []port.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		col, err := quote(f.Column)
		if err != nil {
			return "", nil, err
		}
		switch f.Op {
		case port.OpEq:
			parts = append(parts, col+" = ?")
			args = append(args, bindValue(f.Value))
		default:
			return "", nil, fmt.Errorf("unsupported filter %q", f.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// Select runs a SELECT * with the query's filters, order and limit.
// NULLs sort last ascending and first descending, as in PostgreSQL.
func (s *Store) Select(ctx context.Context, table string, q port.Query) ([]port.Row, error) {
	ctx, span := tracer.Start(ctx, "SQLite.Select")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	tbl, err := quote(table)
	if err != nil {
		return nil, err
	}
	clause, args, err := where(q.Filters)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM " + tbl + clause)
	if len(q.Order) > 0 {
		orders := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			col, err := quote(o.Column)
			if err != nil {
				return nil, err
			}
			if o.Desc {
				orders = append(orders, col+" DESC NULLS FIRST")
			} else {
				orders = append(orders, col+" ASC NULLS LAST")
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		s.logger.Warn("sqlite: select failed", zap.String("table", table), zap.Error(err))
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// SelectOne returns the first matching row or port.ErrRowNotFound.
func (s *Store) SelectOne(ctx context.Context, table string, filters ...port.Filter) (port.Row, error) {
	rows, err := s.Select(ctx, table, port.Query{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, port.ErrRowNotFound
	}
	return rows[0], nil
}

// Insert stores row and reads it back so defaults are included.
func (s *Store) Insert(ctx context.Context, table string, row port.Row) (port.Row, error) {
	ctx, span := tracer.Start(ctx, "SQLite.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	tbl, err := quote(table)
	if err != nil {
		return nil, err
	}

	cols := sortedKeys(row)
	quoted := make([]string, 0, len(cols))
	marks := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		qc, err := quote(c)
		if err != nil {
			return nil, err
		}
		quoted = append(quoted, qc)
		marks = append(marks, "?")
		args = append(args, bindValue(row[c]))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Warn("sqlite: insert failed", zap.String("table", table), zap.Error(err))
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: last id: %w", table, err)
	}

	s.logger.Debug("sqlite: insert OK", zap.String("table", table), zap.Int64("id", id))
	return s.SelectOne(ctx, table, port.Eq("id", id))
}

// Update applies patch to the matching rows and returns how many matched.
func (s *Store) Update(ctx context.Context, table string, filters []port.Filter, patch port.Row) (int, error) {
	ctx, span := tracer.Start(ctx, "SQLite.Update")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	tbl, err := quote(table)
	if err != nil {
		return 0, err
	}

	cols := sortedKeys(patch)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for _, c := range cols {
		qc, err := quote(c)
		if err != nil {
			return 0, err
		}
		sets = append(sets, qc+" = ?")
		args = append(args, bindValue(patch[c]))
	}
	clause, whereArgs, err := where(filters)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	res, err := s.db.ExecContext(ctx, "UPDATE "+tbl+" SET "+strings.Join(sets, ", ")+clause, args...)
	if err != nil {
		s.logger.Warn("sqlite: update failed", zap.String("table", table), zap.Error(err))
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	return int(n), nil
}

// Delete removes the matching rows; foreign keys cascade in the database.
func (s *Store) Delete(ctx context.Context, table string, filters ...port.Filter) error {
	ctx, span := tracer.Start(ctx, "SQLite.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	tbl, err := quote(table)
	if err != nil {
		return err
	}
	clause, args, err := where(filters)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+tbl+clause, args...); err != nil {
		s.logger.Warn("sqlite: delete failed", zap.String("table", table), zap.Error(err))
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// scanRows reads every row into a map. BOOLEAN columns come back as bool and
// text as string, matching what the other backends return.
func scanRows(rows *sql.Rows) ([]port.Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := make([]port.Row, 0)
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(port.Row, len(types))
		for i, ct := range types {
			v := values[i]
			switch x := v.(type) {
			case []byte:
				v = string(x)
			case int64:
				if strings.EqualFold(ct.DatabaseTypeName(), "BOOLEAN") {
					v = x != 0
				}
			}
			row[ct.Name()] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func sortedKeys(r port.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
