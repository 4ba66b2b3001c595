// Package memory is an in-process TableStore. It applies the same insert
// defaults and foreign key rules as the SQL schema, so the service layer can
// run against it unchanged (tests and DATA_BACKEND=memory).
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"
)

type table struct {
	def    schema.TableDef
	nextID int64
	rows   []port.Row
}

// Store keeps every table in memory behind one RWMutex.
type Store struct {
	mu        sync.RWMutex
	tables    map[string]*table
	relations []schema.Relation
	now       func() time.Time
}

// New creates a store with every table of the schema, empty.
func New() *Store {
	s := &Store{
		tables:    make(map[string]*table),
		relations: schema.Relations(),
		now:       time.Now,
	}
	for _, def := range schema.Definitions() {
		s.tables[def.Name] = &table{def: def, nextID: 1}
	}
	return s
}

// DropTable removes a table, simulating a database that was never provisioned.
func (s *Store) DropTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	return t, nil
}

// Select returns copies of the matching rows, ordered and limited.
func (s *Store) Select(_ context.Context, name string, q port.Query) ([]port.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	out := make([]port.Row, 0)
	for _, r := range t.rows {
		if matches(r, q.Filters) {
			out = append(out, clone(r))
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SelectOne returns the first matching row or port.ErrRowNotFound.
func (s *Store) SelectOne(ctx context.Context, name string, filters ...port.Filter) (port.Row, error) {
	rows, err := s.Select(ctx, name, port.Query{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, port.ErrRowNotFound
	}
	return rows[0], nil
}

// Insert stores row with defaults, timestamps and a fresh id, and returns it.
func (s *Store) Insert(_ context.Context, name string, row port.Row) (port.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	stored := clone(row)
	for col, v := range t.def.Defaults {
		if _, ok := stored[col]; !ok {
			stored[col] = v
		}
	}
	ts := schema.FormatTime(s.now())
	for _, col := range t.def.Timestamps {
		if _, ok := stored[col]; !ok {
			stored[col] = ts
		}
	}
	if err := s.checkForeignKeys(name, stored); err != nil {
		return nil, err
	}

	stored["id"] = t.nextID
	t.nextID++
	t.rows = append(t.rows, stored)
	return clone(stored), nil
}

// Update applies patch to every matching row.
func (s *Store) Update(_ context.Context, name string, filters []port.Filter, patch port.Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return 0, err
	}
	if err := s.checkForeignKeys(name, patch); err != nil {
		return 0, err
	}

	n := 0
	for _, r := range t.rows {
		if !matches(r, filters) {
			continue
		}
		for col, v := range patch {
			r[col] = v
		}
		n++
	}
	return n, nil
}

// Delete removes matching rows and applies the ON DELETE rules to children.
func (s *Store) Delete(_ context.Context, name string, filters ...port.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteWhere(name, func(r port.Row) bool { return matches(r, filters) })
}

func (s *Store) deleteWhere(name string, pred func(port.Row) bool) error {
	t, err := s.table(name)
	if err != nil {
		return err
	}

	removed := make(map[string]bool)
	kept := t.rows[:0]
	for _, r := range t.rows {
		if pred(r) {
			removed[normalize(r["id"])] = true
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	if len(removed) == 0 {
		return nil
	}

	for _, rel := range s.relations {
		if rel.Parent != name {
			continue
		}
		refersToRemoved := func(r port.Row) bool {
			v, ok := r[rel.Column]
			return ok && v != nil && removed[normalize(v)]
		}
		switch rel.OnDelete {
		case schema.Cascade:
			if err := s.deleteWhere(rel.Table, refersToRemoved); err != nil {
				return err
			}
		case schema.SetNull:
			child, err := s.table(rel.Table)
			if err != nil {
				return err
			}
			for _, r := range child.rows {
				if refersToRemoved(r) {
					r[rel.Column] = nil
				}
			}
		}
	}
	return nil
}

func (s *Store) checkForeignKeys(name string, row port.Row) error {
	for _, rel := range s.relations {
		if rel.Table != name {
			continue
		}
		v, ok := row[rel.Column]
		if !ok || v == nil {
			continue
		}
		parent, err := s.table(rel.Parent)
		if err != nil {
			return err
		}
		found := false
		for _, p := range parent.rows {
			if normalize(p["id"]) == normalize(v) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("insert or update on %q violates foreign key %q: %v not present in %q",
				name, rel.Column, v, rel.Parent)
		}
	}
	return nil
}

func matches(r port.Row, filters []port.Filter) bool {
	for _, f := range filters {
		v := r[f.Column]
		if v == nil || normalize(v) != normalize(f.Value) {
			return false
		}
	}
	return true
}

// normalize renders a value the way it would appear in a query string, so
// int64(5), json.Number("5") and "5" compare equal.
func normalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return schema.FormatTime(x)
	default:
		return fmt.Sprint(x)
	}
}

// compare orders nil after every value, numbers numerically and the rest as strings.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if x, okA := number(a); okA {
		if y, okB := number(b); okB {
			return x.Cmp(y)
		}
	}
	sa, sb := normalize(a), normalize(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func number(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case decimal.Decimal:
		return x, true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	}
	return decimal.Zero, false
}

func clone(r port.Row) port.Row {
	out := make(port.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
