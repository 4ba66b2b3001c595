// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"errors"
)

// ErrRowNotFound is returned by TableStore.SelectOne when no row matches.
var ErrRowNotFound = errors.New("row not found")

// Row is a single table row keyed by column name.
type Row map[string]any

// FilterOp is a comparison supported by every table store.
type FilterOp string

const OpEq FilterOp = "eq"

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Order sorts query results by Column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a filtered, ordered and limited select. Limit 0 means no limit.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// TableStore is the generic row store backing all entities. Implementations
// assign ids and server timestamps on Insert and apply the cascade rules of
// the schema on Delete. Update reports how many rows matched its filters.
type TableStore interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	SelectOne(ctx context.Context, table string, filters ...Filter) (Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, filters []Filter, patch Row) (int, error)
	Delete(ctx context.Context, table string, filters ...Filter) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
