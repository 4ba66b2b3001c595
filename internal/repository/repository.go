// Package repository maps the ledger entities onto a generic TableStore.
// It implements port.FinanceStore for every backend.
package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"
)

// Repository implements port.FinanceStore.
type Repository struct {
	store port.TableStore
}

// New creates a repository over store.
func New(store port.TableStore) *Repository {
	return &Repository{store: store}
}

// Compile-time check.
var _ port.FinanceStore = (*Repository)(nil)

// storeErr leaves typed store errors untouched and wraps anything else.
func storeErr(table, op string, err error) error {
	var unavailable *domain.ErrStoreUnavailable
	var open *domain.ErrCircuitOpen
	if errors.As(err, &unavailable) || errors.As(err, &open) || errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.ErrStoreUnavailable{Table: table, Op: op, Err: err}
}

func notFound(resource string, id int64) error {
	return &domain.ErrNotFound{Resource: resource, ID: strconv.FormatInt(id, 10)}
}

func amount(d decimal.Decimal) string {
	return domain.RoundAmount(d).StringFixed(2)
}

// ============================================================
// Accounts
// ============================================================

func (r *Repository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.store.Select(ctx, schema.Accounts, port.Query{
		Order: []port.Order{{Column: "categoria"}, {Column: "nome"}, {Column: "id"}},
	})
	if err != nil {
		return nil, storeErr(schema.Accounts, "select", err)
	}
	return decodeRows(rows, (*accountRow).toDomain)
}

func (r *Repository) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	row, err := r.store.SelectOne(ctx, schema.Accounts, port.Eq("id", accountID))
	if errors.Is(err, port.ErrRowNotFound) {
		return nil, notFound("account", accountID)
	}
	if err != nil {
		return nil, storeErr(schema.Accounts, "select", err)
	}
	return decodeOne(row, (*accountRow).toDomain)
}

// CreateAccount inserts the account with a zero balance. Any opening balance
// is posted by the ledger as a transaction.
func (r *Repository) CreateAccount(ctx context.Context, acct *domain.NewAccount) (*domain.Account, error) {
	color := acct.Color
	if color == "" {
		color = domain.DefaultAccountColor
	}
	row, err := r.store.Insert(ctx, schema.Accounts, port.Row{
		"nome":      acct.Name,
		"banco":     acct.Bank,
		"categoria": acct.Category,
		"cor":       color,
		"saldo":     amount(decimal.Zero),
	})
	if err != nil {
		return nil, storeErr(schema.Accounts, "insert", err)
	}
	return decodeOne(row, (*accountRow).toDomain)
}

func (r *Repository) UpdateAccount(ctx context.Context, accountID int64, upd *domain.AccountUpdate) error {
	color := upd.Color
	if color == "" {
		color = domain.DefaultAccountColor
	}
	n, err := r.store.Update(ctx, schema.Accounts, []port.Filter{port.Eq("id", accountID)}, port.Row{
		"nome":      upd.Name,
		"banco":     upd.Bank,
		"categoria": upd.Category,
		"cor":       color,
	})
	if err != nil {
		return storeErr(schema.Accounts, "update", err)
	}
	if n == 0 {
		return notFound("account", accountID)
	}
	return nil
}

func (r *Repository) SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	n, err := r.store.Update(ctx, schema.Accounts, []port.Filter{port.Eq("id", accountID)}, port.Row{
		"saldo": amount(balance),
	})
	if err != nil {
		return storeErr(schema.Accounts, "update", err)
	}
	if n == 0 {
		return notFound("account", accountID)
	}
	return nil
}

func (r *Repository) DeleteAccount(ctx context.Context, accountID int64) error {
	if err := r.store.Delete(ctx, schema.Accounts, port.Eq("id", accountID)); err != nil {
		return storeErr(schema.Accounts, "delete", err)
	}
	return nil
}

// ============================================================
// Transactions
// ============================================================

func (r *Repository) InsertTransaction(ctx context.Context, accountID int64, tx *domain.NewTransaction, operationID string) (*domain.Transaction, error) {
	row := port.Row{
		"conta_id":  accountID,
		"tipo":      string(tx.Kind),
		"valor":     amount(tx.Amount),
		"descricao": tx.Description,
	}
	if operationID != "" {
		row["operacao_id"] = operationID
	}
	out, err := r.store.Insert(ctx, schema.Transactions, row)
	if err != nil {
		return nil, storeErr(schema.Transactions, "insert", err)
	}
	return decodeOne(out, (*transactionRow).toDomain)
}

func (r *Repository) DeleteTransactionsByOperation(ctx context.Context, operationID string) error {
	if err := r.store.Delete(ctx, schema.Transactions, port.Eq("operacao_id", operationID)); err != nil {
		return storeErr(schema.Transactions, "delete", err)
	}
	return nil
}

func (r *Repository) ListRecentTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	rows, err := r.store.Select(ctx, schema.Transactions, port.Query{
		Filters: []port.Filter{port.Eq("conta_id", accountID)},
		Order:   []port.Order{{Column: "data", Desc: true}, {Column: "id", Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, storeErr(schema.Transactions, "select", err)
	}
	return decodeRows(rows, (*transactionRow).toDomain)
}

// ============================================================
// Shopping lists
// ============================================================

func (r *Repository) CreateList(ctx context.Context, name string) (*domain.ShoppingList, error) {
	row, err := r.store.Insert(ctx, schema.Lists, port.Row{
		"nome":      name,
		"concluida": false,
	})
	if err != nil {
		return nil, storeErr(schema.Lists, "insert", err)
	}
	return decodeOne(row, (*listRow).toDomain)
}

func (r *Repository) GetList(ctx context.Context, listID int64) (*domain.ShoppingList, error) {
	row, err := r.store.SelectOne(ctx, schema.Lists, port.Eq("id", listID))
	if errors.Is(err, port.ErrRowNotFound) {
		return nil, notFound("list", listID)
	}
	if err != nil {
		return nil, storeErr(schema.Lists, "select", err)
	}
	return decodeOne(row, (*listRow).toDomain)
}

// ListShoppingLists returns active lists newest first, or completed lists by
// most recent completion. Limit 0 means all.
func (r *Repository) ListShoppingLists(ctx context.Context, completed bool, limit int) ([]domain.ShoppingList, error) {
	orderBy := "data_criacao"
	if completed {
		orderBy = "data_conclusao"
	}
	rows, err := r.store.Select(ctx, schema.Lists, port.Query{
		Filters: []port.Filter{port.Eq("concluida", completed)},
		Order:   []port.Order{{Column: orderBy, Desc: true}, {Column: "id", Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, storeErr(schema.Lists, "select", err)
	}
	return decodeRows(rows, (*listRow).toDomain)
}

// CompleteList marks an incomplete list as paid. The update is conditional on
// the list still being incomplete, so a concurrent payment yields ErrConflict.
func (r *Repository) CompleteList(ctx context.Context, listID, accountID int64, at time.Time) error {
	n, err := r.store.Update(ctx, schema.Lists,
		[]port.Filter{port.Eq("id", listID), port.Eq("concluida", false)},
		port.Row{
			"concluida":      true,
			"conta_id":       accountID,
			"data_conclusao": schema.FormatTime(at),
		})
	if err != nil {
		return storeErr(schema.Lists, "update", err)
	}
	if n == 0 {
		return &domain.ErrConflict{Message: "list " + strconv.FormatInt(listID, 10) + " is already completed"}
	}
	return nil
}

// ReopenList clears the completion state written by CompleteList with the same
// account and time. A list completed by any other settlement is left alone.
func (r *Repository) ReopenList(ctx context.Context, listID, accountID int64, at time.Time) error {
	_, err := r.store.Update(ctx, schema.Lists, []port.Filter{
		port.Eq("id", listID),
		port.Eq("concluida", true),
		port.Eq("conta_id", accountID),
		port.Eq("data_conclusao", schema.FormatTime(at)),
	}, port.Row{
		"concluida":      false,
		"conta_id":       nil,
		"data_conclusao": nil,
	})
	if err != nil {
		return storeErr(schema.Lists, "update", err)
	}
	return nil
}

func (r *Repository) DeleteList(ctx context.Context, listID int64) error {
	if err := r.store.Delete(ctx, schema.Lists, port.Eq("id", listID)); err != nil {
		return storeErr(schema.Lists, "delete", err)
	}
	return nil
}

// ============================================================
// List items
// ============================================================

func (r *Repository) ListItems(ctx context.Context, listID int64) ([]domain.ListItem, error) {
	rows, err := r.store.Select(ctx, schema.Items, port.Query{
		Filters: []port.Filter{port.Eq("lista_id", listID)},
		Order:   []port.Order{{Column: "id"}},
	})
	if err != nil {
		return nil, storeErr(schema.Items, "select", err)
	}
	return decodeRows(rows, (*itemRow).toDomain)
}

func (r *Repository) AddItem(ctx context.Context, listID int64, item *domain.NewListItem) (*domain.ListItem, error) {
	qty := item.Quantity
	if qty == 0 {
		qty = 1
	}
	row, err := r.store.Insert(ctx, schema.Items, port.Row{
		"lista_id":   listID,
		"descricao":  item.Description,
		"valor":      amount(item.UnitPrice),
		"quantidade": qty,
	})
	if err != nil {
		return nil, storeErr(schema.Items, "insert", err)
	}
	return decodeOne(row, (*itemRow).toDomain)
}

func (r *Repository) DeleteItem(ctx context.Context, listID, itemID int64) error {
	if err := r.store.Delete(ctx, schema.Items, port.Eq("id", itemID), port.Eq("lista_id", listID)); err != nil {
		return storeErr(schema.Items, "delete", err)
	}
	return nil
}

// ============================================================
// Provisioning
// ============================================================

// Probe reads at most one account, failing when the store is unreachable or
// the table is missing.
func (r *Repository) Probe(ctx context.Context) error {
	if _, err := r.store.Select(ctx, schema.Accounts, port.Query{Limit: 1}); err != nil {
		return storeErr(schema.Accounts, "select", err)
	}
	return nil
}

// TablesExist reports whether Probe succeeds. Any failure counts as not ready.
func (r *Repository) TablesExist(ctx context.Context) bool {
	return r.Probe(ctx) == nil
}

func decodeOne[T any, D any](row port.Row, convert func(*T) (D, error)) (*D, error) {
	raw, err := decodeRow[T](row)
	if err != nil {
		return nil, err
	}
	d, err := convert(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
