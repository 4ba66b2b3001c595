package port

import (
	"context"
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"github.com/shopspring/decimal"
)

// FinanceStore defines the typed entity operations used by the finance service.
// Implemented by repository.Repository on top of any TableStore.
type FinanceStore interface {
	// Accounts
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	CreateAccount(ctx context.Context, acct *domain.NewAccount) (*domain.Account, error)
	UpdateAccount(ctx context.Context, accountID int64, upd *domain.AccountUpdate) error
	SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	DeleteAccount(ctx context.Context, accountID int64) error

	// Transactions
	InsertTransaction(ctx context.Context, accountID int64, tx *domain.NewTransaction, operationID string) (*domain.Transaction, error)
	DeleteTransactionsByOperation(ctx context.Context, operationID string) error
	ListRecentTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)

	// Shopping lists
	CreateList(ctx context.Context, name string) (*domain.ShoppingList, error)
	GetList(ctx context.Context, listID int64) (*domain.ShoppingList, error)
	ListShoppingLists(ctx context.Context, completed bool, limit int) ([]domain.ShoppingList, error)
	CompleteList(ctx context.Context, listID, accountID int64, at time.Time) error
	ReopenList(ctx context.Context, listID, accountID int64, at time.Time) error
	DeleteList(ctx context.Context, listID int64) error

	// List items
	ListItems(ctx context.Context, listID int64) ([]domain.ListItem, error)
	AddItem(ctx context.Context, listID int64, item *domain.NewListItem) (*domain.ListItem, error)
	DeleteItem(ctx context.Context, listID, itemID int64) error

	// Provisioning
	Probe(ctx context.Context) error
	TablesExist(ctx context.Context) bool
}
