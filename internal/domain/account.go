package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Accounts
// ============================================================

// DefaultAccountColor is used when an account is created without a color.
const DefaultAccountColor = "#007bff"

// Account is a balance-bearing entity grouped by a free-text category.
// Balance is a projection of the account's transaction history and is never
// edited directly.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"nome"`
	Bank      string          `json:"banco"`
	Category  string          `json:"categoria"`
	Balance   decimal.Decimal `json:"saldo"`
	Color     string          `json:"cor"`
	CreatedAt time.Time       `json:"data_criacao"`
}

// NewAccount carries the fields accepted when opening an account.
type NewAccount struct {
	Name           string          `json:"nome"`
	Bank           string          `json:"banco"`
	Category       string          `json:"categoria"`
	Color          string          `json:"cor"`
	OpeningBalance decimal.Decimal `json:"saldo"`
}

// AccountUpdate carries the editable account fields. Balance is not one of them.
type AccountUpdate struct {
	Name     string `json:"nome"`
	Bank     string `json:"banco"`
	Category string `json:"categoria"`
	Color    string `json:"cor"`
}

// ============================================================
// Transactions
// ============================================================

// TransactionKind is either an entrance (credit) or an exit (debit).
type TransactionKind string

const (
	KindEntrance TransactionKind = "entrada"
	KindExit     TransactionKind = "saida"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	return k == KindEntrance || k == KindExit
}

// Apply returns the balance after posting amount with this kind.
func (k TransactionKind) Apply(balance, amount decimal.Decimal) decimal.Decimal {
	if k == KindEntrance {
		return balance.Add(amount)
	}
	return balance.Sub(amount)
}

// Transaction is an immutable posting against an account.
type Transaction struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"conta_id"`
	Kind        TransactionKind `json:"tipo"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
	Date        time.Time       `json:"data"`
	OperationID string          `json:"operacao_id,omitempty"`
}

// NewTransaction is the input of a ledger posting.
type NewTransaction struct {
	Kind        TransactionKind `json:"tipo"`
	Amount      decimal.Decimal `json:"valor"`
	Description string          `json:"descricao"`
}

// AccountDetail is an account with its most recent transactions, newest first.
type AccountDetail struct {
	Account      *Account      `json:"conta"`
	Transactions []Transaction `json:"transacoes"`
}

// RoundAmount normalizes a monetary amount to two fractional digits.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MaxAmount is the largest magnitude a DECIMAL(10,2) column holds.
var MaxAmount = decimal.RequireFromString("99999999.99")

// AmountFits reports whether d, rounded to cents, fits a DECIMAL(10,2) column.
func AmountFits(d decimal.Decimal) bool {
	return RoundAmount(d).Abs().LessThanOrEqual(MaxAmount)
}
