package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Shopping lists
// ============================================================

// descriptionItemLimit is how many items are spelled out in a settlement description.
const descriptionItemLimit = 3

// ShoppingList starts incomplete and is completed exactly once, when paid.
type ShoppingList struct {
	ID          int64      `json:"id"`
	Name        string     `json:"nome"`
	CreatedAt   time.Time  `json:"data_criacao"`
	Completed   bool       `json:"concluida"`
	AccountID   *int64     `json:"conta_id"`
	CompletedAt *time.Time `json:"data_conclusao"`
}

// ListItem is a priced line of a shopping list.
type ListItem struct {
	ID          int64           `json:"id"`
	ListID      int64           `json:"lista_id"`
	Description string          `json:"descricao"`
	UnitPrice   decimal.Decimal `json:"valor"`
	Quantity    int             `json:"quantidade"`
}

// NewListItem is the input for adding an item. Quantity 0 means 1.
type NewListItem struct {
	Description string          `json:"descricao"`
	UnitPrice   decimal.Decimal `json:"valor"`
	Quantity    int             `json:"quantidade"`
}

// LineTotal returns unit price × quantity.
func (i ListItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ListTotal is the live sum of all line totals. It is never stored.
func ListTotal(items []ListItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return RoundAmount(total)
}

// ItemsSummary spells out the first three items as "{qty}x {desc}" and
// appends " e mais {n} itens" when there are more.
func ItemsSummary(items []ListItem) string {
	n := len(items)
	if n > descriptionItemLimit {
		n = descriptionItemLimit
	}
	parts := make([]string, 0, n)
	for _, it := range items[:n] {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.Description))
	}
	desc := strings.Join(parts, ", ")
	if extra := len(items) - descriptionItemLimit; extra > 0 {
		desc += fmt.Sprintf(" e mais %d itens", extra)
	}
	return desc
}

// SettlementDescription is the description of the exit transaction that pays a list.
func SettlementDescription(listName string, items []ListItem) string {
	return fmt.Sprintf("Lista: %s (%s)", listName, ItemsSummary(items))
}

// ListWithItems is a list together with its items and live total.
type ListWithItems struct {
	ShoppingList
	Items       []ListItem      `json:"itens_lista"`
	Total       decimal.Decimal `json:"total"`
	AccountName string          `json:"conta_nome,omitempty"`
}

// ListDetail is everything the list page needs, including the payment selector.
type ListDetail struct {
	List     *ShoppingList   `json:"lista"`
	Items    []ListItem      `json:"itens"`
	Total    decimal.Decimal `json:"total"`
	Accounts []Account       `json:"contas"`
}

// ListsOverview groups active lists and the most recently completed ones.
type ListsOverview struct {
	Active    []ListWithItems `json:"listas_ativas"`
	Completed []ListWithItems `json:"listas_concluidas"`
}

// Settlement is the outcome of paying a list.
type Settlement struct {
	ListID      int64           `json:"lista_id"`
	AccountID   int64           `json:"conta_id"`
	AccountName string          `json:"conta_nome"`
	Total       decimal.Decimal `json:"total"`
	NewBalance  decimal.Decimal `json:"novo_saldo"`
	Transaction *Transaction    `json:"transacao"`
	CompletedAt time.Time       `json:"data_conclusao"`
}
