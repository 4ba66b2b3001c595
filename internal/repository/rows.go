package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
)

// Row shapes as returned by the table store. Timestamps arrive as text in
// whatever layout the backend uses and are parsed separately.

type accountRow struct {
	ID          int64           `json:"id"`
	Nome        string          `json:"nome"`
	Banco       string          `json:"banco"`
	Categoria   string          `json:"categoria"`
	Saldo       decimal.Decimal `json:"saldo"`
	Cor         *string         `json:"cor"`
	DataCriacao *string         `json:"data_criacao"`
}

type transactionRow struct {
	ID         int64           `json:"id"`
	ContaID    int64           `json:"conta_id"`
	Tipo       string          `json:"tipo"`
	Valor      decimal.Decimal `json:"valor"`
	Descricao  *string         `json:"descricao"`
	Data       *string         `json:"data"`
	OperacaoID *string         `json:"operacao_id"`
}

type listRow struct {
	ID            int64   `json:"id"`
	Nome          string  `json:"nome"`
	DataCriacao   *string `json:"data_criacao"`
	Concluida     bool    `json:"concluida"`
	ContaID       *int64  `json:"conta_id"`
	DataConclusao *string `json:"data_conclusao"`
}

type itemRow struct {
	ID         int64           `json:"id"`
	ListaID    int64           `json:"lista_id"`
	Descricao  string          `json:"descricao"`
	Valor      decimal.Decimal `json:"valor"`
	Quantidade *int            `json:"quantidade"`
}

// decodeRow converts a loosely typed row into T through its JSON form.
func decodeRow[T any](row port.Row) (*T, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return &out, nil
}

func decodeRows[T any, D any](rows []port.Row, convert func(*T) (D, error)) ([]D, error) {
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		raw, err := decodeRow[T](r)
		if err != nil {
			return nil, err
		}
		d, err := convert(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

func parseTime(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", *s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *accountRow) toDomain() (domain.Account, error) {
	created, err := parseTime(r.DataCriacao)
	if err != nil {
		return domain.Account{}, err
	}
	color := deref(r.Cor)
	if color == "" {
		color = domain.DefaultAccountColor
	}
	return domain.Account{
		ID:        r.ID,
		Name:      r.Nome,
		Bank:      r.Banco,
		Category:  r.Categoria,
		Balance:   domain.RoundAmount(r.Saldo),
		Color:     color,
		CreatedAt: created,
	}, nil
}

func (r *transactionRow) toDomain() (domain.Transaction, error) {
	date, err := parseTime(r.Data)
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		ID:          r.ID,
		AccountID:   r.ContaID,
		Kind:        domain.TransactionKind(r.Tipo),
		Amount:      domain.RoundAmount(r.Valor),
		Description: deref(r.Descricao),
		Date:        date,
		OperationID: deref(r.OperacaoID),
	}, nil
}

func (r *listRow) toDomain() (domain.ShoppingList, error) {
	created, err := parseTime(r.DataCriacao)
	if err != nil {
		return domain.ShoppingList{}, err
	}
	l := domain.ShoppingList{
		ID:        r.ID,
		Name:      r.Nome,
		CreatedAt: created,
		Completed: r.Concluida,
		AccountID: r.ContaID,
	}
	if r.DataConclusao != nil {
		done, err := parseTime(r.DataConclusao)
		if err != nil {
			return domain.ShoppingList{}, err
		}
		l.CompletedAt = &done
	}
	return l, nil
}

func (r *itemRow) toDomain() (domain.ListItem, error) {
	qty := 1
	if r.Quantidade != nil {
		qty = *r.Quantidade
	}
	return domain.ListItem{
		ID:          r.ID,
		ListID:      r.ListaID,
		Description: r.Descricao,
		UnitPrice:   domain.RoundAmount(r.Valor),
		Quantity:    qty,
	}, nil
}
