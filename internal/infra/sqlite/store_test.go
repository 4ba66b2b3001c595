package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/boddenberg/controle-financeiro-go/internal/infra/sqlite"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "controle.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controle.db")

	first, err := sqlite.Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first.Close()

	second, err := sqlite.Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("second open should be a no-op migration, got %v", err)
	}
	second.Close()
}

func TestInsert_ReturnsDefaults(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	row, err := s.Insert(ctx, schema.Lists, port.Row{"nome": "Feira", "concluida": false})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if row["id"] != int64(1) {
		t.Errorf("expected id 1, got %v (%T)", row["id"], row["id"])
	}
	if row["concluida"] != false {
		t.Errorf("expected concluida=false as bool, got %v (%T)", row["concluida"], row["concluida"])
	}
	if row["conta_id"] != nil {
		t.Errorf("expected null conta_id, got %v", row["conta_id"])
	}
	if ts, _ := row["data_criacao"].(string); ts == "" {
		t.Error("expected default creation timestamp")
	}
}

func TestUpdate_ConditionalOnState(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	acct, err := s.Insert(ctx, schema.Accounts, port.Row{"nome": "A", "banco": "B", "categoria": "C", "saldo": "0.00"})
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}
	list, _ := s.Insert(ctx, schema.Lists, port.Row{"nome": "Feira", "concluida": false})

	filters := []port.Filter{port.Eq("id", list["id"]), port.Eq("concluida", false)}
	patch := port.Row{"concluida": true, "conta_id": acct["id"]}

	n, err := s.Update(ctx, schema.Lists, filters, patch)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 row updated, got %d (%v)", n, err)
	}
	n, err = s.Update(ctx, schema.Lists, filters, patch)
	if err != nil || n != 0 {
		t.Fatalf("expected no row on second update, got %d (%v)", n, err)
	}

	got, _ := s.SelectOne(ctx, schema.Lists, port.Eq("id", list["id"]))
	if got["concluida"] != true {
		t.Errorf("expected concluida=true, got %v", got["concluida"])
	}
}

func TestDelete_ForeignKeysCascade(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	acct, _ := s.Insert(ctx, schema.Accounts, port.Row{"nome": "A", "banco": "B", "categoria": "C", "saldo": "0.00"})
	if _, err := s.Insert(ctx, schema.Transactions, port.Row{"conta_id": acct["id"], "tipo": "entrada", "valor": "10.00"}); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	list, _ := s.Insert(ctx, schema.Lists, port.Row{"nome": "Feira", "concluida": true, "conta_id": acct["id"]})
	if _, err := s.Insert(ctx, schema.Items, port.Row{"lista_id": list["id"], "descricao": "Arroz", "valor": "5.00", "quantidade": 2}); err != nil {
		t.Fatalf("insert item: %v", err)
	}

	if err := s.Delete(ctx, schema.Accounts, port.Eq("id", acct["id"])); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	txs, _ := s.Select(ctx, schema.Transactions, port.Query{})
	if len(txs) != 0 {
		t.Errorf("expected transactions to cascade, got %d", len(txs))
	}
	detached, err := s.SelectOne(ctx, schema.Lists, port.Eq("id", list["id"]))
	if err != nil {
		t.Fatalf("expected list to survive account delete: %v", err)
	}
	if detached["conta_id"] != nil {
		t.Errorf("expected list detached from account, got conta_id %v", detached["conta_id"])
	}

	if err := s.Delete(ctx, schema.Lists, port.Eq("id", list["id"])); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	items, _ := s.Select(ctx, schema.Items, port.Query{})
	if len(items) != 0 {
		t.Errorf("expected items to cascade, got %d", len(items))
	}
}

func TestSelect_OrderAndLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, name := range []string{"b", "c", "a"} {
		if _, err := s.Insert(ctx, schema.Lists, port.Row{"nome": name, "concluida": false}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, err := s.Select(ctx, schema.Lists, port.Query{Order: []port.Order{{Column: "nome", Desc: true}}, Limit: 2})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 || rows[0]["nome"] != "c" || rows[1]["nome"] != "b" {
		t.Errorf("unexpected order: %v", rows)
	}

	_, err = s.SelectOne(ctx, schema.Lists, port.Eq("nome", "z"))
	if !errors.Is(err, port.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
}

func TestSelect_RejectsInvalidIdentifiers(t *testing.T) {
	s := openStore(t)

	_, err := s.Select(context.Background(), schema.Lists, port.Query{Filters: []port.Filter{port.Eq("nome; DROP TABLE x", 1)}})
	if err == nil {
		t.Fatal("expected invalid identifier error")
	}
}
