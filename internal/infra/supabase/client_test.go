package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/resilience"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/supabase"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"
)

func newClient(t *testing.T, handler http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return supabase.NewClient(srv.Client(), srv.URL+"/", "anon-key",
		resilience.NewCircuitBreaker("supabase-test", zap.NewNop()), cfg, zap.NewNop())
}

func TestSelect_EncodesPostgRESTQuery(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAuth string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[{"id": 7, "saldo": 12.50, "nome": "Nubank"}]`))
	})

	rows, err := client.Select(context.Background(), schema.Transactions, port.Query{
		Filters: []port.Filter{port.Eq("conta_id", int64(7)), port.Eq("tipo", "saida")},
		Order:   []port.Order{{Column: "data", Desc: true}, {Column: "id", Desc: true}},
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/rest/v1/"+schema.Transactions {
		t.Errorf("unexpected path %s", gotPath)
	}
	want := "conta_id=eq.7&limit=50&order=data.desc%2Cid.desc&select=%2A&tipo=eq.saida"
	if gotQuery != want {
		t.Errorf("expected query %q, got %q", want, gotQuery)
	}
	if gotKey != "anon-key" || gotAuth != "Bearer anon-key" {
		t.Errorf("unexpected auth headers %q %q", gotKey, gotAuth)
	}

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if n, ok := rows[0]["saldo"].(json.Number); !ok || n.String() != "12.50" {
		t.Errorf("expected exact number 12.50, got %v (%T)", rows[0]["saldo"], rows[0]["saldo"])
	}
}

func TestInsert_PostsRowAndReturnsRepresentation(t *testing.T) {
	var method, prefer string
	var body map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		prefer = r.Header.Get("Prefer")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id": 3, "nome": "Feira", "concluida": false}]`))
	})

	row, err := client.Insert(context.Background(), schema.Lists, port.Row{"nome": "Feira", "concluida": false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodPost || prefer != "return=representation" {
		t.Errorf("unexpected request %s prefer=%q", method, prefer)
	}
	if body["nome"] != "Feira" {
		t.Errorf("unexpected body %v", body)
	}
	if row["id"] != json.Number("3") {
		t.Errorf("expected id 3, got %v", row["id"])
	}
}

func TestUpdate_CountsReturnedRows(t *testing.T) {
	var query string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		w.Write([]byte(`[]`))
	})

	n, err := client.Update(context.Background(), schema.Lists,
		[]port.Filter{port.Eq("id", int64(1)), port.Eq("concluida", false)},
		port.Row{"concluida": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows, got %d", n)
	}
	if query != "concluida=eq.false&id=eq.1&select=%2A" {
		t.Errorf("unexpected query %q", query)
	}
}

func TestSelect_MissingTableIsNotRetried(t *testing.T) {
	var calls int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"42P01","message":"relation does not exist"}`))
	})

	_, err := client.Select(context.Background(), schema.Accounts, port.Query{Limit: 1})

	var unavailable *domain.ErrStoreUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	var status *supabase.StatusError
	if !errors.As(err, &status) || status.Status != http.StatusNotFound {
		t.Errorf("expected wrapped 404 status error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestSelect_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})

	rows, err := client.Select(context.Background(), schema.Accounts, port.Query{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestWrites_AreNotRetried(t *testing.T) {
	var calls int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.Delete(context.Background(), schema.Transactions, port.Eq("operacao_id", "abc"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestCircuitOpen_IsReported(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = client.Delete(ctx, schema.Items, port.Eq("id", i))
	}

	err := client.Delete(ctx, schema.Items, port.Eq("id", 1))
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSelectOne_NoRows(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.SelectOne(context.Background(), schema.Accounts, port.Eq("id", 1))
	if !errors.Is(err, port.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
}
