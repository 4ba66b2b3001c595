package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/memory"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/repository"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"
	"github.com/boddenberg/controle-financeiro-go/internal/service"
)

type savedCredentials struct {
	url, key string
	calls    int
}

func newSetup(t *testing.T, ttl time.Duration, mem *memory.Store, saved *savedCredentials) *service.SetupService {
	t.Helper()
	metrics := observability.NewMetrics()
	newFinance := func(store port.FinanceStore) *service.FinanceService {
		return service.NewFinanceService(store, undoCfg, metrics, zap.NewNop())
	}
	s := service.NewSetupService(service.SetupOptions{
		Backend:      "supabase",
		ReadinessTTL: ttl,
		OpenStore: func(storeURL, apiKey string) (port.FinanceStore, error) {
			return repository.New(mem), nil
		},
		SaveCredentials: func(storeURL, apiKey string) error {
			saved.url, saved.key = storeURL, apiKey
			saved.calls++
			return nil
		},
		NewFinance: newFinance,
	}, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func TestSetup_NotConfigured(t *testing.T) {
	s := newSetup(t, time.Minute, memory.New(), &savedCredentials{})

	_, err := s.Finance(context.Background())
	var notConfigured *domain.ErrNotConfigured
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	status := s.Status(context.Background())
	if status.Configured || status.TablesReady || status.Backend != "supabase" {
		t.Errorf("unexpected status %+v", status)
	}

	result := s.TestConnection(context.Background())
	if result.Success || result.Error == "" {
		t.Errorf("expected failed connection test, got %+v", result)
	}
}

func TestSetup_ConfigureInstallsStore(t *testing.T) {
	saved := &savedCredentials{}
	s := newSetup(t, time.Minute, memory.New(), saved)
	ctx := context.Background()

	status, err := s.Configure(ctx, "  https://abc.supabase.co/ ", " secret ")
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !status.Configured || !status.TablesReady || status.StoreURL != "https://abc.supabase.co" {
		t.Errorf("unexpected status %+v", status)
	}
	if saved.calls != 1 || saved.url != "https://abc.supabase.co" || saved.key != "secret" {
		t.Errorf("unexpected saved credentials %+v", saved)
	}

	finance, err := s.Finance(ctx)
	if err != nil {
		t.Fatalf("finance: %v", err)
	}
	if _, err := finance.CreateList(ctx, "Feira"); err != nil {
		t.Errorf("create list through installed store: %v", err)
	}

	result := s.TestConnection(ctx)
	if !result.Success {
		t.Errorf("expected successful connection test, got %+v", result)
	}
}

func TestSetup_ConfigureValidation(t *testing.T) {
	saved := &savedCredentials{}
	s := newSetup(t, time.Minute, memory.New(), saved)

	cases := []struct {
		url, key, field string
	}{
		{"", "k", "supabase_url"},
		{"ftp://host", "k", "supabase_url"},
		{"not a url", "k", "supabase_url"},
		{"https://abc.supabase.co", "  ", "supabase_key"},
	}
	for _, c := range cases {
		_, err := s.Configure(context.Background(), c.url, c.key)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) || verr.Field != c.field {
			t.Errorf("Configure(%q, %q): expected validation error on %s, got %v", c.url, c.key, c.field, err)
		}
	}
	if saved.calls != 0 {
		t.Errorf("expected nothing saved, got %d calls", saved.calls)
	}
}

func TestSetup_SetupIncompleteUntilTablesExist(t *testing.T) {
	mem := memory.New()
	mem.DropTable(schema.Accounts)
	s := newSetup(t, 0, mem, &savedCredentials{})
	ctx := context.Background()

	status, err := s.Configure(ctx, "https://abc.supabase.co", "secret")
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !status.Configured || status.TablesReady {
		t.Errorf("expected configured without tables, got %+v", status)
	}

	_, err = s.Finance(ctx)
	var incomplete *domain.ErrSetupIncomplete
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected ErrSetupIncomplete, got %v", err)
	}

	result := s.TestConnection(ctx)
	if result.Success || !strings.Contains(result.Error, schema.Accounts) {
		t.Errorf("expected connection test to name the missing table, got %+v", result)
	}
}

func TestSetup_InstallWithoutCredentials(t *testing.T) {
	mem := memory.New()
	s := service.NewSetupService(service.SetupOptions{Backend: "memory", ReadinessTTL: time.Minute}, zap.NewNop())
	defer s.Close()
	s.Install(service.NewFinanceService(repository.New(mem), undoCfg, observability.NewMetrics(), zap.NewNop()), "")

	if _, err := s.Finance(context.Background()); err != nil {
		t.Fatalf("finance: %v", err)
	}

	_, err := s.Configure(context.Background(), "https://abc.supabase.co", "secret")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict for a backend without credentials, got %v", err)
	}
}

func TestSetup_SchemaSQL(t *testing.T) {
	s := newSetup(t, time.Minute, memory.New(), &savedCredentials{})

	script, err := s.SchemaSQL()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, table := range []string{schema.Accounts, schema.Transactions, schema.Lists, schema.Items} {
		if !strings.Contains(script, table) {
			t.Errorf("expected script to create %s", table)
		}
	}
}
