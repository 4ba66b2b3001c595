package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/cache"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/schema"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var setupTracer = otel.Tracer("service/setup")

const readyKey = "tables_ready"

// StoreFactory opens a finance store for the given Supabase credentials.
type StoreFactory func(storeURL, apiKey string) (port.FinanceStore, error)

// SetupOptions wires the setup service.
type SetupOptions struct {
	Backend      string
	ReadinessTTL time.Duration
	// OpenStore is nil for backends that take no credentials.
	OpenStore StoreFactory
	// SaveCredentials persists credentials accepted by Configure.
	SaveCredentials func(storeURL, apiKey string) error
	NewFinance      func(port.FinanceStore) *FinanceService
}

// SetupService owns the current FinanceService and decides whether finance
// operations may run: credentials must be present and the tables provisioned.
type SetupService struct {
	opts   SetupOptions
	logger *zap.Logger

	mu       sync.Mutex // serializes Configure
	current  atomic.Pointer[FinanceService]
	storeURL atomic.Value // string
	ready    *cache.InMemory[bool]
}

// NewSetupService creates a setup service with no store installed.
func NewSetupService(opts SetupOptions, logger *zap.Logger) *SetupService {
	s := &SetupService{
		opts:   opts,
		logger: logger,
		ready:  cache.New[bool](opts.ReadinessTTL),
	}
	s.storeURL.Store("")
	return s
}

// Install makes finance the service used by every request.
func (s *SetupService) Install(finance *FinanceService, storeURL string) {
	s.current.Store(finance)
	s.storeURL.Store(storeURL)
	s.ready.Clear()
}

// Close releases background resources.
func (s *SetupService) Close() {
	s.ready.Stop()
}

// Finance returns the current finance service, or ErrNotConfigured /
// ErrSetupIncomplete when it cannot be used yet. A positive readiness answer
// is cached for the configured TTL.
func (s *SetupService) Finance(ctx context.Context) (*FinanceService, error) {
	f := s.current.Load()
	if f == nil {
		return nil, &domain.ErrNotConfigured{Reason: "SUPABASE_URL and SUPABASE_KEY are not set"}
	}
	if ready, ok := s.ready.Get(readyKey); ok && ready {
		return f, nil
	}

	ctx, span := setupTracer.Start(ctx, "SetupService.CheckTables")
	defer span.End()

	if !f.TablesExist(ctx) {
		return nil, &domain.ErrSetupIncomplete{}
	}
	s.ready.Set(readyKey, true)
	return f, nil
}

// Status reports the backend, whether a store is configured and whether its
// tables exist.
func (s *SetupService) Status(ctx context.Context) *domain.SetupStatus {
	ctx, span := setupTracer.Start(ctx, "SetupService.Status")
	defer span.End()

	status := &domain.SetupStatus{
		Backend:  s.opts.Backend,
		StoreURL: s.storeURL.Load().(string),
	}
	if f := s.current.Load(); f != nil {
		status.Configured = true
		status.TablesReady = f.TablesExist(ctx)
		if status.TablesReady {
			s.ready.Set(readyKey, true)
		}
	}
	return status
}

// Configure validates and stores new Supabase credentials, then switches
// every subsequent request to the new store.
func (s *SetupService) Configure(ctx context.Context, storeURL, apiKey string) (*domain.SetupStatus, error) {
	ctx, span := setupTracer.Start(ctx, "SetupService.Configure")
	defer span.End()

	if s.opts.OpenStore == nil {
		return nil, &domain.ErrConflict{Message: "backend " + s.opts.Backend + " does not use store credentials"}
	}

	storeURL = strings.TrimRight(strings.TrimSpace(storeURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	if err := validateCredentials(storeURL, apiKey); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.opts.OpenStore(storeURL, apiKey)
	if err != nil {
		return nil, err
	}
	if s.opts.SaveCredentials != nil {
		if err := s.opts.SaveCredentials(storeURL, apiKey); err != nil {
			s.logger.Error("failed to save credentials", zap.Error(err))
			return nil, err
		}
	}

	s.Install(s.opts.NewFinance(store), storeURL)
	s.logger.Info("store configured", zap.String("store_url", storeURL))

	return s.Status(ctx), nil
}

// SchemaSQL returns the idempotent script that creates the tables.
func (s *SetupService) SchemaSQL() (string, error) {
	return schema.Script()
}

// TestConnection reads the accounts table and reports the outcome.
func (s *SetupService) TestConnection(ctx context.Context) *domain.ConnectionTest {
	ctx, span := setupTracer.Start(ctx, "SetupService.TestConnection")
	defer span.End()

	f := s.current.Load()
	if f == nil {
		return &domain.ConnectionTest{Success: false, Error: (&domain.ErrNotConfigured{}).Error()}
	}
	if err := f.store.Probe(ctx); err != nil {
		return &domain.ConnectionTest{Success: false, Error: err.Error()}
	}
	s.ready.Set(readyKey, true)
	return &domain.ConnectionTest{Success: true, Message: "connection OK: tables found"}
}

func validateCredentials(storeURL, apiKey string) error {
	u, err := url.Parse(storeURL)
	if storeURL == "" || err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &domain.ErrValidation{Field: "supabase_url", Message: "must be an http(s) URL"}
	}
	if apiKey == "" {
		return &domain.ErrValidation{Field: "supabase_key", Message: "required"}
	}
	return nil
}
