package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(level zapcore.Level) (http.Handler, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	r := chi.NewRouter()
	r.Use(observability.RequestLogger(zap.New(core)))
	r.Get("/v1/accounts/{accountId}", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/v1/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r, logs
}

func TestRequestLogger_LogsRoutePattern(t *testing.T) {
	router, logs := newLoggedRouter(zapcore.InfoLevel)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/accounts/42", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/v1/accounts/{accountId}" {
		t.Errorf("expected route pattern, got %v", fields["route"])
	}
	if fields["status"] != int64(200) {
		t.Errorf("expected status 200, got %v", fields["status"])
	}
	if fields["bytes"] != int64(2) {
		t.Errorf("expected 2 bytes, got %v", fields["bytes"])
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	router, logs := newLoggedRouter(zapcore.DebugLevel)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/boom", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/missing", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := []zapcore.Level{zapcore.ErrorLevel, zapcore.WarnLevel, zapcore.DebugLevel}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, lvl := range want {
		if entries[i].Level != lvl {
			t.Errorf("entry %d: expected %s, got %s", i, lvl, entries[i].Level)
		}
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger := observability.NewLogger("test", "verbose")
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug disabled for unknown level")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info enabled")
	}
}
