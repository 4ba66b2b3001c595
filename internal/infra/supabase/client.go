// Package supabase provides a TableStore over the Supabase PostgREST API.
// It is the default data backend of the ledger.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/resilience"
	"github.com/boddenberg/controle-financeiro-go/internal/port"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// serviceName labels circuit breaker errors.
const serviceName = "supabase"

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a Supabase client. Reads are retried with backoff,
// writes are attempted once.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		logger:     logger,
	}
}

// Compile-time check.
var _ port.TableStore = (*Client)(nil)

// BaseURL returns the project URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError is a non-2xx PostgREST response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Body)
}

// execute runs fn inside the bulkhead and circuit breaker and maps failures
// to domain errors.
func (c *Client) execute(ctx context.Context, table, op string, retry bool, fn func() error) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrStoreUnavailable{Table: table, Op: op, Err: err}
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		if retry {
			return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
		}
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	return &domain.ErrStoreUnavailable{Table: table, Op: op, Err: err}
}

// Select fetches rows with PostgREST filters, ordering and limit.
func (c *Client) Select(ctx context.Context, table string, q port.Query) ([]port.Row, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Select")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	path := table + "?" + encodeQuery(q)

	var rows []port.Row
	err := c.execute(ctx, table, "select", true, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return err
		}
		rows, err = decodeRows(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectOne returns the first matching row or port.ErrRowNotFound.
func (c *Client) SelectOne(ctx context.Context, table string, filters ...port.Filter) (port.Row, error) {
	rows, err := c.Select(ctx, table, port.Query{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, port.ErrRowNotFound
	}
	return rows[0], nil
}

// Insert creates a row and returns its stored representation.
func (c *Client) Insert(ctx context.Context, table string, row port.Row) (port.Row, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	var out port.Row
	err := c.execute(ctx, table, "insert", false, func() error {
		body, err := c.doPost(ctx, table, row)
		if err != nil {
			return err
		}
		rows, err := decodeRows(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(fmt.Errorf("insert into %s returned no row", table))
		}
		out = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update patches the matching rows and returns how many were changed.
func (c *Client) Update(ctx context.Context, table string, filters []port.Filter, patch port.Row) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	path := table + "?" + encodeQuery(port.Query{Filters: filters})

	var n int
	err := c.execute(ctx, table, "update", false, func() error {
		body, err := c.doPatch(ctx, path, patch)
		if err != nil {
			return err
		}
		rows, err := decodeRows(body)
		n = len(rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes the matching rows. Cascades are enforced by the database.
func (c *Client) Delete(ctx context.Context, table string, filters ...port.Filter) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", table))

	path := table + "?" + encodeQuery(port.Query{Filters: filters})

	return c.execute(ctx, table, "delete", false, func() error {
		return c.doDelete(ctx, path)
	})
}

// doRequest executes an authenticated request to Supabase PostgREST.
// 4xx responses are returned as permanent errors.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reader *bytes.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		statusErr := &StatusError{Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// encodeQuery renders filters, order and limit in PostgREST syntax:
// col=eq.v, order=a.asc,b.desc, limit=n.
func encodeQuery(q port.Query) string {
	v := url.Values{}
	v.Set("select", "*")
	for _, f := range q.Filters {
		v.Add(f.Column, string(port.OpEq)+"."+formatValue(f.Value))
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v.Encode()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// decodeRows parses a PostgREST array, keeping numbers exact.
func decodeRows(body []byte) ([]port.Row, error) {
	rows := make([]port.Row, 0)
	if len(bytes.TrimSpace(body)) == 0 {
		return rows, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return rows, nil
}
