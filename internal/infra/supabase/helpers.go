package supabase

import (
	"bytes"
	"context"
	"net/http"

	"github.com/boddenberg/controle-financeiro-go/internal/port"
)

// ============================================================
// HTTP helpers for POST, PATCH, DELETE
// ============================================================

func (c *Client) doPost(ctx context.Context, table string, row port.Row) ([]byte, error) {
	return c.doRequest(ctx, http.MethodPost, table, row, "return=representation")
}

func (c *Client) doPatch(ctx context.Context, path string, patch port.Row) ([]byte, error) {
	return c.doRequest(ctx, http.MethodPatch, path, patch, "return=representation")
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil, "return=minimal")
	return err
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
