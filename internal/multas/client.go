package multas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/condo-portal/internal/auth"
)

// Client proxies the upstream /api/multas/ resource. The bearer
// credential is passed explicitly per call; the client itself holds no
// session state.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    auth.NewHTTPClient(timeout, logger),
	}
}

// List fetches fines. The upstream filters by the credential's role
// (admins see all, residents their own); query filters pass through.
func (c *Client) List(ctx context.Context, token string, query url.Values) (json.RawMessage, error) {
	path := "/api/multas/"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return c.doRaw(ctx, http.MethodGet, path, token, nil, http.StatusOK,
		"No se pudo obtener las multas")
}

// Create registers a new fine. Admin credential only.
func (c *Client) Create(ctx context.Context, token string, form Form) (json.RawMessage, error) {
	return c.doRaw(ctx, http.MethodPost, "/api/multas/", token, form, http.StatusCreated,
		"No se pudo crear la multa")
}

// Update replaces a fine. Admin credential only.
func (c *Client) Update(ctx context.Context, token string, id int, form Form) (json.RawMessage, error) {
	return c.doRaw(ctx, http.MethodPut, multaPath(id), token, form, http.StatusOK,
		"No se pudo actualizar la multa")
}

// Delete removes a fine. Admin credential only.
func (c *Client) Delete(ctx context.Context, token string, id int) error {
	resp, err := c.do(ctx, http.MethodDelete, multaPath(id), token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return auth.ErrorFromResponse(resp, "No se pudo eliminar la multa")
	}
	return nil
}

// MarkPaid marks a fine as paid and returns the updated record.
func (c *Client) MarkPaid(ctx context.Context, token string, id int) (json.RawMessage, error) {
	return c.doRaw(ctx, http.MethodPost, multaPath(id)+"marcar_como_pagada/", token, nil, http.StatusOK,
		"No se pudo marcar la multa como pagada")
}

// Stats fetches the admin-only fine totals.
func (c *Client) Stats(ctx context.Context, token string) (*Estadisticas, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/multas/estadisticas/", token, nil, http.StatusOK,
		"No se pudo obtener las estadísticas")
	if err != nil {
		return nil, err
	}
	var stats Estadisticas
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, &auth.Error{Code: auth.CodeServer, Message: "Respuesta inválida del servidor"}
	}
	return &stats, nil
}

func multaPath(id int) string {
	return "/api/multas/" + strconv.Itoa(id) + "/"
}

func (c *Client) doRaw(ctx context.Context, method, path, token string, body any, wantStatus int, failMessage string) (json.RawMessage, error) {
	resp, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return nil, auth.ErrorFromResponse(resp, failMessage)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &auth.Error{Code: auth.CodeServer, Message: "Respuesta inválida del servidor"}
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, auth.NetworkError()
	}
	return resp, nil
}
