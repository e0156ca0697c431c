package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Gateway performs every network call that establishes or changes
// credentials. It never touches the Store; callers persist the result.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*Principal, error)
	ChangePasswordFirstLogin(ctx context.Context, token, oldPassword, newPassword string) error
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error
}

// Client is the HTTP implementation of Gateway against the
// condominium REST API. It also exposes the read-only admin calls the
// dashboard and user screens proxy.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(timeout, logger),
	}
}

// NewHTTPClient builds the shared upstream HTTP client: a hard timeout
// (a timeout surfaces as a network error) plus outbound call logging.
func NewHTTPClient(timeout time.Duration, logger *log.Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingRoundTripper{rt: http.DefaultTransport, logger: logger},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse accepts both the flat token payload and the nested
// user object the upstream includes alongside it.
type loginResponse struct {
	Access     string `json:"access"`
	Refresh    string `json:"refresh"`
	Username   string `json:"username"`
	Rol        string `json:"rol"`
	FirstLogin bool   `json:"first_login"`
	User       *struct {
		ID         int    `json:"id"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Rol        string `json:"rol"`
		FirstLogin bool   `json:"first_login"`
	} `json:"user"`
}

// Login exchanges credentials for a Principal.
func (c *Client) Login(ctx context.Context, username, password string) (*Principal, error) {
	resp, err := c.postJSON(ctx, "/api/auth/login/", "", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrorFromResponse(resp, "Credenciales inválidas")
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Code: CodeServer, Message: "Respuesta inválida del servidor"}
	}
	if payload.Access == "" {
		return nil, &Error{Code: CodeServer, Message: "Respuesta inválida del servidor"}
	}

	principal := &Principal{
		Username:   payload.Username,
		Rol:        payload.Rol,
		FirstLogin: payload.FirstLogin,
		Access:     payload.Access,
		Refresh:    payload.Refresh,
	}
	if payload.User != nil {
		principal.UserID = payload.User.ID
		principal.Username = payload.User.Username
		principal.Nombre = strings.TrimSpace(payload.User.FirstName + " " + payload.User.LastName)
		principal.Rol = payload.User.Rol
		principal.FirstLogin = payload.User.FirstLogin
	}
	return principal, nil
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordFirstLogin performs the mandatory first-login password
// change. A 2xx implies the upstream cleared the first-login flag.
func (c *Client) ChangePasswordFirstLogin(ctx context.Context, token, oldPassword, newPassword string) error {
	return c.changePassword(ctx, "/api/auth/cambio-password-primer-login/", token, oldPassword, newPassword)
}

// ChangePassword performs a standard password change for an already
// activated account.
func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	return c.changePassword(ctx, "/api/auth/cambio-password/", token, oldPassword, newPassword)
}

func (c *Client) changePassword(ctx context.Context, path, token, oldPassword, newPassword string) error {
	resp, err := c.postJSON(ctx, path, token, changePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		// The upstream answers 400 both for a wrong current password
		// ({"error": ...}) and for new-password policy failures (a
		// field error map). Only the former is a credential problem.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var detail upstreamDetail
		if json.Unmarshal(body, &detail) == nil && detail.Error != "" {
			return &Error{Code: CodeInvalidCredentials, Message: detail.Error}
		}
		return &Error{Code: CodeValidation, Message: "La nueva contraseña no cumple la política de seguridad"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrorFromResponse(resp, "No se pudo cambiar la contraseña")
	}
	return nil
}

// Usuario is a user record as listed by the upstream API.
type Usuario struct {
	ID               int    `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	NumeroResidencia string `json:"numero_residencia"`
	Telefono         string `json:"telefono"`
	Rol              string `json:"rol"`
	FirstLogin       bool   `json:"first_login"`
	IsActive         bool   `json:"is_active"`
}

// ListResidents fetches the resident accounts. Admin credential only.
func (c *Client) ListResidents(ctx context.Context, token string) ([]Usuario, error) {
	resp, err := c.get(ctx, "/api/auth/usuarios/?"+url.Values{"rol": {RolResidente}}.Encode(), token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrorFromResponse(resp, "No se pudo obtener la lista de residentes")
	}

	var usuarios []Usuario
	if err := json.NewDecoder(resp.Body).Decode(&usuarios); err != nil {
		return nil, &Error{Code: CodeServer, Message: "Respuesta inválida del servidor"}
	}
	return usuarios, nil
}

// AdminDashboard proxies the admin dashboard data.
func (c *Client) AdminDashboard(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/auth/admin-dashboard/", token)
}

// ResidenteDashboard proxies the resident dashboard data.
func (c *Client) ResidenteDashboard(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/auth/residente-dashboard/", token)
}

func (c *Client) getRaw(ctx context.Context, path, token string) (json.RawMessage, error) {
	resp, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrorFromResponse(resp, "No se pudo obtener los datos")
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &Error{Code: CodeServer, Message: "Respuesta inválida del servidor"}
	}
	return raw, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NetworkError()
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	setBearer(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NetworkError()
	}
	return resp, nil
}

// setBearer attaches the credential. Login is the only call made
// without one.
func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// loggingRoundTripper logs outbound API calls.
type loggingRoundTripper struct {
	rt     http.RoundTripper
	logger *log.Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := l.rt.RoundTrip(req)
	if l.logger != nil {
		if err != nil {
			l.logger.Printf("upstream %s %s failed: %v", req.Method, req.URL.Path, err)
		} else {
			l.logger.Printf("upstream %s %s -> %s", req.Method, req.URL.Path, resp.Status)
		}
	}
	return resp, err
}
