package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// stubGateway is an in-memory Gateway for Manager tests.
type stubGateway struct {
	principal      *Principal
	loginErr       error
	changeErr      error
	rejectPassword string

	loginCalls  atomic.Int32
	changeCalls atomic.Int32
	loginDelay  time.Duration
	changeDelay time.Duration
}

func (g *stubGateway) Login(ctx context.Context, username, password string) (*Principal, error) {
	g.loginCalls.Add(1)
	if g.loginDelay > 0 {
		time.Sleep(g.loginDelay)
	}
	if g.loginErr != nil {
		return nil, g.loginErr
	}
	if g.rejectPassword != "" && password == g.rejectPassword {
		return nil, &Error{Code: CodeInvalidCredentials, Message: "Credenciales inválidas"}
	}
	clone := *g.principal
	return &clone, nil
}

func (g *stubGateway) ChangePasswordFirstLogin(ctx context.Context, token, oldPassword, newPassword string) error {
	g.changeCalls.Add(1)
	if g.changeDelay > 0 {
		time.Sleep(g.changeDelay)
	}
	return g.changeErr
}

func (g *stubGateway) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	g.changeCalls.Add(1)
	return g.changeErr
}

type stateView struct {
	Authenticated bool   `json:"authenticated"`
	Admin         bool   `json:"admin"`
	FirstLogin    bool   `json:"first_login"`
	Token         string `json:"token"`
}

func newManagerApp(gateway Gateway) (*Manager, http.Handler) {
	return newManagerAppWith(gateway, NewCookieStore())
}

func newManagerAppWith(gateway Gateway, store Store) (*Manager, http.Handler) {
	manager := NewManager(gateway, store, nil)
	router := newSessionRouter()
	router.Use(manager.Hydrate())
	router.POST("/login", manager.HandleLogin)
	router.POST("/logout", manager.HandleLogout)
	router.POST("/cambio-password-primer-login", manager.HandleChangePasswordFirstLogin)
	router.POST("/cambio-password", manager.HandleChangePassword)
	router.GET("/state", func(c *gin.Context) {
		state := CurrentState(c)
		c.JSON(http.StatusOK, stateView{
			Authenticated: state.IsAuthenticated(),
			Admin:         state.IsAdmin(),
			FirstLogin:    state.IsFirstLogin(),
			Token:         state.Token(),
		})
	})
	return manager, router
}

type testClient struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (cl *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	cl.t.Helper()
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			cl.t.Fatalf("failed to encode body: %v", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	cl.handler.ServeHTTP(rec, req)
	cl.cookies = mergeCookies(cl.cookies, rec.Result().Cookies())
	return rec
}

func (cl *testClient) state() stateView {
	cl.t.Helper()
	rec := cl.do(http.MethodGet, "/state", nil)
	if rec.Code != http.StatusOK {
		cl.t.Fatalf("state endpoint failed: %d", rec.Code)
	}
	var view stateView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		cl.t.Fatalf("failed to parse state: %v", err)
	}
	return view
}

func residentFirstLogin() *Principal {
	return &Principal{Username: "ana", Rol: RolResidente, FirstLogin: true, Access: "tok1"}
}

func TestLoginStoresPrincipal(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	rec := client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse login response: %v", err)
	}
	if payload.Redirect != FirstLoginPath {
		t.Fatalf("first login must redirect to the password change, got %q", payload.Redirect)
	}

	view := client.state()
	if !view.Authenticated || !view.FirstLogin || view.Token != "tok1" {
		t.Fatalf("unexpected state after login: %#v", view)
	}
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})

	gateway.loginErr = &Error{Code: CodeInvalidCredentials, Message: "Credenciales inválidas"}
	rec := client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "mala"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	view := client.state()
	if !view.Authenticated || view.Token != "tok1" {
		t.Fatalf("failed login must not mutate the session: %#v", view)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})

	for i := 0; i < 2; i++ {
		rec := client.do(http.MethodPost, "/logout", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("logout %d failed: %d", i+1, rec.Code)
		}
		view := client.state()
		if view.Authenticated || view.Token != "" {
			t.Fatalf("expected empty session after logout %d: %#v", i+1, view)
		}
	}
}

func TestChangePasswordFirstLoginClearsFlag(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})

	rec := client.do(http.MethodPost, "/cambio-password-primer-login", map[string]string{
		"old_password":     "correcta",
		"new_password":     "nueva12345",
		"confirm_password": "nueva12345",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("password change failed: %d body=%s", rec.Code, rec.Body.String())
	}

	view := client.state()
	if !view.Authenticated || view.FirstLogin {
		t.Fatalf("flag must be cleared and persisted: %#v", view)
	}
	if view.Token != "tok1" {
		t.Fatalf("credential is assumed unchanged, got %q", view.Token)
	}
}

func TestShortNewPasswordRejectedBeforeNetwork(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})

	rec := client.do(http.MethodPost, "/cambio-password-primer-login", map[string]string{
		"old_password":     "correcta",
		"new_password":     "corta1",
		"confirm_password": "corta1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if gateway.changeCalls.Load() != 0 {
		t.Fatalf("short password must be rejected before any network call")
	}

	view := client.state()
	if !view.FirstLogin {
		t.Fatalf("session must stay untouched after a rejected change: %#v", view)
	}
}

func TestPasswordConfirmationMismatchRejected(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})

	rec := client.do(http.MethodPost, "/cambio-password-primer-login", map[string]string{
		"old_password":     "correcta",
		"new_password":     "nueva12345",
		"confirm_password": "otra12345",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if gateway.changeCalls.Load() != 0 {
		t.Fatalf("mismatch must be rejected before any network call")
	}
}

func TestChangePasswordRequiresSession(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin()}
	_, handler := newManagerApp(gateway)
	client := &testClient{t: t, handler: handler}

	rec := client.do(http.MethodPost, "/cambio-password", map[string]string{
		"old_password":     "correcta",
		"new_password":     "nueva12345",
		"confirm_password": "nueva12345",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", rec.Code)
	}
}

// memoryStore is a Store shared by every request, standing in for a
// server-side session backend.
type memoryStore struct {
	mu sync.Mutex
	p  *Principal
}

func (s *memoryStore) Save(c *gin.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.p = &clone
	return nil
}

func (s *memoryStore) Load(c *gin.Context) *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p == nil {
		return nil
	}
	clone := *s.p
	return &clone
}

func (s *memoryStore) Clear(c *gin.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = nil
	return nil
}

func TestConcurrentDuplicateLoginsCollapse(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin(), loginDelay: 100 * time.Millisecond}
	_, handler := newManagerApp(gateway)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &testClient{t: t, handler: handler}
			rec := client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})
			if rec.Code != http.StatusOK {
				t.Errorf("login failed: %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	if calls := gateway.loginCalls.Load(); calls != 1 {
		t.Fatalf("duplicate concurrent logins must share one upstream call, got %d", calls)
	}
}

func TestDifferentPasswordsKeepSeparateFlights(t *testing.T) {
	gateway := &stubGateway{
		principal:      residentFirstLogin(),
		loginDelay:     100 * time.Millisecond,
		rejectPassword: "mala",
	}
	_, handler := newManagerApp(gateway)

	passwords := []string{"mala", "correcta"}
	codes := make([]int, len(passwords))
	var wg sync.WaitGroup
	for i := range passwords {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := &testClient{t: t, handler: handler}
			rec := client.do(http.MethodPost, "/login", map[string]string{
				"username": "ana",
				"password": passwords[i],
			})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	if codes[0] != http.StatusUnauthorized {
		t.Fatalf("the wrong password must be rejected, got %d", codes[0])
	}
	if codes[1] != http.StatusOK {
		t.Fatalf("the correct password must not share the rejected flight, got %d", codes[1])
	}
	if calls := gateway.loginCalls.Load(); calls != 2 {
		t.Fatalf("non-identical submissions must reach the upstream separately, got %d", calls)
	}
}

func TestStaleChangeCompletionDiscarded(t *testing.T) {
	gateway := &stubGateway{principal: residentFirstLogin(), changeDelay: 150 * time.Millisecond}
	store := &memoryStore{}
	_, handler := newManagerAppWith(gateway, store)
	client := &testClient{t: t, handler: handler}

	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		changer := &testClient{t: t, handler: handler}
		rec := changer.do(http.MethodPost, "/cambio-password-primer-login", map[string]string{
			"old_password":     "correcta",
			"new_password":     "nueva12345",
			"confirm_password": "nueva12345",
		})
		if rec.Code != http.StatusOK {
			t.Errorf("password change failed: %d", rec.Code)
		}
	}()

	// A second login lands while the change is still in flight.
	time.Sleep(50 * time.Millisecond)
	client.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "correcta"})
	wg.Wait()

	p := store.Load(nil)
	if p == nil || p.Seq != 2 {
		t.Fatalf("the newer login must win: %#v", p)
	}
	if !p.FirstLogin {
		t.Fatal("a stale completion must not clear the flag on the newer session")
	}
}
