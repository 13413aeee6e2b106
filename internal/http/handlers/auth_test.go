package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"homestaging/internal/http/handlers"
	"homestaging/internal/http/httpapi"
	"homestaging/internal/identity"
	"homestaging/internal/infra"
	"homestaging/internal/ledger"
	"homestaging/internal/providers/retouch"
	"homestaging/internal/service"
	"homestaging/internal/storage"
	"homestaging/internal/tracker"
)

// identityStub mimics the provider's accounts REST API well enough for the
// auth flows: every sign-up and sign-in succeeds for the fixed credentials.
func identityStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "accounts:signUp"),
			strings.Contains(r.URL.Path, "accounts:signInWithPassword"):
			_ = json.NewEncoder(w).Encode(map[string]string{
				"localId":      "uid-42",
				"email":        "u@example.com",
				"idToken":      "provider-token",
				"refreshToken": "refresh-token",
			})
		case strings.Contains(r.URL.Path, "accounts:delete"):
			_ = json.NewEncoder(w).Encode(map[string]any{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAuthFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	spool, err := storage.NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	tr := tracker.New(retoucherFunc(func(ctx context.Context, req retouch.Request) ([]byte, error) {
		return []byte("staged"), nil
	}), spool, logger)
	t.Cleanup(tr.Close)
	lg := ledger.NewService(ledger.NewMemoryStore(), logger)

	idClient, err := identity.NewClient(identity.Options{
		APIKey:  "test-key",
		BaseURL: identityStub(t).URL,
	})
	if err != nil {
		t.Fatalf("identity.NewClient error: %v", err)
	}

	app := &handlers.App{
		Logger:         logger,
		Tracker:        tr,
		Service:        service.New(tr, lg, logger),
		Ledger:         lg,
		Identity:       idClient,
		JWTSecret:      testSecret,
		MaxUploadBytes: 4 << 20,
	}
	cfg := &infra.Config{
		JWTSecret:       testSecret,
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimitPerMin: 1000,
		DefaultLocale:   "fr",
	}
	srv := httptest.NewServer(httpapi.NewRouter(app, cfg))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, ledger: lg}
}

func TestSignUpGrantsWelcomeCredit(t *testing.T) {
	f := newAuthFixture(t)

	body := bytes.NewBufferString(`{"email":"u@example.com","password":"secret123"}`)
	resp := f.do(t, http.MethodPost, "/v1/auth/signup", "", body, "application/json")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d", resp.StatusCode)
	}
	var out struct {
		Token   string `json:"token"`
		Balance int    `json:"balance"`
		User    struct {
			UID string `json:"uid"`
		} `json:"user"`
	}
	decodeJSON(t, resp, &out)
	if out.Balance != 1 {
		t.Fatalf("expected the welcome credit, balance %d", out.Balance)
	}
	if out.Token == "" || out.User.UID != "uid-42" {
		t.Fatalf("unexpected session %+v", out)
	}

	// The minted token must work against the authenticated surface.
	resp = f.do(t, http.MethodGet, "/v1/credits", out.Token, nil, "")
	var bal struct {
		Balance int `json:"balance"`
	}
	decodeJSON(t, resp, &bal)
	if bal.Balance != 1 {
		t.Fatalf("expected balance 1 via API, got %d", bal.Balance)
	}
}

func TestSignInDoesNotGrantWelcome(t *testing.T) {
	f := newAuthFixture(t)

	body := bytes.NewBufferString(`{"email":"u@example.com","password":"secret123"}`)
	resp := f.do(t, http.MethodPost, "/v1/auth/signin", "", body, "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin status %d", resp.StatusCode)
	}
	var out struct {
		Balance int `json:"balance"`
	}
	decodeJSON(t, resp, &out)
	if out.Balance != 0 {
		t.Fatalf("sign-in must not seed credits, got %d", out.Balance)
	}
}

func TestInvoiceMessageFollowsLocale(t *testing.T) {
	f := newAuthFixture(t)
	token := sessionToken(t, "u1", "u1@example.com")

	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/v1/account/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Locale", "en")
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	var out struct {
		Message string `json:"message"`
	}
	decodeJSON(t, resp, &out)
	if !strings.Contains(out.Message, "u1@example.com") || !strings.HasPrefix(out.Message, "Your invoices") {
		t.Fatalf("unexpected invoice message %q", out.Message)
	}

	resp = f.do(t, http.MethodPost, "/v1/account/invoices", token, nil, "")
	decodeJSON(t, resp, &out)
	if !strings.HasPrefix(out.Message, "Vos factures") {
		t.Fatalf("expected the french default, got %q", out.Message)
	}
}

func TestAccountDeleteClearsLedger(t *testing.T) {
	f := newAuthFixture(t)

	body := bytes.NewBufferString(`{"email":"u@example.com","password":"secret123"}`)
	resp := f.do(t, http.MethodPost, "/v1/auth/signup", "", body, "application/json")
	var session struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp, &session)

	resp = f.do(t, http.MethodDelete, "/v1/account", session.Token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	balance, err := f.ledger.Balance(context.Background(), "uid-42")
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("ledger entry must not survive the account, got %d", balance)
	}
}
