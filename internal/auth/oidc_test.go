package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testClientID = "k-notes-web"

// fakeOIDCProvider levanta un proveedor OIDC mínimo sobre httptest:
// descubrimiento, JWKS, intercambio de código y userinfo.
type fakeOIDCProvider struct {
	t   *testing.T
	key *rsa.PrivateKey
	srv *httptest.Server

	mu            sync.Mutex
	tokenCalls    int
	usedCodes     map[string]bool
	nonce         string
	audience      []string
	email         string
	userinfoEmail string
	omitIDToken   bool
}

func newFakeOIDCProvider(t *testing.T) *fakeOIDCProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	p := &fakeOIDCProvider{
		t:         t,
		key:       key,
		usedCodes: make(map[string]bool),
		audience:  []string{testClientID},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(t, w, map[string]any{
			"issuer":                                p.srv.URL,
			"authorization_endpoint":                p.srv.URL + "/auth",
			"token_endpoint":                        p.srv.URL + "/token",
			"userinfo_endpoint":                     p.srv.URL + "/userinfo",
			"jwks_uri":                              p.srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(t, w, map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   "AQAB",
			}},
		})
	})
	mux.HandleFunc("/token", p.handleToken)
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		p.mu.Lock()
		email := p.userinfoEmail
		p.mu.Unlock()
		body := map[string]any{"sub": "subject-123"}
		if email != "" {
			body["email"] = email
		}
		writeTestJSON(t, w, body)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeOIDCProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.t.Errorf("parse token form: %v", err)
	}
	code := r.PostFormValue("code")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenCalls++

	// Los códigos de autorización son de un solo uso.
	if code == "" || p.usedCodes[code] {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}
	p.usedCodes[code] = true

	resp := map[string]any{
		"access_token": "fake-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !p.omitIDToken {
		resp["id_token"] = p.signIDToken()
	}
	writeTestJSON(p.t, w, resp)
}

func (p *fakeOIDCProvider) signIDToken() string {
	claims := jwt.MapClaims{
		"iss":   p.srv.URL,
		"sub":   "subject-123",
		"aud":   p.audience,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"nonce": p.nonce,
	}
	if p.email != "" {
		claims["email"] = p.email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(p.key)
	if err != nil {
		p.t.Errorf("sign id token: %v", err)
	}
	return signed
}

func (p *fakeOIDCProvider) setNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

func (p *fakeOIDCProvider) tokenCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCalls
}

func newTestRelyingParty(t *testing.T, p *fakeOIDCProvider, resourceID string) *RelyingParty {
	t.Helper()
	rp, err := NewRelyingParty(context.Background(), OIDCConfig{
		Issuer:       p.srv.URL,
		ClientID:     testClientID,
		ClientSecret: "web-secret",
		RedirectURL:  "http://localhost:3000/api/v1/auth/oidc/callback",
		ResourceID:   resourceID,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new relying party: %v", err)
	}
	return rp
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestRelyingParty_SuccessfulCallback(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.email = "alice@example.com"
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}
	for _, param := range []string{"code_challenge=", "code_challenge_method=S256", "nonce=", "state="} {
		if !strings.Contains(req.URL, param) {
			t.Fatalf("authorization url missing %q: %s", param, req.URL)
		}
	}

	p.setNonce(req.Nonce)
	user, err := rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if err != nil {
		t.Fatalf("resolve callback: %v", err)
	}
	if user.Subject != "subject-123" {
		t.Fatalf("unexpected subject %q", user.Subject)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", user.Email)
	}
}

func TestRelyingParty_StateMismatchBeforeAnyNetworkCall(t *testing.T) {
	p := newFakeOIDCProvider(t)
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	_, err = rp.ResolveCallback(context.Background(), "code-1", "attacker-state", req.FlowState)
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
	if n := p.tokenCallCount(); n != 0 {
		t.Fatalf("token endpoint reached %d times before state check", n)
	}

	// FlowState ausente nunca matchea, ni contra un state vacío.
	_, err = rp.ResolveCallback(context.Background(), "code-1", "", FlowState{})
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch for empty stored state, got %v", err)
	}
}

func TestRelyingParty_NonceMismatch(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.email = "alice@example.com"
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	p.setNonce("some-other-nonce")
	_, err = rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}

func TestRelyingParty_MissingIDToken(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.omitIDToken = true
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	_, err = rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if !errors.Is(err, ErrMissingIDToken) {
		t.Fatalf("expected ErrMissingIDToken, got %v", err)
	}
}

func TestRelyingParty_UserInfoEmailFallback(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.userinfoEmail = "bob@example.com"
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	p.setNonce(req.Nonce)
	user, err := rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if err != nil {
		t.Fatalf("resolve callback: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Fatalf("expected userinfo email, got %q", user.Email)
	}
}

func TestRelyingParty_NoEmailAnywhere(t *testing.T) {
	p := newFakeOIDCProvider(t)
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	p.setNonce(req.Nonce)
	_, err = rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
}

func TestRelyingParty_CodeReplayFails(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.email = "alice@example.com"
	rp := newTestRelyingParty(t, p, "")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	p.setNonce(req.Nonce)
	if _, err := rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState); err != nil {
		t.Fatalf("first callback: %v", err)
	}

	_, err = rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed on replay, got %v", err)
	}
}

func TestRelyingParty_ResourceAudienceAccepted(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.email = "alice@example.com"
	p.audience = []string{"k-notes-api"}
	rp := newTestRelyingParty(t, p, "k-notes-api")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	p.setNonce(req.Nonce)
	user, err := rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if err != nil {
		t.Fatalf("resolve callback: %v", err)
	}
	if user.Subject != "subject-123" {
		t.Fatalf("unexpected subject %q", user.Subject)
	}
}

func TestRelyingParty_UnknownAudienceRejected(t *testing.T) {
	p := newFakeOIDCProvider(t)
	p.email = "alice@example.com"
	p.audience = []string{"someone-else"}
	rp := newTestRelyingParty(t, p, "k-notes-api")

	req, err := rp.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}

	p.setNonce(req.Nonce)
	_, err = rp.ResolveCallback(context.Background(), "code-1", req.State, req.FlowState)
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("expected ErrInvalidIDToken, got %v", err)
	}
}
