package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// RelyingParty implementa el lado cliente del login OIDC: descubrimiento al
// arrancar, generación de requests de autorización y resolución del callback.
// La metadata descubierta es inmutable y segura para uso concurrente.
type RelyingParty struct {
	provider   *oidc.Provider
	oauth      oauth2.Config
	resourceID string
	httpClient *http.Client
	logger     *zap.Logger
}

type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	ResourceID   string
}

// FlowState es la tripleta efímera de un intento de autorización. El llamador
// la persiste en la sesión antes del redirect y la borra apenas consume el
// callback, con éxito o sin él; ese borrado es lo que hace los valores de un
// solo uso. Nunca se loguea.
type FlowState struct {
	State        string
	Nonce        string
	PKCEVerifier string
}

// AuthorizationRequest es el resultado de la fase de inicio.
type AuthorizationRequest struct {
	URL string
	FlowState
}

// OidcUser es la identidad verificada que entrega el callback.
type OidcUser struct {
	Subject string
	Email   string
}

var (
	ErrStateMismatch      = errors.New("oidc state mismatch")
	ErrExchangeFailed     = errors.New("oidc code exchange failed")
	ErrMissingIDToken     = errors.New("oidc response missing id token")
	ErrInvalidIDToken     = errors.New("oidc id token invalid")
	ErrInvalidAccessToken = errors.New("oidc access token hash mismatch")
	ErrMissingEmail       = errors.New("oidc identity has no email")
)

// NewRelyingParty corre el descubrimiento OIDC contra el issuer. Si el
// descubrimiento falla la capacidad OIDC no se habilita: el error es fatal
// para el constructor, no por request.
func NewRelyingParty(ctx context.Context, cfg OIDCConfig, logger *zap.Logger) (*RelyingParty, error) {
	// El endpoint de intercambio nunca se sigue a través de un redirect.
	httpClient := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery against %s failed: %w", cfg.Issuer, err)
	}

	return &RelyingParty{
		provider: provider,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		resourceID: strings.TrimSpace(cfg.ResourceID),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BeginAuthorization genera un request de autorización nuevo: challenge PKCE
// S256, state anti-CSRF y nonce aleatorios.
func (rp *RelyingParty) BeginAuthorization() (AuthorizationRequest, error) {
	state, err := randomToken()
	if err != nil {
		return AuthorizationRequest{}, err
	}
	nonce, err := randomToken()
	if err != nil {
		return AuthorizationRequest{}, err
	}
	verifier := oauth2.GenerateVerifier()

	url := rp.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)

	return AuthorizationRequest{
		URL: url,
		FlowState: FlowState{
			State:        state,
			Nonce:        nonce,
			PKCEVerifier: verifier,
		},
	}, nil
}

// ResolveCallback resuelve el intercambio del callback en un par verificado
// (subject, email). La comparación de state ocurre antes de cualquier llamada
// de red. Un segundo intento con el mismo FlowState falla en el proveedor
// (invalid_grant): el código de autorización y el verifier son de un solo uso.
func (rp *RelyingParty) ResolveCallback(ctx context.Context, code, suppliedState string, stored FlowState) (OidcUser, error) {
	if stored.State == "" ||
		subtle.ConstantTimeCompare([]byte(suppliedState), []byte(stored.State)) != 1 {
		return OidcUser{}, ErrStateMismatch
	}

	ctx = oidc.ClientContext(ctx, rp.httpClient)

	token, err := rp.oauth.Exchange(ctx, code, oauth2.VerifierOption(stored.PKCEVerifier))
	if err != nil {
		rp.logger.Debug("oidc code exchange failed", zap.Error(err))
		return OidcUser{}, ErrExchangeFailed
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return OidcUser{}, ErrMissingIDToken
	}

	idToken, err := rp.verifyIDToken(ctx, rawIDToken)
	if err != nil {
		rp.logger.Debug("oidc id token verification failed", zap.Error(err))
		return OidcUser{}, ErrInvalidIDToken
	}

	// El nonce ata el token al intento iniciado en la fase A.
	if idToken.Nonce == "" ||
		subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(stored.Nonce)) != 1 {
		return OidcUser{}, ErrInvalidIDToken
	}

	if idToken.AccessTokenHash != "" && token.AccessToken != "" {
		if err := idToken.VerifyAccessToken(token.AccessToken); err != nil {
			return OidcUser{}, ErrInvalidAccessToken
		}
	}

	email, err := rp.extractEmail(ctx, idToken, token)
	if err != nil {
		return OidcUser{}, err
	}

	return OidcUser{Subject: idToken.Subject, Email: email}, nil
}

// verifyIDToken valida firma y claims. Con un resource id configurado la
// verificación de audience acepta ese recurso como audiencia adicional
// confiable; sin él aplica el chequeo estándar de client id.
func (rp *RelyingParty) verifyIDToken(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	if rp.resourceID == "" {
		verifier := rp.provider.VerifierContext(ctx, &oidc.Config{ClientID: rp.oauth.ClientID})
		return verifier.Verify(ctx, rawIDToken)
	}

	verifier := rp.provider.VerifierContext(ctx, &oidc.Config{SkipClientIDCheck: true})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(idToken.Audience, rp.oauth.ClientID) &&
		!slices.Contains(idToken.Audience, rp.resourceID) {
		return nil, fmt.Errorf("id token audience %v not trusted", idToken.Audience)
	}
	return idToken, nil
}

// extractEmail toma el email de los claims del ID token y, si falta, cae al
// endpoint UserInfo con el access token. Sin email no hay identidad válida.
func (rp *RelyingParty) extractEmail(ctx context.Context, idToken *oidc.IDToken, token *oauth2.Token) (string, error) {
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", ErrInvalidIDToken
	}
	if claims.Email != "" {
		return claims.Email, nil
	}

	rp.logger.Debug("email missing in id token, falling back to userinfo")
	userInfo, err := rp.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return "", ErrMissingEmail
	}
	if userInfo.Email == "" {
		return "", ErrMissingEmail
	}
	return userInfo.Email, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
