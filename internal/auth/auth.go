package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/config"
	"nodebase/backend/internal/repository"
	"nodebase/backend/pkg/models"
)

// DevSubject is the OIDC subject assumed for every request when the dev
// bypass is active.
const DevSubject = "dev@localhost"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth contains configuration and helpers for performing OpenID Connect
// authentication with an Okta tenant, and resolves verified callers to
// tenants.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	tenants      repository.TenantStore
	logger       Logger
	defaultTier  models.Tier
	devTier      models.Tier
	authBypass   bool
}

// New creates a new Auth object using values from the application
// configuration. It establishes a connection to the provider and prepares an
// ID token verifier.
func New(ctx context.Context, cfg *config.Config, tenants repository.TenantStore, logger Logger) (*Auth, error) {
	shouldBypass := cfg.IsDev() && cfg.DevModeBypass

	a := &Auth{
		tenants:     tenants,
		logger:      logger,
		defaultTier: tierOr(cfg.Auth.DefaultTier, models.TierFree),
		devTier:     tierOr(cfg.Auth.DevTier, models.TierPremium),
		authBypass:  shouldBypass,
	}
	if shouldBypass {
		return a, nil
	}

	if cfg.Auth.OktaDomain == "" || cfg.Auth.ClientID == "" ||
		cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, errors.New("auth configuration is incomplete")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
	if err != nil {
		return nil, err
	}

	a.oauth2Config = &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       LoginScopes,
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})
	// Access tokens carry an API audience (e.g. "api://default"), not the client id.
	a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return a, nil
}

func tierOr(s string, def models.Tier) models.Tier {
	if t := models.Tier(strings.ToLower(s)); t.Valid() {
		return t
	}
	return def
}

// Bypass reports whether every request is treated as the dev tenant.
func (a *Auth) Bypass() bool { return a.authBypass }

// LoginHandler initiates the OAuth2 authorization code flow by redirecting the
// user to the Okta authorization endpoint. A random state value is stored in a
// cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the redirect back from Okta. It verifies the state
// parameter, exchanges the code for tokens, validates the ID token, and sets a
// session cookie containing the raw ID token.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Authenticate is middleware that resolves the caller to a tenant and stores
// the resulting Identity in the request context. Requests without a valid
// token pass through with an unauthenticated Identity; the workflow service
// decides what they may do.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		if err != nil {
			a.logger.Error("failed to resolve tenant", "error", err)
			writeProblem(w, r, http.StatusInternalServerError, "tenant resolution failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// identify returns the zero Identity when the request carries no usable
// token. The error is only set for storage failures.
func (a *Auth) identify(r *http.Request) (Identity, error) {
	ctx := r.Context()
	if a.authBypass {
		tenant, err := a.resolveTenant(ctx, DevSubject, DevSubject, a.devTier)
		if err != nil {
			return Identity{}, err
		}
		return Identity{CallerID: tenant.ID, Email: tenant.Email, Tier: a.devTier, Authenticated: true}, nil
	}

	token, ok := a.verify(r)
	if !ok {
		return Identity{}, nil
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := token.Claims(&claims); err != nil {
		a.logger.Debug("failed to parse token claims", "error", err)
		return Identity{}, nil
	}
	if token.Subject == "" {
		return Identity{}, nil
	}

	tenant, err := a.resolveTenant(ctx, token.Subject, claims.Email, a.defaultTier)
	if err != nil {
		return Identity{}, err
	}
	return Identity{CallerID: tenant.ID, Email: tenant.Email, Tier: tenant.Tier, Authenticated: true}, nil
}

func (a *Auth) verify(r *http.Request) (*oidc.IDToken, bool) {
	// Authorization header first (Swagger/API/MCP clients), then the session cookie.
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		if a.apiVerifier == nil {
			return nil, false
		}
		token, err := a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			a.logger.Debug("bearer token rejected", "error", err)
			return nil, false
		}
		return token, true
	}

	cookie, err := r.Cookie("id_token")
	if err != nil || a.verifier == nil {
		return nil, false
	}
	token, err := a.verifier.Verify(r.Context(), cookie.Value)
	if err != nil {
		a.logger.Debug("session cookie rejected", "error", err)
		return nil, false
	}
	return token, true
}

// resolveTenant looks up the tenant for subject, provisioning it with tier
// on first sight.
func (a *Auth) resolveTenant(ctx context.Context, subject, email string, tier models.Tier) (*models.Tenant, error) {
	tenant, err := a.tenants.GetTenantBySubject(ctx, subject)
	if err == nil {
		return tenant, nil
	}
	if apperror.KindOf(err) != apperror.KindNotFound {
		return nil, err
	}

	tenant = &models.Tenant{Subject: subject, Email: email, Tier: tier}
	if err := a.tenants.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	a.logger.Info("provisioned tenant", "tenant_id", tenant.ID, "tier", tenant.Tier)
	return tenant, nil
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
