package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"homestaging/internal/domain"
	"homestaging/internal/middleware"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenVerifyRequest struct {
	IDToken string `json:"id_token"`
}

type sessionResponse struct {
	Token   string  `json:"token"`
	User    userDTO `json:"user"`
	Balance int     `json:"balance"`
}

type userDTO struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// AuthSignUp registers a new account with the identity provider, grants the
// one-time welcome credit and mints a session token.
func (a *App) AuthSignUp(w http.ResponseWriter, r *http.Request) {
	if a.Identity == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "identity provider not configured")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "email and password required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	acct, err := a.Identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		a.identityError(w, err)
		return
	}

	balance, err := a.Ledger.GrantWelcome(r.Context(), acct.UID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", acct.UID).Msg("welcome grant failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to initialize balance")
		return
	}

	token, err := a.mintSession(acct.UID, acct.Email, acct.IDToken)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.json(w, http.StatusCreated, sessionResponse{
		Token:   token,
		User:    userDTO{UID: acct.UID, Email: acct.Email},
		Balance: balance,
	})
}

// AuthSignIn authenticates an existing account and mints a session token.
func (a *App) AuthSignIn(w http.ResponseWriter, r *http.Request) {
	if a.Identity == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "identity provider not configured")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "email and password required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	acct, err := a.Identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		a.identityError(w, err)
		return
	}

	balance, err := a.Ledger.Balance(r.Context(), acct.UID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", acct.UID).Msg("balance read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}

	token, err := a.mintSession(acct.UID, acct.Email, acct.IDToken)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.json(w, http.StatusOK, sessionResponse{
		Token:   token,
		User:    userDTO{UID: acct.UID, Email: acct.Email},
		Balance: balance,
	})
}

// AuthTokenVerify exchanges a provider-issued ID token (federated sign-in on
// the client) for a session token. The first exchange for an account seeds
// the welcome credit.
func (a *App) AuthTokenVerify(w http.ResponseWriter, r *http.Request) {
	if a.Verifier == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "token verification not configured")
		return
	}
	var req tokenVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	claims, err := a.Verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("id token verify failed")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid id token")
		return
	}
	uid, _ := claims["user_id"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	email, _ := claims["email"].(string)
	if uid == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "token carries no subject")
		return
	}

	balance, err := a.Ledger.EnsureWelcome(r.Context(), uid)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", uid).Msg("welcome seed failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to initialize balance")
		return
	}

	token, err := a.mintSession(uid, email, req.IDToken)
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.json(w, http.StatusOK, sessionResponse{
		Token:   token,
		User:    userDTO{UID: uid, Email: email},
		Balance: balance,
	})
}

// Me returns the authenticated user's profile and balance.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), sess.UID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"user":    userDTO{UID: sess.UID, Email: sess.Email},
		"balance": balance,
	})
}

func (a *App) mintSession(uid, email, providerToken string) (string, error) {
	return middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:           uid,
		Email:         email,
		ProviderToken: providerToken,
		Exp:           time.Now().Add(24 * time.Hour).Unix(),
		Issuer:        "homestaging-api",
		Audience:      "homestaging-web",
	})
}

// identityError maps provider refusals to 401 with the provider's own reason;
// the web client shows it verbatim on the auth screen.
func (a *App) identityError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrIdentityOperation) {
		a.error(w, http.StatusUnauthorized, "identity_operation_failed", err.Error())
		return
	}
	a.error(w, http.StatusBadGateway, "identity_unreachable", "identity provider unreachable")
}
