// Package handlers contains the HTTP handlers for the home staging API.
package handlers

import (
	"encoding/json"
	"net/http"

	"homestaging/internal/identity"
	"homestaging/internal/infra"
	"homestaging/internal/ledger"
	"homestaging/internal/middleware"
	"homestaging/internal/service"
	"homestaging/internal/tracker"
)

type App struct {
	Logger   infra.Logger
	Tracker  *tracker.Tracker
	Service  *service.Service
	Ledger   *ledger.Service
	Identity *identity.Client
	Verifier *identity.Verifier

	JWTSecret      string
	MaxUploadBytes int64
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorResponse{Error: code, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	if sess := middleware.SessionFromContext(r.Context()); sess.Authenticated() {
		return sess.UID
	}
	return ""
}
