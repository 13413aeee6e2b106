package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"homestaging/internal/domain"
	"homestaging/internal/middleware"
)

type purchaseRequest struct {
	Credits int `json:"credits"`
}

type tierDTO struct {
	Credits    int `json:"credits"`
	PriceCents int `json:"price_cents"`
}

// CreditsGet returns the caller's balance.
func (a *App) CreditsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"balance": balance})
}

// CreditsTiers lists the purchasable packs.
func (a *App) CreditsTiers(w http.ResponseWriter, r *http.Request) {
	items := make([]tierDTO, 0, len(domain.Tiers))
	for _, t := range domain.Tiers {
		items = append(items, tierDTO{Credits: t.Credits, PriceCents: t.PriceCents})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// CreditsPurchase credits one of the fixed tiers to the caller's balance.
// Purchasing never unlocks anything by itself.
func (a *App) CreditsPurchase(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	balance, err := a.Service.Purchase(r.Context(), sess, req.Credits)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthenticationRequired):
			a.error(w, http.StatusUnauthorized, "authentication_required", "sign in to buy credits")
		case errors.Is(err, domain.ErrUnknownTier):
			a.error(w, http.StatusBadRequest, "unknown_tier", "no such credit pack")
		default:
			a.Logger.Error().Err(err).Msg("purchase failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to record purchase")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]int{"balance": balance})
}
