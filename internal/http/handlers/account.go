package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"homestaging/internal/middleware"
)

type passwordChangeRequest struct {
	NewPassword string `json:"new_password"`
}

var invoiceMessages = map[string]string{
	"fr": "Vos factures ont été envoyées à %s.",
	"en": "Your invoices have been sent to %s.",
}

// AccountPasswordChange forwards a password change to the identity provider
// on behalf of the session. The provider may demand a recent sign-in; its
// refusal reason is passed through.
func (a *App) AccountPasswordChange(w http.ResponseWriter, r *http.Request) {
	if a.Identity == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "identity provider not configured")
		return
	}
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	providerToken := middleware.ProviderTokenFromContext(r.Context())
	if providerToken == "" {
		a.error(w, http.StatusUnauthorized, "reauthentication_required", "session carries no provider token, sign in again")
		return
	}
	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "new_password required")
		return
	}
	if err := a.Identity.ChangePassword(r.Context(), providerToken, req.NewPassword); err != nil {
		a.identityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AccountInvoicesSend acknowledges an invoice request. Invoicing is simulated:
// no mail leaves the server, the client just shows the localized confirmation.
func (a *App) AccountInvoicesSend(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	tmpl, ok := invoiceMessages[locale]
	if !ok {
		tmpl = invoiceMessages["fr"]
	}
	a.json(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf(tmpl, sess.Email),
	})
}

// AccountDelete removes the account from the identity provider and clears the
// user's balance and jobs. The ledger entry must not survive the account.
func (a *App) AccountDelete(w http.ResponseWriter, r *http.Request) {
	if a.Identity == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "identity provider not configured")
		return
	}
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	providerToken := middleware.ProviderTokenFromContext(r.Context())
	if providerToken == "" {
		a.error(w, http.StatusUnauthorized, "reauthentication_required", "session carries no provider token, sign in again")
		return
	}
	if err := a.Identity.DeleteAccount(r.Context(), providerToken); err != nil {
		a.identityError(w, err)
		return
	}
	if err := a.Ledger.Clear(r.Context(), sess.UID); err != nil {
		a.Logger.Error().Err(err).Str("user_id", sess.UID).Msg("ledger clear failed after account deletion")
	}
	a.Tracker.ClearAll(sess.UID)
	a.Logger.Info().Str("user_id", sess.UID).Msg("account deleted")
	w.WriteHeader(http.StatusNoContent)
}
