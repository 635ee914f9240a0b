// Payment endpoints: intent creation, the provider webhook, and the signed
// return URL the provider redirects buyers to.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/varelagames/aldea/internal/payments"
)

func (s *Server) handlePayCreateIntent(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		AmountUSD int    `json:"amountUsd"`
		Currency  string `json:"currency,omitempty"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	in, err := s.Payments.CreateIntent(userID, req.AmountUSD, req.Currency)
	if errors.Is(err, payments.ErrTooSmall) {
		writeError(w, http.StatusBadRequest, "minimum purchase is 5 USD")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "intent failed")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "intent": in})
}

func (s *Server) handlePayWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad body")
		return
	}

	in, err := s.Payments.HandleWebhook(body,
		r.Header.Get("X-Webhook-Secret"), r.Header.Get("X-Signature"))
	switch {
	case errors.Is(err, payments.ErrBadSignature):
		writeError(w, http.StatusUnauthorized, "bad signature")
	case errors.Is(err, payments.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown intent")
	case err != nil:
		writeError(w, http.StatusBadRequest, "webhook rejected")
	default:
		writeJSON(w, map[string]any{"ok": true, "status": in.Status})
	}
}

// handlePayReturn lands the buyer back from the provider. The query carries
// the signed settlement fields; a valid signature redirects with a success
// status, anything else with failure.
func (s *Server) handlePayReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, _ := strconv.Atoi(q.Get("amountUsd"))
	ts, _ := strconv.ParseInt(q.Get("ts"), 10, 64)

	ok := s.Payments.VerifyReturn(q.Get("ref"), q.Get("txId"), amount, q.Get("currency"), ts, q.Get("sig"))
	status := "failed"
	if ok {
		status = "ok"
	}
	http.Redirect(w, r, "/?payment="+status, http.StatusSeeOther)
}

func (s *Server) handlePayStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if id := r.URL.Query().Get("id"); id != "" {
		in, ok := s.Payments.Intent(id)
		if !ok || in.UserID != userID {
			writeError(w, http.StatusNotFound, "unknown intent")
			return
		}
		writeJSON(w, map[string]any{"ok": true, "intent": in})
		return
	}
	writeJSON(w, map[string]any{"ok": true, "intents": s.Payments.ByUser(userID)})
}
