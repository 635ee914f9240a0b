package api

import (
	"errors"
	"net/http"

	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/world"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Gender   string `json:"gender,omitempty"`
		Country  string `json:"country,omitempty"`
		Email    string `json:"email,omitempty"`
		Phone    string `json:"phone,omitempty"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	user, err := s.Profiles.Register(req.Username, req.Password, profile.Demographics{
		Gender: req.Gender, Country: req.Country, Email: req.Email, Phone: req.Phone,
	})
	switch {
	case errors.Is(err, profile.ErrUserExists):
		writeError(w, http.StatusConflict, "username already taken")
		return
	case errors.Is(err, profile.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid username or password")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := s.mintSession(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session failed")
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, map[string]any{"ok": true, "user": user, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	user, err := s.Profiles.VerifyLogin(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	// The ledger snapshot is the balance of record across sessions.
	s.Profiles.RestoreFromLedger(user.ID)
	prog := s.Profiles.EnsureProgress(user.ID)

	token, err := s.mintSession(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session failed")
		return
	}
	s.setSessionCookie(w, token)
	writeJSON(w, map[string]any{"ok": true, "user": user, "progress": prog, "token": token})
}

// handleLogout persists the client's final balances synchronously. A store
// failure propagates so the client knows the balance may not have saved.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Money *int `json:"money,omitempty"`
		Bank  *int `json:"bank,omitempty"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	money := s.Profiles.EnsureProgress(userID).Money
	if req.Money != nil {
		money = *req.Money
	}
	mp := money
	if err := s.Profiles.SaveAndFlush(userID, &mp, req.Bank); err != nil {
		writeError(w, http.StatusInternalServerError, "balance save failed")
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	user, ok := s.Profiles.UserByID(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "user": user.Public(), "progress": s.Profiles.EnsureProgress(userID)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	switch err := s.Profiles.ChangePassword(userID, req.NewPassword); {
	case errors.Is(err, profile.ErrValidation):
		writeError(w, http.StatusBadRequest, "password too short")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "change failed")
	default:
		writeJSON(w, map[string]any{"ok": true})
	}
}

// handleProgress returns or patches the caller's durable progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]any{"ok": true, "progress": s.Profiles.EnsureProgress(userID)})
	case http.MethodPost:
		var patch profile.ProgressPatch
		if !readJSON(w, r, &patch) {
			return
		}
		if err := s.Profiles.UpdateProgress(userID, patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid patch")
			return
		}
		writeJSON(w, map[string]any{"ok": true, "progress": s.Profiles.EnsureProgress(userID)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST")
	}
}

func (s *Server) handleGov(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "government": s.Registry.GovernmentState()})
}

func (s *Server) handleGovFundsAdd(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Amount int `json:"amount"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	funds, ok := s.Registry.AddGovernmentFunds(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be non-zero")
		return
	}
	s.Profiles.Note("gov_funds", userID, map[string]any{"amount": req.Amount})
	writeJSON(w, map[string]any{"ok": true, "funds": funds})
}

// handleStructures serves the placed factories and banks, and lets an
// authenticated caller push the bootstrap layout.
func (s *Server) handleStructures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		factories, banks := s.Registry.Structures()
		writeJSON(w, map[string]any{
			"ok": true, "factories": factories, "banks": banks, "houses": s.Registry.Houses(),
		})
	case http.MethodPost:
		if _, _, err := s.sessionFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		var req struct {
			Factories []world.Structure `json:"factories"`
			Banks     []world.Structure `json:"banks"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		s.Registry.SetWorldStructures(req.Factories, req.Banks)
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST")
	}
}
