package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/basalytics/basalytics/internal/auth"
	"github.com/basalytics/basalytics/internal/logging"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *logging.Logger
}

func NewAuthHandler(svc *auth.Service, logger *logging.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid login payload", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(r.Context(), "Login failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token})
}

// HandleLogout invalidates every token issued to the calling account.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.auth.Logout(r.Context(), auth.AccountID(r.Context())); err != nil {
		h.logger.ErrorContext(r.Context(), "Logout failed", "error", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the authenticated account id.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(auth.AccountID(r.Context())))
}
