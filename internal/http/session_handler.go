package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
)

type SessionService interface {
	Save(ctx context.Context, data domain.SessionData) error
	Clear(ctx context.Context) error
	Authenticated() bool
	User() *domain.User
	RefreshToken() string
	ExpiresAt() (time.Time, bool)
}

type SessionHandler struct {
	session SessionService
	timeout time.Duration
}

func NewSessionHandler(session SessionService, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		session: session,
		timeout: timeout,
	}
}

type CreateSessionRequestDTO struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
}

type SessionResponseDTO struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
	Refreshable   bool         `json:"refreshable"`
}

func (h *SessionHandler) sessionResponse() SessionResponseDTO {
	resp := SessionResponseDTO{
		Authenticated: h.session.Authenticated(),
		User:          h.session.User(),
		Refreshable:   h.session.RefreshToken() != "",
	}
	if exp, ok := h.session.ExpiresAt(); ok {
		resp.ExpiresAt = &exp
	}
	return resp
}

// GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// POST /api/v1/session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateSessionRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	token := strings.TrimSpace(req.AccessToken)
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_token", "accessToken is required")
		return
	}

	err := h.session.Save(ctx, domain.SessionData{
		AccessToken:  token,
		RefreshToken: strings.TrimSpace(req.RefreshToken),
		User:         req.User,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.sessionResponse())
}

// DELETE /api/v1/session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.session.Clear(ctx); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// RequireSession rejects the request with 401 unless a live session exists.
func (h *SessionHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.session.Authenticated() {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "sign in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}
