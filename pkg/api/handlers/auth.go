package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/api/auth"
	"github.com/marmos91/xgate/pkg/identity"
)

// AuthHandler handles authentication endpoints for the control API.
type AuthHandler struct {
	store  identity.Store
	tokens *auth.TokenService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store identity.Store, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		store:  store,
		tokens: tokens,
	}
}

// LoginRequest is the request body for POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/v1/login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
}

// Login handles POST /api/v1/login.
// Authenticates user credentials against the user file and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	if h.store == nil {
		Unauthorized(w, "API login is not configured")
		return
	}

	// Validate credentials
	if err := h.store.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			Unauthorized(w, "Invalid username or password")
			return
		}
		InternalServerError(w, "Authentication failed")
		return
	}

	token, err := h.tokens.Generate(req.Username)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	logger.InfoCtx(r.Context(), "API login", "username", req.Username)

	response := LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		ExpiresAt:   token.ExpiresAt,
		Username:    req.Username,
	}

	WriteJSONOK(w, response)
}
