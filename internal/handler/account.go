package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/JeffCSZ/vms/internal/model"
	"github.com/JeffCSZ/vms/internal/service"
)

// AccountHandler serves registration, login, and logout.
type AccountHandler struct {
	authSvc *service.AuthService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(authSvc *service.AuthService) *AccountHandler {
	return &AccountHandler{authSvc: authSvc}
}

// registerRequest is the expected payload for the Register endpoint.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	UnitNo   string `json:"unit_no,omitempty"`
	StreetNo string `json:"street_no,omitempty"`
}

// loginRequest is the expected payload for the Login endpoint. ExpectedRole
// lets each client app refuse accounts registered for the other side of the
// gate before a session starts.
type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ExpectedRole string `json:"expected_role,omitempty"`
	RememberMe   bool   `json:"remember_me,omitempty"`
}

// authResponse is the payload for a successful register or login.
type authResponse struct {
	Token       string    `json:"token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	UnitNo      string    `json:"unit_no,omitempty"`
	StreetNo    string    `json:"street_no,omitempty"`
}

func newAuthResponse(identity *model.Identity, token *service.Token) authResponse {
	return authResponse{
		Token:       token.Value,
		TokenType:   "bearer",
		ExpiresIn:   int(time.Until(token.ExpiresAt).Seconds()),
		ExpiresAt:   token.ExpiresAt,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        string(identity.Role),
		UnitNo:      identity.UnitNo,
		StreetNo:    identity.StreetNo,
	}
}

// Register creates an identity and returns a fresh token.
// POST /api/v1/account/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed",
			map[string]any{"fields": map[string]any{"email": "must be a valid email address"}})
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed",
			map[string]any{"fields": map[string]any{"role": err.Error()}})
		return
	}

	identity, token, err := h.authSvc.Register(r.Context(), req.Email, req.Password, role, req.UnitNo, req.StreetNo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "An account with this email already exists")
		case errors.Is(err, service.ErrWeakCredential):
			writeError(w, http.StatusBadRequest, "Validation failed",
				map[string]any{"fields": map[string]any{"password": err.Error()}})
		default:
			writeError(w, http.StatusInternalServerError, "Registration failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, newAuthResponse(identity, token))
}

// Login authenticates an identity and returns a session token.
// POST /api/v1/account/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	var expectedRole model.Role
	if req.ExpectedRole != "" {
		role, err := model.ParseRole(req.ExpectedRole)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Validation failed",
				map[string]any{"fields": map[string]any{"expected_role": err.Error()}})
			return
		}
		expectedRole = role
	}

	identity, token, err := h.authSvc.Authenticate(r.Context(), req.Email, req.Password, expectedRole)
	if err != nil {
		var mismatch *service.RoleMismatchError
		switch {
		case errors.As(err, &mismatch):
			// Named roles let the client redirect the user to the right app.
			writeError(w, http.StatusForbidden, capitalize(mismatch.Error()), map[string]any{
				"reason":        "role_mismatch",
				"stored_role":   string(mismatch.Stored),
				"expected_role": string(mismatch.Expected),
			})
		case errors.Is(err, service.ErrAccountLocked):
			writeError(w, http.StatusForbidden, "Account locked after repeated failed logins. Try again later.",
				map[string]any{"reason": "account_locked"})
		case errors.Is(err, service.ErrIdentityNotFound), errors.Is(err, service.ErrInvalidCredential):
			// Same message for both so login attempts can't probe for
			// registered emails.
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		default:
			writeError(w, http.StatusInternalServerError, "Authentication error: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(identity, token))
}

// Logout acknowledges a client-side token discard. Tokens are stateless, so
// there is nothing to revoke server-side; the short expiry is the only
// defense against a leaked token.
// POST /api/v1/account/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out. Remove the token from client storage.",
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
