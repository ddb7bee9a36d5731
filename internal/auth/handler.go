package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/utils"
)

// Handler serves admin login and logout. The admin identity comes from
// configuration only.
type Handler struct {
	Admin       config.AdminConfig
	Issuer      *TokenIssuer
	Hasher      *BcryptHasher
	Revocations RevocationStore
	Logger      *logger.Logger
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if h.Admin.Email == "" || h.Admin.PasswordHash == "" {
		h.Logger.Error("AUTH", "Login attempted but no administrator is configured")
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Administrator login is not configured", "ADMIN_EMAIL or ADMIN_PASSWORD_HASH missing"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(h.Admin.Email))) == 1
	passwordOK := h.Hasher.Verify(req.Password, h.Admin.PasswordHash)
	if !emailOK || !passwordOK {
		h.Logger.LogSecurity("LOGIN", fmt.Sprintf("failed login for %q", email))
		_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid credentials", "invalid credentials"))
		return
	}

	token, claims, err := h.Issuer.Issue(email)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Login: %v", err))
		_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not issue token", err.Error()))
		return
	}

	h.Logger.Info("AUTH", fmt.Sprintf("Administrator %s logged in", email))
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged in", models.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(claims.ExpiresAt.Sub(claims.IssuedAt.Time).Seconds()),
		TokenType:   "Bearer",
	}))
}

// Logout revokes the token used for the request.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := Claims(r.Context())
	if claims == nil {
		_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Not logged in", "missing token"))
		return
	}

	if err := h.Revocations.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Logout: %v", err))
		_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not log out", err.Error()))
		return
	}
	h.Logger.Info("AUTH", fmt.Sprintf("Administrator %s logged out", claims.Subject))
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged out", nil))
}
