package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/coursehub/internal/model"
)

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="coursehub"`)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireAuth is middleware that checks for a valid bearer token. Every
// failure ends in the same 401 response: a missing header, a bad signature,
// an expired token, a revoked session or a deactivated user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w)
			return
		}

		claims, err := h.tokens.Parse(token)
		if err != nil {
			slog.Debug("rejected bearer token", "error", err)
			unauthorized(w)
			return
		}

		authSess, err := h.store.GetAuthSession(claims.ID)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			unauthorized(w)
			return
		}
		if authSess == nil {
			unauthorized(w)
			return
		}
		if uid, err := claims.UserID(); err != nil || uid != authSess.UserID {
			unauthorized(w)
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || user == nil || !user.Active {
			unauthorized(w)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = model.ContextWithAuthSession(ctx, authSess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				unauthorized(w)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		})
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, err)
		return
	}
	if user == nil || !user.Active {
		unauthorized(w)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		unauthorized(w)
		return
	}

	authSess, err := h.store.CreateAuthSession(user.ID, h.config.TokenTTL)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, r, err)
		return
	}
	token, err := h.tokens.Issue(*user, authSess)
	if err != nil {
		slog.Error("failed to sign token", "error", err)
		writeError(w, r, err)
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: authSess.ExpiresAt, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := model.AuthSessionFromContext(r.Context()); id != "" {
		if err := h.store.DeleteAuthSession(id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64,alphanum"`
	DisplayName string `json:"display_name" validate:"max=128"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

// handleRegister lets anyone create a learner account.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.createUser(req.Username, req.DisplayName, req.Password, model.UserRoleLearner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) createUser(username, displayName, password string, role model.UserRole) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = username
	}
	id, err := h.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return nil, err
	}
	return h.store.GetUserByID(id)
}
