package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/hlog"

	"github.com/erazemk/tailore/internal/auth"
	"github.com/erazemk/tailore/internal/model"
	"github.com/erazemk/tailore/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB          *sqlx.DB
	JWTSecret   string
	TokenExpiry time.Duration
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

func (req *registerRequest) normalize() {
	req.Username = strings.TrimSpace(req.Username)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	role := model.RoleUser
	if req.Role != "" && req.Role != model.RoleUser {
		claims := GetClaims(r.Context())
		if claims == nil || !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
			jsonError(w, r, http.StatusForbidden, "Admin access required to assign roles")
			return
		}
		role = req.Role
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(w, r, "hashing password", err)
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Username, hash, role)
	if errors.Is(err, store.ErrConflict) {
		jsonError(w, r, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		internalError(w, r, "creating user", err)
		return
	}

	hlog.FromRequest(r).Info().Str("username", user.Username).Str("role", user.Role).Msg("user registered")
	jsonOK(w, r, http.StatusCreated, "User registered successfully", user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		internalError(w, r, "getting user", err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		hlog.FromRequest(r).Warn().Str("username", req.Username).Str("remote", r.RemoteAddr).Msg("login failed")
		jsonError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, h.TokenExpiry, user.ID, user.Username, user.Role)
	if err != nil {
		internalError(w, r, "generating token", err)
		return
	}

	hlog.FromRequest(r).Info().Str("username", user.Username).Str("role", user.Role).Msg("user logged in")
	jsonOK(w, r, http.StatusOK, "Login successful", loginResponse{Token: token, User: user})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, r, http.StatusUnauthorized, "No token provided")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, r, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(w, r, "getting user", err)
		return
	}

	jsonOK(w, r, http.StatusOK, "", user)
}
