package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/servicehub/internal/engine"
	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

type AuthHandler struct {
	users         repository.UserRepo
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(users repository.UserRepo, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{users: users, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	engine.Settings
	Role     models.Role `json:"role"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
}

type signinRequest struct {
	Role     models.Role `json:"role"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, "signup", &req); err != nil {
		writeError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, fmt.Errorf("hash password: %w", err))
		return
	}

	u := models.NewUser(req.Role, strings.ToLower(strings.TrimSpace(req.Email)), "")
	req.Settings.Apply(&u)
	u.PasswordHash = string(hash)

	if err := h.users.CreateUser(r.Context(), &u); err != nil {
		writeError(w, fmt.Errorf("create %s %s: %w", u.Role, u.Email, err))
		return
	}

	h.respondWithToken(w, u, http.StatusCreated)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeBody(r, "signin", &req); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.users.GetUser(r.Context(), req.Role, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, fmt.Errorf("load user: %w", err))
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized", "credentials not found")
		return
	}

	h.respondWithToken(w, *u, http.StatusOK)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, u models.User, status int) {
	tokenStr, err := issueToken(h.jwtSecret, h.tokenDuration, u.Role, u.Email)
	if err != nil {
		writeError(w, fmt.Errorf("sign token: %w", err))
		return
	}
	writeJSON(w, authResponse{Token: tokenStr, User: market.Normalize(u)}, status)
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	writeJSON(w, map[string]string{"message": "signed out"}, http.StatusOK)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r, h.users)
	if !ok {
		return
	}
	writeJSON(w, market.Normalize(u), http.StatusOK)
}

// currentUser loads the signed-in user. A token whose user is gone is
// answered with 401 and ok=false.
func currentUser(w http.ResponseWriter, r *http.Request, users repository.UserRepo) (models.User, bool) {
	u, err := lookupUser(r.Context(), users)
	if err != nil {
		writeError(w, err)
		return models.User{}, false
	}
	if u == nil {
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized", "unknown user")
		return models.User{}, false
	}
	return *u, true
}

func lookupUser(ctx context.Context, users repository.UserRepo) (*models.User, error) {
	role, email, ok := identity(ctx)
	if !ok {
		return nil, nil
	}
	u, err := users.GetUser(ctx, role, email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
