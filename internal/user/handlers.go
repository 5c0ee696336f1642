package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mangir/internal/reset"
	"mangir/internal/token"
)

const minPasswordLength = 8

// The same body is returned whether or not the email is registered, so the
// endpoint cannot be used to probe for accounts.
const genericResetMessage = "if the account exists, a reset code was sent"

type contextKey string

const userContextKey contextKey = "user"

type Handler struct {
	store  Store
	tokens *token.Service
	resets reset.Store
	logger *log.Logger
}

func NewHandler(store Store, tokens *token.Service, resets reset.Store, logger *log.Logger) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		resets: resets,
		logger: logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password", h.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/me", h.handleMe)
		r.Put("/profile", h.handleUpdateProfile)
		r.Put("/change-password", h.handleChangePassword)
	})

	return r
}

// RequireAuth resolves the bearer access token into a live user and injects
// it into the request context. A valid signature is not enough: the subject
// must still exist.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			h.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		email, err := h.tokens.VerifyAccess(raw)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		current, err := h.store.GetUserByEmail(r.Context(), email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				h.writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			h.writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), current)))
	})
}

// NewContext returns ctx carrying the authenticated user.
func NewContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// FromContext retrieves the authenticated user set by RequireAuth.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userContextKey).(User)
	return u, ok
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input RegisterRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := normalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)

	if !isValidEmail(email) {
		h.writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if fullName == "" {
		h.writeError(w, http.StatusBadRequest, "full name is required")
		return
	}
	if len(input.Password) < minPasswordLength {
		h.writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	created, err := h.store.CreateUser(r.Context(), email, fullName, hash)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			h.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// handleLogin accepts form credentials (username = email) and returns an
// access+refresh token pair.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	email := normalizeEmail(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		h.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	current, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	if err := verifyPassword(current.PasswordHash, password); err != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := h.tokens.IssuePair(current.Email)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var input RefreshRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.RefreshToken == "" {
		h.writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, email, err := h.tokens.Rotate(input.RefreshToken)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	// The subject must still resolve to a live user.
	if _, err := h.store.GetUserByEmail(r.Context(), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.writeJSON(w, http.StatusOK, current)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input UpdateProfileRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		h.writeError(w, http.StatusBadRequest, "full name is required")
		return
	}

	updated, err := h.store.UpdateProfile(r.Context(), current.ID, fullName, input.ProfileImage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input ChangePasswordRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := verifyPassword(current.PasswordHash, input.CurrentPassword); err != nil {
		h.writeError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		h.writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	hash, err := hashPassword(input.NewPassword)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := h.store.UpdatePassword(r.Context(), current.ID, hash); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input ForgotPasswordRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := normalizeEmail(input.Email)
	if !isValidEmail(email) {
		h.writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	if _, err := h.store.GetUserByEmail(r.Context(), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeJSON(w, http.StatusOK, map[string]string{"message": genericResetMessage})
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to create reset code")
		return
	}

	code, err := h.resets.Put(email)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to create reset code")
		return
	}

	// Delivery is out of scope; the code goes to the log for now.
	h.logger.Printf("password reset code for %s: %s", email, code)

	h.writeJSON(w, http.StatusOK, map[string]string{"message": genericResetMessage})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var input ResetPasswordRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := normalizeEmail(input.Email)
	if !isValidEmail(email) {
		h.writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		h.writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	if err := h.resets.Consume(email, input.ResetCode); err != nil {
		switch {
		case errors.Is(err, reset.ErrExpired):
			h.writeError(w, http.StatusBadRequest, "reset code expired")
		default:
			h.writeError(w, http.StatusBadRequest, "invalid or expired reset code")
		}
		return
	}

	current, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	hash, err := hashPassword(input.NewPassword)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := h.store.UpdatePassword(r.Context(), current.ID, hash); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successfully"})
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("json encode error: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isValidEmail(value string) bool {
	return value != "" && strings.Contains(value, "@")
}
