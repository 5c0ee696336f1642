package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mangir/internal/reset"
	"mangir/internal/token"
)

type fakeStore struct {
	users  map[string]User
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]User)}
}

func (f *fakeStore) CreateUser(ctx context.Context, email, fullName, passwordHash string) (User, error) {
	if _, exists := f.users[email]; exists {
		return User{}, ErrEmailExists
	}
	f.nextID++
	u := User{
		ID:           f.nextID,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	f.users[email] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, ok := f.users[email]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id int64, fullName string, profileImage *string) (User, error) {
	for email, u := range f.users {
		if u.ID == id {
			u.FullName = fullName
			if profileImage != nil {
				u.ProfileImage = profileImage
			}
			f.users[email] = u
			return u, nil
		}
	}
	return User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	for email, u := range f.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			f.users[email] = u
			return nil
		}
	}
	return sql.ErrNoRows
}

type testEnv struct {
	router http.Handler
	store  *fakeStore
	tokens *token.Service
	resets *reset.MemoryStore
}

func newTestEnv(resetTTL time.Duration) *testEnv {
	store := newFakeStore()
	tokens := token.NewService("test-secret", 30*time.Minute, 7*24*time.Hour)
	resets := reset.NewMemoryStore(resetTTL)
	handler := NewHandler(store, tokens, resets, log.New(io.Discard, "", 0))
	return &testEnv{
		router: handler.Routes(),
		store:  store,
		tokens: tokens,
		resets: resets,
	}
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	rec := e.postJSON(t, "/register", map[string]string{
		"email":     email,
		"full_name": "Test User",
		"password":  password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed with status %d: %s", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	rec := env.postJSON(t, "/register", map[string]string{
		"email":     "alice@example.com",
		"full_name": "Alice Again",
		"password":  "password456",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(env.store.users) != 1 {
		t.Fatalf("expected a single user row, got %d", len(env.store.users))
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(15 * time.Minute)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "full_name": "A", "password": "password123"}},
		{"blank name", map[string]string{"email": "a@example.com", "full_name": "  ", "password": "password123"}},
		{"short password", map[string]string{"email": "a@example.com", "full_name": "A", "password": "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.postJSON(t, "/register", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
		})
	}
}

func TestRegisterNeverReturnsPasswordHash(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	rec := env.postJSON(t, "/register", map[string]string{
		"email":     "alice@example.com",
		"full_name": "Alice",
		"password":  "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password material: %s", rec.Body.String())
	}
}

func TestLoginReturnsTokenPair(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	rec := postForm(t, env.router, "/login", url.Values{
		"username": {"alice@example.com"},
		"password": {"password123"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var pair token.Pair
	decodeResponse(t, rec, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "bearer" {
		t.Fatalf("unexpected token pair: %+v", pair)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	for _, values := range []url.Values{
		{"username": {"alice@example.com"}, "password": {"wrong-password"}},
		{"username": {"nobody@example.com"}, "password": {"password123"}},
	} {
		rec := postForm(t, env.router, "/login", values)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("unexpected status: %d", rec.Code)
		}
	}
}

func TestMeRejectsVanishedSubject(t *testing.T) {
	env := newTestEnv(15 * time.Minute)

	// A structurally valid access token whose subject has no user row.
	pair, err := env.tokens.IssuePair("ghost@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMeReturnsCurrentUser(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	pair, err := env.tokens.IssuePair("alice@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var me User
	decodeResponse(t, rec, &me)
	if me.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", me)
	}
}

func TestMeRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	pair, err := env.tokens.IssuePair("alice@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	pair, err := env.tokens.IssuePair("alice@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := env.postJSON(t, "/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var next token.Pair
	decodeResponse(t, rec, &next)
	if next.AccessToken == pair.AccessToken || next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh did not rotate the pair")
	}

	// The rotated-away refresh token is no longer usable.
	rec = env.postJSON(t, "/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRefreshUnknownSubject(t *testing.T) {
	env := newTestEnv(15 * time.Minute)

	pair, err := env.tokens.IssuePair("ghost@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := env.postJSON(t, "/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestForgotPasswordGenericResponse(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	known := env.postJSON(t, "/forgot-password", map[string]string{"email": "alice@example.com"})
	unknown := env.postJSON(t, "/forgot-password", map[string]string{"email": "nobody@example.com"})

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("unexpected statuses: %d, %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ: %q vs %q", known.Body.String(), unknown.Body.String())
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	code, err := env.resets.Put("alice@example.com")
	if err != nil {
		t.Fatalf("put reset code: %v", err)
	}

	rec := env.postJSON(t, "/reset-password", map[string]string{
		"email":        "alice@example.com",
		"reset_code":   code,
		"new_password": "new-password-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d: %s", rec.Code, rec.Body.String())
	}

	stored := env.store.users["alice@example.com"]
	if err := verifyPassword(stored.PasswordHash, "new-password-1"); err != nil {
		t.Fatalf("new password not persisted: %v", err)
	}

	// The code was consumed with the successful reset.
	rec = env.postJSON(t, "/reset-password", map[string]string{
		"email":        "alice@example.com",
		"reset_code":   code,
		"new_password": "new-password-2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestResetPasswordExpiredCode(t *testing.T) {
	// A negative TTL makes every issued code already expired.
	env := newTestEnv(-time.Minute)
	env.register(t, "alice@example.com", "password123")

	code, err := env.resets.Put("alice@example.com")
	if err != nil {
		t.Fatalf("put reset code: %v", err)
	}

	rec := env.postJSON(t, "/reset-password", map[string]string{
		"email":        "alice@example.com",
		"reset_code":   code,
		"new_password": "new-password-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "expired") {
		t.Fatalf("expected expiry message, got: %s", rec.Body.String())
	}

	// The stale entry was removed, so a retry with the same code still fails.
	rec = env.postJSON(t, "/reset-password", map[string]string{
		"email":        "alice@example.com",
		"reset_code":   code,
		"new_password": "new-password-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestResetPasswordWrongCode(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	code, err := env.resets.Put("alice@example.com")
	if err != nil {
		t.Fatalf("put reset code: %v", err)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	rec := env.postJSON(t, "/reset-password", map[string]string{
		"email":        "alice@example.com",
		"reset_code":   wrong,
		"new_password": "new-password-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	pair, err := env.tokens.IssuePair("alice@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	body, _ := json.Marshal(map[string]string{
		"current_password": "wrong-password",
		"new_password":     "new-password-1",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/change-password", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	body, _ = json.Marshal(map[string]string{
		"current_password": "password123",
		"new_password":     "new-password-1",
	})
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/change-password", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d: %s", rec.Code, rec.Body.String())
	}

	stored := env.store.users["alice@example.com"]
	if err := verifyPassword(stored.PasswordHash, "new-password-1"); err != nil {
		t.Fatalf("new password not persisted: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(15 * time.Minute)
	env.register(t, "alice@example.com", "password123")

	pair, err := env.tokens.IssuePair("alice@example.com")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	body, _ := json.Marshal(map[string]string{
		"full_name":     "Alice Cooper",
		"profile_image": "https://example.com/alice.png",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/profile", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d: %s", rec.Code, rec.Body.String())
	}

	var updated User
	decodeResponse(t, rec, &updated)
	if updated.FullName != "Alice Cooper" {
		t.Fatalf("unexpected name: %q", updated.FullName)
	}
	if updated.ProfileImage == nil || *updated.ProfileImage != "https://example.com/alice.png" {
		t.Fatalf("unexpected profile image: %v", updated.ProfileImage)
	}
}

func postForm(t *testing.T, router http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(rec, req)
	return rec
}
