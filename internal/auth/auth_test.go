package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-jwt-secret-key"

func newTestHandler(t *testing.T) (*Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	handler := NewHandler(mock, testSecret, false)
	return handler, mock
}

func expectInsertRefreshToken(mock pgxmock.PgxPoolIface, userID string) {
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func decodeTokenResponse(t *testing.T, rec *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var resp tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body.Error
}

func findCookieWithPath(cookies []*http.Cookie, name, path string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name && c.Path == path {
			return c
		}
	}
	return nil
}

func bearerRequest(t *testing.T, method, target, userID string, body string) *http.Request {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := GenerateAccessToken(testSecret, userID)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice@example.com", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-uuid-1"))

	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs("user-uuid-1", "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	expectInsertRefreshToken(mock, "user-uuid-1")

	body := `{"email":"alice@example.com","password":"supersecret","username":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeTokenResponse(t, rec)
	if resp.AccessToken == "" {
		t.Error("expected access token in response")
	}

	cookie := findCookieWithPath(rec.Result().Cookies(), "refresh_token", "/api/auth")
	if cookie == nil {
		t.Fatal("expected refresh_token cookie")
	}
	if !cookie.HttpOnly {
		t.Error("refresh cookie must be HttpOnly")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	body := `{"email":"alice@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeErrorResponse(t, rec); msg != "email, password, and username are required" {
		t.Errorf("unexpected error: %q", msg)
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	body := `{"email":"not-an-email","password":"supersecret","username":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeErrorResponse(t, rec); msg != "invalid email address" {
		t.Errorf("unexpected error: %q", msg)
	}
}

func TestRegister_UsernameTooShort(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	body := `{"email":"alice@example.com","password":"supersecret","username":"al"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeErrorResponse(t, rec); msg != "username must be at least 3 characters" {
		t.Errorf("unexpected error: %q", msg)
	}
}

func TestRegister_PasswordTooShort(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	body := `{"email":"alice@example.com","password":"short","username":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeErrorResponse(t, rec); msg != "password must be at least 8 characters" {
		t.Errorf("unexpected error: %q", msg)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice@example.com", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	body := `{"email":"alice@example.com","password":"supersecret","username":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRegister_InvalidJSON(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	hashed, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT id, password FROM users WHERE email`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "password"}).
			AddRow("user-uuid-1", string(hashed)))

	expectInsertRefreshToken(mock, "user-uuid-1")

	body := `{"email":"alice@example.com","password":"supersecret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeTokenResponse(t, rec); resp.AccessToken == "" {
		t.Error("expected access token")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	hashed, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT id, password FROM users WHERE email`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "password"}).
			AddRow("user-uuid-1", string(hashed)))

	body := `{"email":"alice@example.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decodeErrorResponse(t, rec); msg != "invalid email or password" {
		t.Errorf("unexpected error: %q", msg)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, password FROM users WHERE email`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	body := `{"email":"nobody@example.com","password":"supersecret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	refreshToken, err := GenerateRefreshToken(testSecret, "user-uuid-1", "token-id-1")
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT revoked, expires_at FROM refresh_tokens`).
		WithArgs("token-id-1", "user-uuid-1").
		WillReturnRows(pgxmock.NewRows([]string{"revoked", "expires_at"}).
			AddRow(false, time.Now().Add(time.Hour)))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked`).
		WithArgs("token-id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectInsertRefreshToken(mock, "user-uuid-1")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeTokenResponse(t, rec); resp.AccessToken == "" {
		t.Error("expected access token")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRefresh_NoCookie(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRefresh_AccessTokenUsedAsRefresh(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	accessToken, err := GenerateAccessToken(testSecret, "user-uuid-1")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: accessToken})
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// --- Logout ---

func TestLogout_ClearsRefreshTokenCookie(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	cookie := findCookieWithPath(rec.Result().Cookies(), "refresh_token", "/api/auth")
	if cookie == nil {
		t.Fatal("expected cleared refresh_token cookie")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("expected MaxAge -1, got %d", cookie.MaxAge)
	}
}

func TestLogout_RevokesStoredToken(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	refreshToken, err := GenerateRefreshToken(testSecret, "user-uuid-1", "token-id-1")
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked`).
		WithArgs("token-id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

// --- Session ---

func TestSession_WithProfile(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT email FROM users WHERE id`).
		WithArgs("user-uuid-1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("alice@example.com"))

	mock.ExpectQuery(`SELECT id, username, avatar_key, created_at, updated_at FROM profiles`).
		WithArgs("user-uuid-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "avatar_key", "created_at", "updated_at"}).
			AddRow("user-uuid-1", "alice", (*string)(nil), now, now))

	req := bearerRequest(t, http.MethodGet, "/api/auth/session", "user-uuid-1", "")
	rec := httptest.NewRecorder()
	handler.Middleware(http.HandlerFunc(handler.Session)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ID != "user-uuid-1" || resp.User.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", resp.User)
	}
	if resp.Profile == nil || resp.Profile.Username != "alice" {
		t.Errorf("unexpected profile: %+v", resp.Profile)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestSession_MissingProfileIsBenign(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT email FROM users WHERE id`).
		WithArgs("user-uuid-1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("alice@example.com"))

	mock.ExpectQuery(`SELECT id, username, avatar_key, created_at, updated_at FROM profiles`).
		WithArgs("user-uuid-1").
		WillReturnError(pgx.ErrNoRows)

	req := bearerRequest(t, http.MethodGet, "/api/auth/session", "user-uuid-1", "")
	rec := httptest.NewRecorder()
	handler.Middleware(http.HandlerFunc(handler.Session)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile != nil {
		t.Errorf("expected null profile, got %+v", resp.Profile)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

// --- Middleware ---

func TestMiddleware_NoAuthorizationHeader(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be reached")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_RefreshTokenUsedAsAccess(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	refreshToken, err := GenerateRefreshToken(testSecret, "user-uuid-1", "token-id-1")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	rec := httptest.NewRecorder()
	handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be reached")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decodeErrorResponse(t, rec); msg != "invalid token type" {
		t.Errorf("unexpected error: %q", msg)
	}
}

func TestMiddleware_ValidAccessToken(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := bearerRequest(t, http.MethodGet, "/api/videos", "user-uuid-1", "")
	rec := httptest.NewRecorder()

	var gotUserID string
	handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUserID != "user-uuid-1" {
		t.Errorf("expected user id in context, got %q", gotUserID)
	}
}

func TestOptionalMiddleware_Anonymous(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()

	var gotUserID string
	called := false
	handler.OptionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUserID = UserIDFromContext(r.Context())
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatal("inner handler should run for anonymous requests")
	}
	if gotUserID != "" {
		t.Errorf("expected empty user id, got %q", gotUserID)
	}
}

func TestOptionalMiddleware_WithToken(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	req := bearerRequest(t, http.MethodGet, "/api/videos", "user-uuid-1", "")
	rec := httptest.NewRecorder()

	var gotUserID string
	handler.OptionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
	})).ServeHTTP(rec, req)

	if gotUserID != "user-uuid-1" {
		t.Errorf("expected user id in context, got %q", gotUserID)
	}
}

func TestUserIDFromContext_ReturnsEmptyWhenNotSet(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
