package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/reelgrid/reelgrid/internal/auth"
)

const testSecret = "test-jwt-secret-key"

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testWebFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>app shell</html>")},
		"app.js":     &fstest.MapFile{Data: []byte("// bundle")},
	}
}

func newTestServer(t *testing.T) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock pool: %v", err)
	}
	srv := New(Config{
		DB:        mock,
		Pinger:    stubPinger{},
		WebFS:     testWebFS(),
		JWTSecret: testSecret,
		BaseURL:   "http://localhost:8080",
	})
	return srv, mock
}

func TestHealth_OK(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	srv := New(Config{
		DB:        mock,
		Pinger:    stubPinger{err: errors.New("down")},
		JWTSecret: testSecret,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSecurityHeaders_Present(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("missing nosniff header, got %q", got)
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-") {
		t.Errorf("CSP missing nonce: %q", csp)
	}
	if !strings.Contains(csp, "youtube-nocookie.com") {
		t.Errorf("CSP must admit the embedded player: %q", csp)
	}
}

func TestSPAFallback_UnknownAssetServesShell(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "app shell") {
		t.Errorf("expected the app shell, got %s", rec.Body.String())
	}
}

func TestProtectedPage_RedirectsWithoutSessionHint(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/dashboard/galleries", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/login?") {
		t.Fatalf("expected redirect to /login, got %q", location)
	}
	if !strings.Contains(location, "from=%2Fdashboard%2Fgalleries") {
		t.Errorf("redirect must carry the intended destination: %q", location)
	}
}

func TestProtectedPage_ServesShellWithSessionHint(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionHintCookie, Value: "1"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "app shell") {
		t.Errorf("expected the app shell, got %s", rec.Body.String())
	}
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	var lastCode int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", lastCode)
	}
}

func TestGalleryByCategory_Routed(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM galleries WHERE category = \$1`).
		WithArgs("my-cats").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "description",
			"category", "is_public", "icon", "created_at", "updated_at"}).
			AddRow("gal-1", "u1", "My Cats", "", "my-cats", true, "video", now, now))

	req := httptest.NewRequest(http.MethodGet, "/api/galleries/my-cats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"My Cats"`) {
		t.Errorf("expected the gallery in the body: %s", rec.Body.String())
	}
}

func videoPageRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "user_id", "title", "description",
		"youtube_id", "category", "tags", "is_public", "created_at", "updated_at"})
}

func TestGalleryPage_RendersFilteredVideos(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	now := time.Now()
	videos := videoPageRows().
		AddRow("v1", "u1", "Final match highlights", "", "dQw4w9WgXcQ", "training",
			[]byte(`{"skill":["passing"]}`), true, now, now).
		AddRow("v2", "u1", "Warm-up routine", "", "aaaaaaaaaaa", "training",
			[]byte(`{}`), true, now, now).
		AddRow("v3", "u1", "Private session", "", "bbbbbbbbbbb", "training",
			[]byte(`{}`), false, now, now)
	mock.ExpectQuery(`SELECT .+ FROM videos WHERE category = \$1`).
		WithArgs("training").
		WillReturnRows(videos)

	groups := pgxmock.NewRows([]string{"id", "user_id", "name", "tags", "category",
		"created_at", "updated_at"}).
		AddRow("g1", "u1", "skill", []byte(`["passing","defense"]`), "training", now, now)
	mock.ExpectQuery(`SELECT .+ FROM tag_groups WHERE category = \$1`).
		WithArgs("training").
		WillReturnRows(groups)

	req := httptest.NewRequest(http.MethodGet, "/training?search=final", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Final match highlights") {
		t.Error("expected the matching video in the page")
	}
	if strings.Contains(body, "Warm-up routine") {
		t.Error("non-matching video must be filtered out")
	}
	if strings.Contains(body, "Private session") {
		t.Error("private videos must not appear on the public page")
	}
	if !strings.Contains(body, "passing") || !strings.Contains(body, "defense") {
		t.Error("expected the tag group's tags as filter links")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestGalleryPage_EitherFetchFailingFailsWhole(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM videos WHERE category = \$1`).
		WithArgs("training").
		WillReturnRows(videoPageRows().
			AddRow("v1", "u1", "Final match", "", "dQw4w9WgXcQ", "training",
				[]byte(`{}`), true, now, now))
	mock.ExpectQuery(`SELECT .+ FROM tag_groups WHERE category = \$1`).
		WithArgs("training").
		WillReturnError(errors.New("boom"))

	req := httptest.NewRequest(http.MethodGet, "/training", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Final match") {
		t.Error("no partial content may render when half the load fails")
	}
}

func TestVideoPage_EmbedsPlayer(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM videos WHERE id = \$1`).
		WithArgs("v1").
		WillReturnRows(videoPageRows().
			AddRow("v1", "u1", "Final match", "Great game.", "dQw4w9WgXcQ", "training",
				[]byte(`{}`), true, now, now))

	req := httptest.NewRequest(http.MethodGet, "/training/video/v1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "youtube-nocookie.com/embed/dQw4w9WgXcQ") {
		t.Error("expected the embedded player")
	}
	if !strings.Contains(body, "Great game.") {
		t.Error("expected the description")
	}
}

func TestVideoPage_PrivateIsNotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM videos WHERE id = \$1`).
		WithArgs("v1").
		WillReturnRows(videoPageRows().
			AddRow("v1", "u1", "Secret", "", "dQw4w9WgXcQ", "training",
				[]byte(`{}`), false, now, now))

	req := httptest.NewRequest(http.MethodGet, "/training/video/v1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Secret") {
		t.Error("private title must not leak on the not-found page")
	}
}

func TestVideoPage_WrongCategoryIsNotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM videos WHERE id = \$1`).
		WithArgs("v1").
		WillReturnRows(videoPageRows().
			AddRow("v1", "u1", "Final match", "", "dQw4w9WgXcQ", "training",
				[]byte(`{}`), true, now, now))

	req := httptest.NewRequest(http.MethodGet, "/other-gallery/video/v1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGalleryPage_PaginationLinks(t *testing.T) {
	srv, mock := newTestServer(t)
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)

	now := time.Now()
	rows := videoPageRows()
	for i := 0; i < 45; i++ {
		rows = rows.AddRow(
			"v"+strings.Repeat("x", i%3+1), "u1", "Drill", "", "dQw4w9WgXcQ",
			"training", []byte(`{}`), true, now, now)
	}
	mock.ExpectQuery(`SELECT .+ FROM videos WHERE category = \$1`).
		WithArgs("training").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT .+ FROM tag_groups WHERE category = \$1`).
		WithArgs("training").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "tags",
			"category", "created_at", "updated_at"}))

	req := httptest.NewRequest(http.MethodGet, "/training?page=2", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Page 2 of 3") {
		t.Errorf("expected page indicator, body: %s", body)
	}
	if !strings.Contains(body, "page=3") {
		t.Error("expected a next-page link")
	}
}
