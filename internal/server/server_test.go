package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/db"
	"github.com/jwulff/evening/internal/guard"
	"github.com/jwulff/evening/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

type testServer struct {
	srv   *Server
	store *db.Store
	auth  *guard.Authenticator
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.Secret = "0123456789abcdef0123456789abcdef"
	cfg.RecordingsDir = "/tmp/evenings"

	store, err := db.Open(filepath.Join(t.TempDir(), "auth.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	auth := guard.NewAuthenticator(cfg.Auth, store)
	g, err := guard.New(cfg.Auth, auth, m, nil)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	if pinger == nil {
		pinger = store
	}
	srv, err := New(cfg, g, pinger, m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testServer{srv: srv, store: store, auth: auth}
}

func (ts *testServer) get(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) bearer(t *testing.T, user string) http.Header {
	t.Helper()
	sess, err := ts.store.CreateSession(context.Background(), user, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	tok, err := ts.auth.Issue(sess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func TestLandingPage(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.get(t, "/", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Yo Welcome to Where My Evening Went") {
		t.Errorf("landing page missing greeting: %s", body)
	}
	if !strings.Contains(body, `href="/upload"`) || !strings.Contains(body, "Lets Go") {
		t.Errorf("landing page missing link to /upload: %s", body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type = %q", ct)
	}
}

func TestUploadPageIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.get(t, "/upload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/tmp/evenings") {
		t.Error("upload page should show the recordings dir")
	}
}

func TestEntriesAPIGuarded(t *testing.T) {
	ts := newTestServer(t, nil)

	if w := ts.get(t, "/api/entries", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}

	w := ts.get(t, "/api/entries/2024-06-01", ts.bearer(t, "user-3"))
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("signed-in status = %d, want 501", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"user":"user-3"`) {
		t.Errorf("body = %s, want caller identity", w.Body.String())
	}
}

func TestAIAPIGuarded(t *testing.T) {
	ts := newTestServer(t, nil)
	if w := ts.get(t, "/api/ai/summarize", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
	if w := ts.get(t, "/api/ai", ts.bearer(t, "user-4")); w.Code != http.StatusNotImplemented {
		t.Errorf("signed-in status = %d, want 501", w.Code)
	}
}

func TestServerPagesRedirectBrowsers(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.get(t, "/server/week", http.Header{"Accept": {"text/html"}})
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "redirect_url=%2Fserver%2Fweek") {
		t.Errorf("location = %q", loc)
	}

	h := ts.bearer(t, "user-5")
	h.Set("Accept", "text/html")
	w = ts.get(t, "/server/week", h)
	if w.Code != http.StatusOK {
		t.Fatalf("signed-in status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "user-5") {
		t.Error("account page should name the signed-in user")
	}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)
	if w := ts.get(t, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
	if w := ts.get(t, "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("readyz = %d", w.Code)
	}

	down := newTestServer(t, failingPinger{})
	if w := down.get(t, "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing store = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.get(t, "/", nil)
	ts.get(t, "/api/entries", nil)

	body := ts.get(t, "/metrics", nil).Body.String()
	for _, want := range []string{
		`evening_http_requests_total{endpoint="/",method="GET",status_code="200"} 1`,
		`evening_guard_decisions_total{decision="rejected"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
