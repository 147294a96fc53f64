package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/bitafam/terrenos/docs"
	"github.com/bitafam/terrenos/internal/config"
	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/media"
	"github.com/bitafam/terrenos/internal/repo"
	"github.com/bitafam/terrenos/internal/session"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      50,
		PageSize:       6,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		Media:          config.MediaConfig{MaxBytes: 1 << 20},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	signer, err := session.NewSigner("router-test-secret-0123456789")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	manager, err := session.NewManager(session.Options{
		Accounts:   session.NewGormStore(db),
		Signer:     signer,
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	t.Cleanup(manager.Close)

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:       db,
		Config:   cfg,
		Media:    media.NewMemoryStore("https://cdn.test/media"),
		Sessions: manager,
	})
	return r, db
}

func serve(r http.Handler, method, path string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// signIn registers and logs in a user, returning the bearer token.
func signIn(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	creds := map[string]string{"name": "Ana", "email": email, "password": "secreto123"}
	if w := serve(r, http.MethodPost, "/api/v1/auth/register", mustJSON(t, creds), nil); w.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}
	w := serve(r, http.MethodPost, "/api/v1/auth/login", mustJSON(t, creds), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var s session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil || s.Token == "" {
		t.Fatalf("login body: %v %s", err, w.Body.String())
	}
	return s.Token
}

func listingBody(t *testing.T, title string) []byte {
	return mustJSON(t, map[string]any{
		"title":       title,
		"description": "Terreno plano con agua y luz.",
		"location":    "Carabayllo, Lima",
		"price":       85000,
		"area":        300,
		"type":        "urban",
		"image_urls":  []string{"https://img.example.com/lote.jpg"},
	})
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	// /health works
	w := serve(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing: %v", w.Header())
	}

	// /metrics is wired
	w = serve(r, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = serve(r, http.MethodGet, "/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = serve(r, http.MethodPost, "/health", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off by default
	if w := serve(r, http.MethodGet, "/swagger/index.html", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// The listings API is mounted under the configured base path.
	if w := serve(r, http.MethodGet, "/api/v2/listings", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/listings = %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerWhenEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	r, _ := newRouter(t, cfg)

	if w := serve(r, http.MethodGet, "/swagger/index.html", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/index.html = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/swagger/doc.json", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Terrenos API") {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
}

func TestRegisterRoutes_GuardedRoutesRequireSession(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	cases := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/listings"},
		{http.MethodPut, "/api/v1/listings/abc"},
		{http.MethodPatch, "/api/v1/listings/abc/status"},
		{http.MethodDelete, "/api/v1/listings/abc?confirm=true"},
		{http.MethodGet, "/api/v1/me/listings"},
		{http.MethodGet, "/api/v1/auth/session"},
		{http.MethodPost, "/api/v1/auth/logout"},
	}
	for _, tc := range cases {
		w := serve(r, tc.method, tc.path, nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d; want 401", tc.method, tc.path, w.Code)
		}
		if w.Header().Get("Location") == "" {
			t.Fatalf("%s %s: missing login Location", tc.method, tc.path)
		}
	}

	// Browsers are redirected instead.
	w := serve(r, http.MethodGet, "/api/v1/me/listings", nil, map[string]string{"Accept": "text/html"})
	if w.Code != http.StatusFound {
		t.Fatalf("browser guard = %d; want 302", w.Code)
	}
}

func TestRegisterRoutes_PublishFlowWithIdempotency(t *testing.T) {
	r, db := newRouter(t, baseConfig())
	tok := signIn(t, r, "ana@example.com")
	auth := map[string]string{
		"Authorization":                 "Bearer " + tok,
		middleware.HeaderIdempotencyKey: "publicar-001",
	}

	w := serve(r, http.MethodPost, "/api/v1/listings", listingBody(t, "Lote en Carabayllo"), auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var first domain.Listing
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil || first.ID == "" {
		t.Fatalf("create body: %v %s", err, w.Body.String())
	}
	if first.CoverURL != "https://img.example.com/lote.jpg" {
		t.Fatalf("cover = %q", first.CoverURL)
	}

	// Same key: the first listing comes back and nothing new is stored.
	w = serve(r, http.MethodPost, "/api/v1/listings", listingBody(t, "Lote en Carabayllo"), auth)
	if w.Code != http.StatusCreated || w.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("replay = %d replay=%q %s", w.Code, w.Header().Get("Idempotent-Replay"), w.Body.String())
	}
	var again domain.Listing
	_ = json.Unmarshal(w.Body.Bytes(), &again)
	if again.ID != first.ID {
		t.Fatalf("replay returned %s; want %s", again.ID, first.ID)
	}
	var n int64
	db.Model(&domain.Listing{}).Count(&n)
	if n != 1 {
		t.Fatalf("listings stored = %d; want 1", n)
	}

	// Public catalog and owner view both see it.
	w = serve(r, http.MethodGet, "/api/v1/listings", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("ETag") == "" {
		t.Fatalf("list = %d etag=%q", w.Code, w.Header().Get("ETag"))
	}
	w = serve(r, http.MethodGet, "/api/v1/me/listings", nil, map[string]string{"Authorization": "Bearer " + tok})
	if w.Code != http.StatusOK {
		t.Fatalf("mine = %d", w.Code)
	}
	var mine []domain.Listing
	_ = json.Unmarshal(w.Body.Bytes(), &mine)
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("mine = %+v", mine)
	}

	// Signing out revokes the token.
	if w := serve(r, http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{"Authorization": "Bearer " + tok}); w.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/me/listings", nil, map[string]string{"Authorization": "Bearer " + tok}); w.Code != http.StatusUnauthorized {
		t.Fatalf("after logout = %d; want 401", w.Code)
	}
}

func TestRegisterRoutes_MalformedIdempotencyKey(t *testing.T) {
	r, _ := newRouter(t, baseConfig())
	tok := signIn(t, r, "bea@example.com")

	w := serve(r, http.MethodPost, "/api/v1/listings", listingBody(t, "Lote"), map[string]string{
		"Authorization":                 "Bearer " + tok,
		middleware.HeaderIdempotencyKey: "no válido",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad key = %d; want 400", w.Code)
	}
}

func TestRegisterRoutes_GzipResponses(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	w := serve(r, http.MethodGet, "/api/v1/listings", nil, map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip, got %d %q", w.Code, w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	raw, _ := io.ReadAll(zr)
	var page map[string]any
	if err := json.Unmarshal(raw, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := page["items"]; !ok {
		t.Fatalf("page missing items: %s", raw)
	}
}

func TestRepoShims_Proxy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lr := listingRepoShim{}

	l := &domain.Listing{OwnerID: "u1", Title: "Lote", Description: "d", Location: "Lima", Price: 1000, Type: domain.TypeUrban, Status: domain.StatusAvailable}
	if err := lr.CreateListing(ctx, db, l); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, err := lr.GetListing(ctx, db, l.ID); err != nil || got.Title != "Lote" {
		t.Fatalf("get: %v %+v", err, got)
	}
	if ls, err := lr.ListListingsByOwner(ctx, db, "u1"); err != nil || len(ls) != 1 {
		t.Fatalf("by owner: %v %d", err, len(ls))
	}
	if err := lr.UpdateListingStatus(ctx, db, l.ID, "u1", domain.StatusSold); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := lr.CreateIdempotency(ctx, db, "u1", "listings:create", "k1", l.ID, http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("create idem: %v", err)
	}
	if rec, err := lr.GetIdempotency(ctx, db, "u1", "listings:create", "k1", time.Now().UTC()); err != nil || rec == nil || rec.ListingID != l.ID {
		t.Fatalf("get idem: %v %+v", err, rec)
	}

	ir := inquiryRepoShim{}
	in := &domain.Inquiry{ListingID: l.ID, Name: "Carla", Email: "carla@example.com", Message: "Hola"}
	if err := ir.CreateInquiry(ctx, db, in); err != nil {
		t.Fatalf("create inquiry: %v", err)
	}
	if err := ir.MarkInquirySent(ctx, db, in.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := lr.DeleteListing(ctx, db, l.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ir.GetListing(ctx, db, l.ID); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}

	if normalizeBase("/") != "" || normalizeBase("/api/v1") != "/api/v1" {
		t.Fatalf("normalizeBase")
	}
}
