package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-ledger/internal/config"
	"github.com/tbourn/go-chat-ledger/internal/http/middleware"
	"github.com/tbourn/go-chat-ledger/internal/repo"
	"github.com/tbourn/go-chat-ledger/internal/services"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

const (
	ownerAddr = "0x00000000000000000000000000000000000000A1"
	userAddr  = "0x00000000000000000000000000000000000000D1"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      50,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		IdempotencyTTL: time.Hour,
		Economics: config.Economics{
			Owner:             common.HexToAddress(ownerAddr),
			Platform:          common.HexToAddress("0x00000000000000000000000000000000000000B2"),
			Pool:              common.HexToAddress("0x00000000000000000000000000000000000000C3"),
			MessageCost:       units.MustParseUnits("0.001"),
			CreatorRewardPct:  80,
			FreeMessages:      5,
			DailyClaimAmount:  units.MustParseUnits("10"),
			ExchangeRate:      10000,
			MinPurchase:       units.MustParseUnits("0.001"),
			PlatformNativePct: 70,
			PoolNativePct:     30,
		},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, services.NewEngine(db, cfg.Economics), db, cfg)
	return r, db
}

func send(r *gin.Engine, method, path, caller, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(middleware.HeaderCaller, caller)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	// /health works and reports the store
	w := send(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var hb map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &hb)
	if hb["status"] != "ok" || hb["db"] != "ok" {
		t.Fatalf("health body = %v", hb)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = send(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := send(r, http.MethodGet, "/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := send(r, http.MethodPost, "/health", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, cfg)

	w := send(r, http.MethodGet, "/health", "", "", "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// API mounted under the configured prefix
	if w := send(r, http.MethodGet, "/api/v2/limits", "", ""); w.Code != http.StatusOK {
		t.Fatalf("GET /api/v2/limits = %d", w.Code)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	if w := send(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health with closed db = %d; want 503", w.Code)
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

	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// A keyed settlement request goes through the full stack: the first call
// settles, the retry is answered from the idempotency record without
// consuming another free message.
func TestPipeline_IdempotentMessage(t *testing.T) {
	r, db := newTestRouter(t, testConfig())

	const path = "/api/v1/messages"
	first := send(r, http.MethodPost, path, userAddr, `{"content_id": 4}`, middleware.HeaderIdempotencyKey, "retry-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("first POST = %d %s", first.Code, first.Body.String())
	}
	if rid := first.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if first.Header().Get("X-RateLimit-Remaining") == "" {
		t.Fatalf("expected rate limit headers on a settled request")
	}

	second := send(r, http.MethodPost, path, userAddr, `{"content_id": 4}`, middleware.HeaderIdempotencyKey, "retry-1")
	if second.Code != http.StatusOK || second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay = %d replayed=%q", second.Code, second.Header().Get(middleware.HeaderIdempotencyReplayed))
	}

	var a, b struct{ ID string }
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("replayed settlement %q != original %q", b.ID, a.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rec, err := repo.GetIdempotency(ctx, db, common.HexToAddress(userAddr).Hex(), "POST /api/v1/messages", "retry-1", time.Now())
	if err != nil || rec == nil || rec.SettlementID != a.ID {
		t.Fatalf("idempotency record = %+v err=%v", rec, err)
	}

	var usage services.UsageView
	w := send(r, http.MethodGet, "/api/v1/usage/"+userAddr, "", "")
	_ = json.Unmarshal(w.Body.Bytes(), &usage)
	if usage.Used != 1 {
		t.Fatalf("used = %d; want 1", usage.Used)
	}
}

func TestPipeline_AuthorizationAndValidation(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	cases := []struct {
		name     string
		method   string
		path     string
		caller   string
		body     string
		hdr      []string
		wantCode int
		wantErr  string
	}{
		{"anonymous settle", http.MethodPost, "/api/v1/rewards/daily", "", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"malformed caller", http.MethodPost, "/api/v1/rewards/daily", "0xnope", "", nil, http.StatusBadRequest, "invalid_address"},
		{"mint by non-owner", http.MethodPost, "/api/v1/admin/mint", userAddr, `{"to":"` + userAddr + `","amount":"1"}`, nil, http.StatusForbidden, "unauthorized"},
		{"bad idempotency key", http.MethodPost, "/api/v1/rewards/daily", userAddr, "", []string{middleware.HeaderIdempotencyKey, "bad key!"}, http.StatusBadRequest, "bad_idempotency_key"},
		{"mint by owner", http.MethodPost, "/api/v1/admin/mint", ownerAddr, `{"to":"` + userAddr + `","amount":"1000"}`, nil, http.StatusCreated, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := send(r, tc.method, tc.path, tc.caller, tc.body, tc.hdr...)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d; want %d (%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantErr == "" {
				return
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != tc.wantErr {
				t.Fatalf("code = %v; want %s", body["code"], tc.wantErr)
			}
		})
	}
}

func TestPipeline_RateLimitedPerCaller(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, _ := newTestRouter(t, cfg)

	if w := send(r, http.MethodGet, "/api/v1/supply", userAddr, ""); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := send(r, http.MethodGet, "/api/v1/supply", userAddr, "")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second = %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
	// A different caller still has tokens.
	if w := send(r, http.MethodGet, "/api/v1/supply", ownerAddr, ""); w.Code != http.StatusOK {
		t.Fatalf("other caller = %d", w.Code)
	}
}
