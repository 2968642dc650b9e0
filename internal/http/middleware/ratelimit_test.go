package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByCallerOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/balances/x", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	keyFn := KeyByCallerOrIP()
	if got := keyFn(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(ctxKeyCaller, common.HexToAddress(testCaller))
	if got := keyFn(c); got != "caller:"+testCallerKey {
		t.Fatalf("caller key = %q", got)
	}
}

func TestRateLimiter_Visitors(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d", rl.burst)
	}

	lim := rl.getVisitor("caller:a")
	if rl.getVisitor("caller:a") != lim {
		t.Fatalf("bucket not reused")
	}

	// The next lookup runs the idle sweep.
	rl.mu.Lock()
	rl.ttl = time.Nanosecond
	rl.visitors["caller:stale"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("caller:b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["caller:stale"]; ok {
		t.Fatalf("idle bucket survived the sweep")
	}
	if _, ok := rl.visitors["caller:b"]; !ok {
		t.Fatalf("new bucket missing")
	}
	if rl.cleanupN != 0 {
		t.Fatalf("sweep counter = %d; want reset", rl.cleanupN)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	for _, tc := range []struct {
		val  any
		set  bool
		want bool
	}{
		{nil, false, false},
		{true, true, true},
		{"yes", true, false},
	} {
		if tc.set {
			c.Set(ctxKeyRateBypass, tc.val)
		}
		if got := IsRateBypass(c); got != tc.want {
			t.Fatalf("IsRateBypass with %v = %v; want %v", tc.val, got, tc.want)
		}
	}
}

func TestRateLimiter_RejectsAndReplaysBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, nil)

	bypass := false
	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) {
		if bypass {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.POST("/rewards/daily", func(c *gin.Context) { c.Status(http.StatusCreated) })

	call := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rewards/daily", nil))
		return w
	}

	if w := call(); w.Code != http.StatusCreated {
		t.Fatalf("first -> %d", w.Code)
	}
	w := call()
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second -> %d Retry-After=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}

	// Idempotent replays skip the bucket entirely.
	bypass = true
	if w := call(); w.Code != http.StatusCreated {
		t.Fatalf("replay -> %d", w.Code)
	}
}

func TestRateLimiter_BucketsPerCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1.0, 2, nil)
	r := gin.New()
	r.Use(RequestID(), CallerIdentity(), rl.Handler())
	r.POST("/messages", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(caller string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.Header.Set(HeaderCaller, caller)
		r.ServeHTTP(w, req)
		return w
	}

	w := send(testCaller)
	if w.Code != http.StatusCreated {
		t.Fatalf("first -> %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "2" || w.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("limit headers = %q/%q", w.Header().Get("X-RateLimit-Limit"), w.Header().Get("X-RateLimit-Remaining"))
	}
	_ = send(testCaller)
	if w := send(testCaller); w.Code != http.StatusTooManyRequests {
		t.Fatalf("third -> %d; want 429", w.Code)
	}

	// Another caller has its own bucket.
	if w := send("0x00000000000000000000000000000000000000E1"); w.Code != http.StatusCreated {
		t.Fatalf("other caller -> %d", w.Code)
	}
}

func TestRetryAfter(t *testing.T) {
	cases := map[rate.Limit]string{
		0:        "1",
		rate.Inf: "1",
		10:       "1",
		1:        "1",
		0.5:      "2",
		0.3:      "4",
	}
	for rps, want := range cases {
		if got := retryAfter(rps); got != want {
			t.Errorf("retryAfter(%v) = %q; want %q", rps, got, want)
		}
	}
}
