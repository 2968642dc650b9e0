package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// accessLines decodes the JSON lines written by Logger().
func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad log line %q: %v", ln, err)
		}
		if m["message"] == "request" {
			out = append(out, m)
		}
	}
	return out
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		header string
		value  string
	}{
		{"generated", "", ""},
		{"canonical header", requestIDHeader, "Z-REQ-123"},
		{"lower case header", strings.ToLower(requestIDHeader), "abc-123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			var inCtx any
			r.GET("/rid", func(c *gin.Context) {
				inCtx, _ = c.Get(requestIDKey)
				c.Status(http.StatusNoContent)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got == "" || got != inCtx {
				t.Fatalf("response id %q, context id %v", got, inCtx)
			}
			if tc.value != "" && got != tc.value {
				t.Fatalf("id = %q; want propagated %q", got, tc.value)
			}
		})
	}
}

func TestLogger_LevelFollowsOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), CallerIdentity())
	r.GET("/balances/:address", func(c *gin.Context) { c.String(http.StatusOK, "1") })
	r.POST("/rewards/daily", func(c *gin.Context) {
		SetErrorCode(c, "already_claimed")
		c.Status(http.StatusConflict)
	})
	r.POST("/earnings/withdraw", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadGateway)
	})

	calls := []struct {
		method, path string
	}{
		{http.MethodGet, "/balances/0xabc"},
		{http.MethodGet, "/missing"},
		{http.MethodPost, "/rewards/daily"},
		{http.MethodPost, "/earnings/withdraw"},
	}
	for _, call := range calls {
		req := httptest.NewRequest(call.method, call.path, nil)
		req.Header.Set(HeaderCaller, testCaller)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := accessLines(t, buf)
	if len(lines) != len(calls) {
		t.Fatalf("got %d access lines; want %d", len(lines), len(calls))
	}
	want := []struct {
		level, path, code string
	}{
		{"info", "/balances/:address", ""},
		{"warn", "/missing", ""},
		{"warn", "/rewards/daily", "already_claimed"},
		{"error", "/earnings/withdraw", ""},
	}
	for i, w := range want {
		l := lines[i]
		if l["level"] != w.level || l["path"] != w.path {
			t.Fatalf("line %d = level %v path %v; want %s %s", i, l["level"], l["path"], w.level, w.path)
		}
		if w.code != "" && l["code"] != w.code {
			t.Fatalf("line %d code = %v; want %s", i, l["code"], w.code)
		}
		if l["request_id"] == "" || l["caller"] != testCallerKey {
			t.Fatalf("line %d missing request_id or caller: %v", i, l)
		}
	}
}

type errSentinel struct{}

func (e errSentinel) Error() string { return "boom" }

func TestLogger_AttachesRequestLoggerToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.POST("/messages", func(c *gin.Context) {
		// Services log through the request context.
		zerolog.Ctx(c.Request.Context()).Info().Msg("settled")
		LoggerFrom(c).Info().Msg("handler")
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.Header.Set(requestIDHeader, "rid-ctx")
	r.ServeHTTP(httptest.NewRecorder(), req)

	for _, msg := range []string{"settled", "handler"} {
		found := false
		for _, ln := range strings.Split(buf.String(), "\n") {
			if strings.Contains(ln, `"message":"`+msg+`"`) {
				found = strings.Contains(ln, `"request_id":"rid-ctx"`)
			}
		}
		if !found {
			t.Fatalf("%q not logged with request id:\n%s", msg, buf.String())
		}
	}
}

func TestLoggerFrom_FallsBackToGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/use", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("custom")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/use", nil))

	if !strings.Contains(buf.String(), `"message":"custom"`) || strings.Contains(buf.String(), `"request_id"`) {
		t.Fatalf("unexpected fallback output: %s", buf.String())
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("before write answers JSON 500", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), Logger(), Recovery())
		r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d; want 500", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json body: %v", err)
		}
		if body["code"] != "internal_error" || body["message"] != "internal server error" || body["request_id"] == "" {
			t.Fatalf("unexpected body: %v", body)
		}
		if !strings.Contains(buf.String(), "panic recovered") {
			t.Fatalf("expected panic log, got:\n%s", buf.String())
		}
	})

	t.Run("after write adds no body", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), Logger(), Recovery())
		r.GET("/late", func(c *gin.Context) {
			c.String(http.StatusOK, "partial-body")
			panic("late kaboom")
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
		if strings.Contains(w.Body.String(), "internal server error") {
			t.Fatalf("unexpected JSON error body after write: %q", w.Body.String())
		}
		if !strings.Contains(buf.String(), "panic recovered") {
			t.Fatalf("expected panic log, got:\n%s", buf.String())
		}
	})
}

func TestHelpers_asString_and_truncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" {
		t.Fatalf("asString failed")
	}
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q,%d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
