package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stwalsh4118/fieldtrack/internal/logger"
	"github.com/stwalsh4118/fieldtrack/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, GetRequestID(c))
		})
		return router
	}

	t.Run("generates new request ID", func(t *testing.T) {
		w := serve(newRouter(), http.MethodGet, "/test", nil)

		headerID := w.Header().Get(RequestIDHeader)
		if headerID == "" {
			t.Fatal("Expected X-Request-ID header to be set")
		}
		if w.Body.String() != headerID {
			t.Errorf("Expected body to contain request ID %s, got %s", headerID, w.Body.String())
		}
	})

	t.Run("reuses a well-formed upstream ID", func(t *testing.T) {
		w := serve(newRouter(), http.MethodGet, "/test", map[string]string{RequestIDHeader: "upstream-123.a_b"})

		if w.Body.String() != "upstream-123.a_b" {
			t.Errorf("Expected upstream request ID, got %s", w.Body.String())
		}
	})

	t.Run("replaces malformed upstream IDs", func(t *testing.T) {
		for _, id := range []string{"has space", "new\nline", strings.Repeat("x", maxRequestIDLen+1)} {
			w := serve(newRouter(), http.MethodGet, "/test", map[string]string{RequestIDHeader: id})
			if w.Body.String() == id {
				t.Errorf("Expected %q to be replaced", id)
			}
			if len(w.Body.String()) != 36 {
				t.Errorf("Expected a UUID, got %q", w.Body.String())
			}
		}
	})

	t.Run("GetRequestID returns empty string if not set", func(t *testing.T) {
		c := &gin.Context{}
		if id := GetRequestID(c); id != "" {
			t.Errorf("Expected empty string, got %s", id)
		}
	})
}

func TestCORS(t *testing.T) {
	allowedOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(CORS(allowedOrigins))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
		router.OPTIONS("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
		return router
	}

	t.Run("allows request from allowed origin", func(t *testing.T) {
		w := serve(newRouter(), http.MethodGet, "/test", map[string]string{"Origin": "http://localhost:3000"})

		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Error("Expected Access-Control-Allow-Origin header to be set")
		}
		if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
			t.Error("Expected Content-Disposition to be exposed")
		}
	})

	t.Run("does not set CORS headers for disallowed origin", func(t *testing.T) {
		w := serve(newRouter(), http.MethodGet, "/test", map[string]string{"Origin": "http://evil.com"})

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("Expected no CORS headers for disallowed origin")
		}
	})

	t.Run("handles OPTIONS preflight for allowed origin", func(t *testing.T) {
		w := serve(newRouter(), http.MethodOptions, "/test", map[string]string{"Origin": "http://localhost:5173"})

		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("stores request logger in context", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID(), Logger(logger.New("test")))
		router.GET("/test", func(c *gin.Context) {
			if GetLogger(c) == nil {
				t.Error("Expected logger to be in context")
			}
			c.String(http.StatusOK, "OK")
		})

		w := serve(router, http.MethodGet, "/test?foo=bar", nil)
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("logs server errors without recorded gin errors", func(t *testing.T) {
		router := gin.New()
		router.Use(Logger(logger.New("test")))
		router.GET("/sessions/:id", func(c *gin.Context) {
			c.Status(http.StatusServiceUnavailable)
		})

		w := serve(router, http.MethodGet, "/sessions/abc", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})

	t.Run("GetLogger returns nil if not set", func(t *testing.T) {
		if GetLogger(&gin.Context{}) != nil {
			t.Error("Expected nil logger")
		}
	})
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic and returns 500", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID(), Recovery(logger.New("test")))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := serve(router, http.MethodGet, "/panic", nil)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500 after panic, got %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "INTERNAL_SERVER_ERROR") {
			t.Error("Expected error response to contain INTERNAL_SERVER_ERROR")
		}
		if !strings.Contains(body, w.Header().Get(RequestIDHeader)) {
			t.Error("Expected error response to contain the request ID")
		}
	})

	t.Run("does not interfere with normal requests", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(logger.New("test")))
		router.GET("/normal", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		w := serve(router, http.MethodGet, "/normal", nil)
		if w.Code != http.StatusOK || w.Body.String() != "OK" {
			t.Errorf("Expected 200 OK, got %d %s", w.Code, w.Body.String())
		}
	})
}

func TestMetrics(t *testing.T) {
	metrics.Register()

	router := gin.New()
	router.Use(Metrics())
	router.GET("/api/v1/sessions/:id", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/sessions/:id", "404")
	before := testutil.ToFloat64(counter)

	serve(router, http.MethodGet, "/api/v1/sessions/one", nil)
	serve(router, http.MethodGet, "/api/v1/sessions/two", nil)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("Expected 2 requests counted under the route template, got %v", got)
	}

	unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	serve(router, http.MethodGet, "/nope", nil)
	if got := testutil.ToFloat64(unmatched) - before; got != 1 {
		t.Errorf("Expected unmatched route to be counted once, got %v", got)
	}
}

func TestMiddlewareStack(t *testing.T) {
	log := logger.New("test")

	router := gin.New()
	router.Use(RequestID(), Logger(log), Recovery(log), Metrics(), CORS([]string{"http://localhost:3000"}))
	router.GET("/test", func(c *gin.Context) {
		if GetRequestID(c) == "" {
			t.Error("Expected request ID from RequestID middleware")
		}
		if GetLogger(c) == nil {
			t.Error("Expected logger from Logger middleware")
		}
		c.String(http.StatusOK, "OK")
	})

	w := serve(router, http.MethodGet, "/test", map[string]string{"Origin": "http://localhost:3000"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected X-Request-ID header")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("Expected CORS headers")
	}
}
