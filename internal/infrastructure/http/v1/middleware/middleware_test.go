package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	appctx "stockcore/internal/core/context"
	"stockcore/pkg/logger"
)

func newEngine(routes func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Trace(), Logger(logger.Nop()), ErrorHandler(), Recovery())
	routes(r)
	return r
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRecovery_RendersPanicAsInternalError(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/boom", func(*gin.Context) { panic("kaboom") })
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w, body := serve(r, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Equal(t, "req-1", body["details"].(map[string]any)["request_id"])
}

func TestErrorHandler(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/app", func(c *gin.Context) {
			_ = c.Error(apperror.NewNotFound("transfer", "t-1"))
		})
		r.GET("/raw", func(c *gin.Context) {
			_ = c.Error(errors.New("connection reset"))
		})
		r.GET("/written", func(c *gin.Context) {
			c.JSON(http.StatusAccepted, gin.H{"ok": true})
			_ = c.Error(errors.New("after write"))
		})
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/app", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, body["code"])
	assert.IsType(t, map[string]any{}, body["details"])

	w, body = serve(r, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "connection reset")

	w, body = serve(r, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["ok"])
}

func TestTrace_HeaderOverrides(t *testing.T) {
	var seen *appctx.TraceContext
	r := newEngine(func(r *gin.Engine) {
		r.GET("/", func(c *gin.Context) {
			seen = appctx.GetTrace(c.Request.Context())
			c.Status(http.StatusNoContent)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTraceID, "trace-9")
	w, _ := serve(r, req)

	require.NotNil(t, seen)
	assert.Equal(t, "trace-9", seen.TraceID)
	assert.NotEmpty(t, seen.RequestID)
	assert.Equal(t, "trace-9", w.Header().Get(HeaderTraceID))
	assert.Equal(t, seen.RequestID, w.Header().Get(HeaderRequestID))
}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*appctx.Actor, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &appctx.Actor{ID: "u-1", Email: "u1@example.com"}, nil
}

func TestAuth(t *testing.T) {
	whoami := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": appctx.GetActorID(c.Request.Context()), "key": c.GetString("actor_id")})
	}

	t.Run("anonymous mode honours X-Actor-ID", func(t *testing.T) {
		r := newEngine(func(r *gin.Engine) { r.GET("/me", Auth(nil), whoami) })
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(HeaderActorID, "clerk")
		w, body := serve(r, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "clerk", body["actor"])
		assert.Equal(t, "clerk", body["key"])
	})

	t.Run("anonymous mode without header", func(t *testing.T) {
		r := newEngine(func(r *gin.Engine) { r.GET("/me", Auth(nil), whoami) })
		w, body := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", body["actor"])
	})

	tests := []struct {
		name   string
		header string
		status int
		actor  string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusOK, actor: "u-1"},
		{name: "scheme is case insensitive", header: "bearer good", status: http.StatusOK, actor: "u-1"},
	}
	r := newEngine(func(r *gin.Engine) { r.GET("/me", Auth(stubValidator{}), whoami) })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w, body := serve(r, req)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.actor, body["actor"])
			} else {
				assert.Equal(t, apperror.CodeUnauthorized, body["code"])
			}
		})
	}
}
