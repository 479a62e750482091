package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"gostudy-social/pkg/auth"
)

const testSecret = "test-secret"

func newAuthRouter(t *testing.T) (*gin.Engine, *map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	am := NewAuthMiddleware(kratoslog.DefaultLogger, testSecret)
	captured := make(map[string]interface{})

	router := gin.New()
	router.Use(am.GinAuth())
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/api/v1/group/list", func(c *gin.Context) {
		if v, ok := c.Get("userID"); ok {
			captured["userID"] = v
		}
		if v, ok := c.Get("username"); ok {
			captured["username"] = v
		}
		c.Status(http.StatusOK)
	})
	return router, &captured
}

func TestGinAuthValidToken(t *testing.T) {
	router, captured := newAuthRouter(t)

	token, err := auth.GenerateJWTWithConfig(map[string]any{
		"user_id":  int64(42),
		"username": "alice",
	}, &auth.JWTConfig{Secret: testSecret, ExpireTime: time.Hour})
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/group/list", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if userID, ok := (*captured)["userID"].(int64); !ok || userID != 42 {
		t.Errorf("userID not set from claims: %v", (*captured)["userID"])
	}
	if username, ok := (*captured)["username"].(string); !ok || username != "alice" {
		t.Errorf("username not set from claims: %v", (*captured)["username"])
	}
}

func TestGinAuthMissingToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/group/list", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestGinAuthWrongSecret(t *testing.T) {
	router, _ := newAuthRouter(t)

	token, err := auth.GenerateJWTWithConfig(map[string]any{
		"user_id": int64(7),
	}, &auth.JWTConfig{Secret: "another-secret", ExpireTime: time.Hour})
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/group/list", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
}

func TestGinAuthSkipsHealthCheck(t *testing.T) {
	router, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health check should bypass auth, got %d", rec.Code)
	}
}
