package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(), RequireToken(token), WriteAudit(nil))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/healthz", ok)
	r.GET("/api/v1/products", ok)
	r.POST("/api/v1/cycles/scoring", ok)
	RegisterDocs(r)
	return r
}

func status(r *gin.Engine, method, path, auth string) int {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireToken(t *testing.T) {
	r := newRouter("s3cret")
	cases := []struct {
		method, path, auth string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/v1/products", "", http.StatusOK},
		{http.MethodPost, "/api/v1/cycles/scoring", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/cycles/scoring", "Bearer nope", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/cycles/scoring", "s3cret", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/cycles/scoring", "Bearer s3cret", http.StatusOK},
		{http.MethodOptions, "/api/v1/cycles/scoring", "", http.StatusNoContent},
		{http.MethodGet, "/docs", "", http.StatusOK},
	}
	for _, tc := range cases {
		if got := status(r, tc.method, tc.path, tc.auth); got != tc.want {
			t.Fatalf("%s %s auth=%q: got=%d want=%d", tc.method, tc.path, tc.auth, got, tc.want)
		}
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	r := newRouter("")
	if got := status(r, http.MethodPost, "/api/v1/cycles/scoring", ""); got != http.StatusOK {
		t.Fatalf("got=%d want=%d", got, http.StatusOK)
	}
}
