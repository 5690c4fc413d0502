package webadmin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter(guilds Guilds, auth Auth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.POST("/api/auth/token", auth.Token)
	g.GET("/protected", auth.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	g.DELETE("/api/guilds/:id/panels/:index", guilds.DeletePanel)
	return g
}

func TestDeletePanel_DefaultPanelRefused(t *testing.T) {
	r := testRouter(NewGuilds(nil, nil), Auth{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/guilds/g1/panels/0", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestDeletePanel_BadIndex(t *testing.T) {
	r := testRouter(NewGuilds(nil, nil), Auth{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/guilds/g1/panels/abc", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestToken_RejectsWhenSecretUnset(t *testing.T) {
	// An empty configured secret must never be exchangeable for a token.
	r := testRouter(Guilds{}, NewAuth(nil, []byte("k"), ""))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"secret":""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Fatalf("status = %d, token issued with no secret configured", w.Code)
	}
}

func TestMiddleware_MissingBearer(t *testing.T) {
	r := testRouter(Guilds{}, NewAuth(nil, []byte("k"), "admin"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMiddleware_GarbageToken(t *testing.T) {
	r := testRouter(Guilds{}, NewAuth(nil, []byte("k"), "admin"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
