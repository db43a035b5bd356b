package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:   "secret",
		JWTIssuer:   "issuer",
		JWTAudience: "aud",
		TokenTTL:    15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyServiceToken(t *testing.T) {
	m := newManager(t)

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Issue(now, "sweeper", []string{"retry:read", "retry:write"}, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "sweeper" || len(claims.Scopes) != 2 {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Verify(tok, now.Add(20*time.Minute)); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	m := newManager(t)
	now := time.Now()

	other, _ := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "issuer", JWTAudience: "aud"})
	tok, err := other.Issue(now, "x", []string{"calls:read"}, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature failure")
	}

	// right key, wrong token type
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "issuer",
			Subject:   "x",
			Audience:  jwt.ClaimStrings{"aud"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Scopes:    []string{"calls:read"},
		TokenType: "access",
	}
	raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if _, err := m.Verify(raw, now); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestIssueRequiresSubjectAndScopes(t *testing.T) {
	m := newManager(t)
	if _, err := m.Issue(time.Now(), "", []string{"a"}, 0); err == nil {
		t.Fatalf("expected subject error")
	}
	if _, err := m.Issue(time.Now(), "svc", nil, 0); err == nil {
		t.Fatalf("expected scopes error")
	}
}

func TestRequireServiceToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/x", RequireServiceToken(m), func(c *gin.Context) {
		sub, err := Subject(c.Request.Context())
		if err != nil {
			t.Errorf("subject: %v", err)
		}
		c.String(http.StatusOK, sub)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}

	tok, _ := m.Issue(time.Now(), "scheduler", []string{"calls:write"}, 0)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "scheduler" {
		t.Fatalf("expected 200 scheduler, got %d %q", w.Code, w.Body.String())
	}
}
