package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/you/go-flight-aggregator/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "s3cret", JWTUser: "admin", JWTPassword: "pw"}
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func TestLoginHandler(t *testing.T) {
	cfg := testConfig()
	h := LoginHandler(cfg, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoginHandler_NoSecret(t *testing.T) {
	h := LoginHandler(&config.Config{JWTUser: "admin", JWTPassword: "pw"}, nil)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJWTMiddleware(t *testing.T) {
	cfg := testConfig()
	mw := JWTMiddleware(okHandler("public"), okHandler("protected"), cfg, zaptest.NewLogger(t))

	tok, err := IssueToken(cfg, "admin")
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredTok, err := expired.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		header string
		code   int
		body   string
	}{
		{name: "login is public", target: "/auth/login", code: http.StatusOK, body: "public"},
		{name: "healthz is public", target: "/healthz", code: http.StatusOK, body: "public"},
		{name: "missing token", target: "/flights/search", code: http.StatusUnauthorized},
		{name: "valid header", target: "/flights/search", header: "Bearer " + tok, code: http.StatusOK, body: "protected"},
		{name: "valid query token", target: "/ws/routes?token=" + tok, code: http.StatusOK, body: "protected"},
		{name: "expired", target: "/flights/search", header: "Bearer " + expiredTok, code: http.StatusUnauthorized},
		{name: "wrong secret", target: "/flights/search", header: "Bearer " + foreign, code: http.StatusUnauthorized},
		{name: "not bearer", target: "/flights/search", header: "Basic abc", code: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)
			require.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				require.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestJWTMiddleware_NoSecretRefusesProtectedRoutes(t *testing.T) {
	cfg := &config.Config{}
	mw := JWTMiddleware(okHandler("public"), okHandler("protected"), cfg, zaptest.NewLogger(t))

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "anyone",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(""))
	require.NoError(t, err)

	for _, target := range []string{"/flights/search", "/flights/routes", "/ws/routes?token=" + forged} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		require.NotEqual(t, "protected", rec.Body.String())
	}

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
