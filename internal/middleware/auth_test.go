package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signDevToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// identityEcho records what the middleware stored in the request context.
func identityEcho(userID, email, role *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*userID = GetUserID(r.Context())
		*email = GetUserEmail(r.Context())
		*role = GetUserRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthAcceptsDevToken(t *testing.T) {
	var userID, email, role string
	handler := Auth(nil, testSecret)(identityEcho(&userID, &email, &role))

	token := signDevToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"email":   "user-1@demo.com",
		"role":    RoleInstitution,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "user-1@demo.com", email)
	assert.Equal(t, RoleInstitution, role)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	handler := Auth(nil, testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signDevToken(t, "other-secret", jwt.MapClaims{
			"user_id": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", "Bearer " + signDevToken(t, testSecret, jwt.MapClaims{
			"user_id": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"no user id", "Bearer " + signDevToken(t, testSecret, jwt.MapClaims{
			"email": "user-1@demo.com", "exp": time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthDegradesUnknownRoleToLearner(t *testing.T) {
	var userID, email, role string
	handler := Auth(nil, testSecret)(identityEcho(&userID, &email, &role))

	token := signDevToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "superuser",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleLearner, role)
}

func TestRequireRole(t *testing.T) {
	var userID, email, role string
	allow := RequireRole(RoleAdmin)
	handler := Auth(nil, testSecret)(allow(identityEcho(&userID, &email, &role)))

	adminToken := signDevToken(t, testSecret, jwt.MapClaims{
		"user_id": "admin-1", "role": RoleAdmin, "exp": time.Now().Add(time.Hour).Unix(),
	})
	learnerToken := signDevToken(t, testSecret, jwt.MapClaims{
		"user_id": "learner-1", "role": RoleLearner, "exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+learnerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
