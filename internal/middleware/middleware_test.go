package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/logx"
	"chat-sync/internal/observability"
	"chat-sync/internal/telemetry"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "alice", secret, time.Minute)
	require.NoError(t, err)

	id, err := NewJWTAuth(secret).Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = NewJWTAuth("other-secret").Authenticate(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken(42, "alice", secret, -time.Minute)
	require.NoError(t, err)

	_, err = NewJWTAuth(secret).Authenticate(token)
	assert.Error(t, err)
}

func TestTokenWithoutNumericSubjectRejected(t *testing.T) {
	claims := &Claims{StandardClaims: jwt.StandardClaims{Subject: "alice", ExpiresAt: time.Now().Add(time.Minute).Unix()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = NewJWTAuth(secret).Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNoneAlgorithmRejected(t *testing.T) {
	claims := &Claims{StandardClaims: jwt.StandardClaims{Subject: "1", ExpiresAt: time.Now().Add(time.Minute).Unix()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTAuth(secret).Authenticate(token)
	assert.Error(t, err)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logx.Discard()
	r := gin.New()
	r.Use(RequestID(), AccessLog())
	r.GET("/me", AuthMiddleware(NewJWTAuth(secret)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userID":    c.GetInt("userID"),
			"requestID": telemetry.RequestIDFromContext(c.Request.Context()),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	token, err := GenerateToken(7, "bob", secret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusOK},
		{name: "lower-case scheme", header: "bearer " + token, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"userID":7`)
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	r := newRouter()
	token, err := GenerateToken(7, "bob", secret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(observability.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(observability.RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"requestID":"req-123"`)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(observability.RequestIDHeader))
}
