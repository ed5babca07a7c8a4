package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenIssuer identifies tokens accepted by this service.
const TokenIssuer = "chat-sync"

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of an access token issued by the auth service. The
// subject holds the user id.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
}

// UserID returns the numeric user id stored in the subject.
func (c *Claims) UserID() (int, error) {
	id, err := strconv.Atoi(c.Subject)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// GenerateToken signs an HS256 token for userID. Tokens are normally issued by
// the auth service; this is used by tooling and tests.
func GenerateToken(userID int, username, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.Itoa(userID),
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		Username: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature and expiry and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWTAuth authenticates bearer tokens signed with a shared secret.
type JWTAuth struct {
	secret string
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: secret}
}

// Authenticate returns the user id carried by token.
func (a *JWTAuth) Authenticate(token string) (int, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
