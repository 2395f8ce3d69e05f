package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a credential cannot be resolved to a
// user identity. A connection presenting such a credential is never admitted.
var ErrUnauthenticated = errors.New("unauthenticated")

// Gate verifies a bearer credential and resolves it to a user identity.
type Gate interface {
	Authenticate(ctx context.Context, credential string) (int, error)
}

// Claims carries the platform token claims.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTGate validates HS256 bearer tokens issued by the platform's auth
// service.
type JWTGate struct {
	secret []byte
	issuer string
}

// NewJWTGate constructs a JWTGate.
func NewJWTGate(secret, issuer string) *JWTGate {
	return &JWTGate{secret: []byte(secret), issuer: issuer}
}

// Authenticate accepts either a bare token or a full "Bearer <token>"
// header value and returns the authenticated user id.
func (g *JWTGate) Authenticate(_ context.Context, credential string) (int, error) {
	token := strings.TrimSpace(credential)
	if parts := strings.SplitN(token, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		token = parts[1]
	}
	if token == "" {
		return 0, ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return g.secret, nil
	})
	if err != nil {
		return 0, ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, ErrUnauthenticated
	}
	if g.issuer != "" && claims.Issuer != g.issuer {
		return 0, ErrUnauthenticated
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		userID, _ = strconv.Atoi(claims.Subject)
	}
	if userID <= 0 {
		return 0, ErrUnauthenticated
	}
	return userID, nil
}

// Issue signs a token for the user. The auth service owns issuance in
// production; this is used by tests and local tooling.
func (g *JWTGate) Issue(userID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}
