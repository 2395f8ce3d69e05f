package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateIssuedToken(t *testing.T) {
	gate := NewJWTGate("secret", "platform-auth")

	token, err := gate.Issue(42, time.Minute)
	require.NoError(t, err)

	userID, err := gate.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, 42, userID)
}

func TestAuthenticateBearerPrefix(t *testing.T) {
	gate := NewJWTGate("secret", "")

	token, err := gate.Issue(7, time.Minute)
	require.NoError(t, err)

	userID, err := gate.Authenticate(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, 7, userID)
}

func TestAuthenticateEmptyCredential(t *testing.T) {
	gate := NewJWTGate("secret", "")

	_, err := gate.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = gate.Authenticate(context.Background(), "Bearer ")
	require.Error(t, err)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	issuer := NewJWTGate("secret-a", "")
	gate := NewJWTGate("secret-b", "")

	token, err := issuer.Issue(42, time.Minute)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	gate := NewJWTGate("secret", "")

	token, err := gate.Issue(42, -time.Minute)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateIssuerMismatch(t *testing.T) {
	other := NewJWTGate("secret", "other-service")
	gate := NewJWTGate("secret", "platform-auth")

	token, err := other.Issue(42, time.Minute)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}
