package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryUsers(), "paperprop-test", []byte("test-secret"), time.Hour)
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	userID, err := svc.Register(ctx, "Trader@Example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	// Email matching is case-insensitive.
	token, err := svc.Login(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)

	parsed, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "trader@example.com", "another pass")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService()

	_, err := svc.Register(context.Background(), "trader@example.com", "short")
	require.Error(t, err)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "trader@example.com", "wrong horse")
	require.Error(t, err)
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	require.Error(t, err)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	svc := newTestService()
	other := NewService(NewMemoryUsers(), "paperprop-test", []byte("other-secret"), time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	require.Error(t, err)
}
