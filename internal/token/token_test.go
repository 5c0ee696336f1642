package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("test-secret", 30*time.Minute, 7*24*time.Hour)
}

func TestIssueAndVerifyAccess(t *testing.T) {
	svc := newTestService()

	pair, err := svc.IssuePair("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	subject, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	svc := newTestService()
	pair, err := svc.IssuePair("alice@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, err = svc.VerifyRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, _, err = svc.Rotate(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := newTestService()
	pair, err := svc.IssuePair("alice@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalid)

	other := NewService("different-secret", 30*time.Minute, 7*24*time.Hour)
	_, err = other.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret", -time.Minute, -time.Minute)
	pair, err := svc.IssuePair("alice@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalid)

	_, _, err = svc.Rotate(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRotateReturnsFreshPair(t *testing.T) {
	svc := newTestService()
	pair, err := svc.IssuePair("alice@example.com")
	require.NoError(t, err)

	next, subject, err := svc.Rotate(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
}

func TestRotateRetiresOldRefreshToken(t *testing.T) {
	svc := newTestService()
	pair, err := svc.IssuePair("alice@example.com")
	require.NoError(t, err)

	_, _, err = svc.Rotate(pair.RefreshToken)
	require.NoError(t, err)

	_, _, err = svc.Rotate(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRotated)
}
