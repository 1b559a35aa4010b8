package accounts_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(clock *testClock, key string) *accounts.TokenServiceImpl {
	return accounts.NewTokenService([]byte(key), "go-accounts-test",
		accounts.WithTokenClock(clock.Now),
		accounts.WithTokenLogger(quietLogger{}),
	)
}

func TestTokenServiceIssueAndValidate(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(clock, testSigningKey)
	id := uuid.New()

	token, err := ts.Issue("alice@example.com", id.String(), accounts.RoleAuthenticated, 30*time.Minute)
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject())
	assert.Equal(t, id.String(), claims.UserID())
	assert.Equal(t, accounts.RoleAuthenticated, claims.Role())
	assert.True(t, claims.HasRole("AUTHENTICATED"))
	assert.Equal(t, accounts.PurposeAccess, claims.Purpose)
	assert.Equal(t, clock.Now().Add(30*time.Minute), claims.Expires().UTC())

	actor := claims.Actor()
	assert.Equal(t, id.String(), actor.ID)
	assert.Equal(t, "alice@example.com", actor.Email)
}

func TestTokenServiceExpiryBoundary(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(clock, testSigningKey)

	token, err := ts.Issue("alice@example.com", uuid.NewString(), accounts.RoleAuthenticated, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute - time.Second)
	_, err = ts.Validate(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrTokenExpired)
}

func TestTokenServiceChecksSignatureBeforeExpiry(t *testing.T) {
	clock := newTestClock()
	forger := newTokenService(clock, "another-key-another-key-another-k")
	ts := newTokenService(clock, testSigningKey)

	token, err := forger.Issue("alice@example.com", uuid.NewString(), accounts.RoleAdmin, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrTokenSignatureInvalid)
}

func TestTokenServiceMalformed(t *testing.T) {
	ts := newTokenService(newTestClock(), testSigningKey)

	_, err := ts.Validate("not-a-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrTokenMalformed)
	assert.True(t, accounts.IsTokenError(err))
}

func TestTokenServiceRejectsForeignIssuer(t *testing.T) {
	clock := newTestClock()
	foreign := accounts.NewTokenService([]byte(testSigningKey), "someone-else", accounts.WithTokenClock(clock.Now))
	ts := newTokenService(clock, testSigningKey)

	token, err := foreign.Issue("alice@example.com", uuid.NewString(), accounts.RoleAdmin, time.Minute)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.True(t, accounts.IsTokenError(err))
}

func TestTokenServiceVerification(t *testing.T) {
	clock := newTestClock()
	ts := newTokenService(clock, testSigningKey)
	id := uuid.New()

	token, err := ts.IssueVerification(id, "alice@example.com", time.Hour)
	require.NoError(t, err)

	t.Run("valid for its target", func(t *testing.T) {
		claims, err := ts.ValidateVerification(token, id)
		require.NoError(t, err)
		assert.Equal(t, accounts.PurposeVerification, claims.Purpose)
		assert.Equal(t, id.String(), claims.TargetID)
		assert.Equal(t, "alice@example.com", claims.Subject())
	})

	t.Run("target mismatch", func(t *testing.T) {
		_, err := ts.ValidateVerification(token, uuid.New())
		assert.ErrorIs(t, err, accounts.ErrTargetMismatch)
	})

	t.Run("target mismatch reported before signature", func(t *testing.T) {
		forged, err := newTokenService(clock, "another-key-another-key-another-k").IssueVerification(id, "alice@example.com", time.Hour)
		require.NoError(t, err)

		_, err = ts.ValidateVerification(forged, uuid.New())
		assert.ErrorIs(t, err, accounts.ErrTargetMismatch)

		_, err = ts.ValidateVerification(forged, id)
		assert.ErrorIs(t, err, accounts.ErrTokenSignatureInvalid)
	})

	t.Run("access token is not a verification token", func(t *testing.T) {
		access, err := ts.Issue("alice@example.com", id.String(), accounts.RoleAuthenticated, time.Hour)
		require.NoError(t, err)

		_, err = ts.ValidateVerification(access, id)
		require.Error(t, err)
		assert.True(t, accounts.IsTokenError(err))
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		_, err := ts.ValidateVerification(token, id)
		assert.ErrorIs(t, err, accounts.ErrTokenExpired)
	})
}
