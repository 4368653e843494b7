package regrade

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiten-app/core/internal/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(config.RegradeConfig{
		Secret:  "test-secret",
		MaxFree: 2,
		TTLDays: 7,
	})
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue("user-1", "大問3小問2", "fp-abc", 2)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, "大問3小問2", payload.Label)
	assert.Equal(t, "fp-abc", payload.Fingerprint)
	assert.Equal(t, 2, payload.Remaining)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), payload.ExpiresAt, time.Minute)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue("user-1", "Q1", "fp", 2)
	require.NoError(t, err)

	// Flip one byte of the signature segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsPayloadForgery(t *testing.T) {
	svc := newTestService(t)
	other := NewService(config.RegradeConfig{Secret: "another-secret", MaxFree: 2, TTLDays: 7})

	// A token minted under a different secret claims a higher allowance.
	forged, err := other.Issue("user-1", "Q1", "fp", 99)
	require.NoError(t, err)

	_, err = svc.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := &Service{secret: []byte("test-secret"), maxFree: 2, ttl: -time.Hour}

	token, err := svc.Issue("user-1", "Q1", "fp", 2)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedeemableScopeChecks(t *testing.T) {
	payload := &Payload{
		UserID:      "user-1",
		Label:       "Q1",
		Fingerprint: "fp",
		Remaining:   1,
	}

	assert.True(t, payload.Redeemable("user-1", "Q1", "fp"))
	assert.False(t, payload.Redeemable("user-2", "Q1", "fp"))
	assert.False(t, payload.Redeemable("user-1", "Q2", "fp"))
	assert.False(t, payload.Redeemable("user-1", "Q1", "other-device"))
}

func TestExhaustedTokenNotRedeemable(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue("user-1", "Q1", "fp", 0)
	require.NoError(t, err)

	payload, err := svc.Verify(token)
	require.NoError(t, err)
	assert.False(t, payload.Redeemable("user-1", "Q1", "fp"))
}

func TestDisabledServiceFailsClosed(t *testing.T) {
	svc := NewService(config.RegradeConfig{MaxFree: 2, TTLDays: 7})

	assert.False(t, svc.Enabled())

	_, err := svc.Issue("user-1", "Q1", "fp", 2)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = svc.Verify("whatever")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestIssueRejectsNegativeRemaining(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Issue("user-1", "Q1", "fp", -1)
	assert.Error(t, err)
}
