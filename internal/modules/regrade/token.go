package regrade

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/saiten-app/core/internal/config"
)

var (
	// ErrDisabled is returned when no signing secret is configured. The service
	// fails closed: no tokens are issued and none verify.
	ErrDisabled = errors.New("regrade tokens disabled: signing secret not configured")
	// ErrInvalidToken covers signature mismatch, expiry and malformed structure.
	ErrInvalidToken = errors.New("invalid regrade token")
)

// Payload is the verified content of a regrade token. A token is a bearer
// capability scoped to exactly one (user, label, device) triple.
type Payload struct {
	UserID      string
	Label       string
	Fingerprint string
	Remaining   int
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type tokenClaims struct {
	Label       string `json:"label"`
	Fingerprint string `json:"fp"`
	Remaining   int    `json:"remaining"`
	jwtlib.RegisteredClaims
}

// Service issues and verifies stateless free-regrade capability tokens. No
// server-side state exists per token; compromise mitigation is the short TTL
// plus the fingerprint binding.
type Service struct {
	secret  []byte
	maxFree int
	ttl     time.Duration
}

// NewService builds the token service from config. An empty secret yields a
// disabled (fail-closed) service.
func NewService(cfg config.RegradeConfig) *Service {
	var secret []byte
	if cfg.Secret != "" {
		secret = []byte(cfg.Secret)
	}
	return &Service{
		secret:  secret,
		maxFree: cfg.MaxFree,
		ttl:     time.Duration(cfg.TTLDays) * 24 * time.Hour,
	}
}

// Enabled reports whether tokens can be issued and verified.
func (s *Service) Enabled() bool { return len(s.secret) > 0 }

// MaxFree returns the free-regrade allowance granted on a fresh token.
func (s *Service) MaxFree() int { return s.maxFree }

// Issue serializes and signs a token for the given capability triple.
func (s *Service) Issue(userID, label, fingerprint string, remaining int) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if remaining < 0 {
		return "", fmt.Errorf("remaining must be >= 0, got %d", remaining)
	}

	now := time.Now()
	claims := tokenClaims{
		Label:       label,
		Fingerprint: fingerprint,
		Remaining:   remaining,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify recomputes the signature and returns the payload. Client-supplied
// fields are never trusted without a byte-for-byte signature match.
func (s *Service) Verify(token string) (*Payload, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	parsed, err := jwtlib.ParseWithClaims(token, &tokenClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Label == "" {
		return nil, ErrInvalidToken
	}

	p := &Payload{
		UserID:      claims.Subject,
		Label:       claims.Label,
		Fingerprint: claims.Fingerprint,
		Remaining:   claims.Remaining,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// Redeemable reports whether the payload grants a free regrade for the given
// caller context. All three scope fields must match and the allowance must not
// be exhausted.
func (p *Payload) Redeemable(userID, label, fingerprint string) bool {
	if p == nil {
		return false
	}
	return p.UserID == userID &&
		p.Label == label &&
		p.Fingerprint == fingerprint &&
		p.Remaining > 0
}
