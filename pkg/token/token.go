// Package token mints and verifies the HS256 bearer tokens issued after a
// successful verification. Only HS256 is accepted on verify; any other
// algorithm, a bad signature, or a malformed token maps to ErrInvalid, and a
// past-expiry token maps to ErrExpired.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpirySeconds is the token lifetime.
const ExpirySeconds = 3600

var (
	// ErrExpired indicates a structurally valid token past its exp claim.
	ErrExpired = errors.New("token expired")

	// ErrInvalid indicates a malformed token, a signature mismatch, or a
	// disallowed signing algorithm.
	ErrInvalid = errors.New("invalid token")
)

// Claims is the signed payload attesting a completed verification.
type Claims struct {
	AgentID      string `json:"agent_id"`
	VerifiedAt   int64  `json:"verified_at"`
	ExpiresIn    int64  `json:"expires_in"`
	StagesPassed []int  `json:"stages_passed"`
	jwt.RegisteredClaims
}

// Signer issues and verifies tokens with a process-wide symmetric secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer. The secret must be configured per deployment;
// the config default exists for development only.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign mints a token for agentID covering the given passed stages.
// verified_at and iat are the current Unix time; exp = iat + ExpirySeconds.
func (s *Signer) Sign(agentID string, stagesPassed []int) (string, error) {
	now := time.Now()
	claims := Claims{
		AgentID:      agentID,
		VerifiedAt:   now.Unix(),
		ExpiresIn:    ExpirySeconds,
		StagesPassed: stagesPassed,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ExpirySeconds * time.Second)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
// Returns ErrExpired or ErrInvalid on failure.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return claims, nil
}
