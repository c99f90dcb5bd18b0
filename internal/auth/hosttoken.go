package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "quiz-room-service"

var ErrInvalidToken = errors.New("invalid host token")

// HostTokens signs host credentials. The subject is the room code and the token id is what a
// session compares against on resume.
type HostTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHostTokens(secret string, ttl time.Duration) *HostTokens {
	if secret == "" {
		// Tokens then only survive for the process lifetime, which matches room lifetime.
		secret = uuid.NewString()
	}
	return &HostTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for code and its id.
func (h *HostTokens) Issue(code string) (string, string, error) {
	now := h.now()
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  code,
		ID:       id,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if h.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(h.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign host token: %w", err)
	}
	return signed, id, nil
}

// Verify checks the signature and expiry and returns the room code and token id.
func (h *HostTokens) Verify(raw string) (string, string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return h.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.ID, nil
}
