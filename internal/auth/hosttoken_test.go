package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHostTokensRoundTrip(t *testing.T) {
	tokens := NewHostTokens("s3cret", time.Hour)

	raw, id, err := tokens.Issue("ABC234")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id == "" {
		t.Fatalf("expected token id")
	}

	code, gotID, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if code != "ABC234" || gotID != id {
		t.Fatalf("expected ABC234/%s, got %s/%s", id, code, gotID)
	}
}

func TestHostTokensIssueRotatesID(t *testing.T) {
	tokens := NewHostTokens("s3cret", time.Hour)

	_, first, err := tokens.Issue("ABC234")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, second, err := tokens.Issue("ABC234")
	if err != nil {
		t.Fatalf("issue 2: %v", err)
	}
	if first == second {
		t.Fatalf("expected a fresh id per issue, got %s twice", first)
	}
}

func TestHostTokensRejectsForeignSecret(t *testing.T) {
	raw, _, err := NewHostTokens("one", time.Hour).Issue("ABC234")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := NewHostTokens("two", time.Hour).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestHostTokensRejectsExpired(t *testing.T) {
	tokens := NewHostTokens("s3cret", time.Minute)
	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issuedAt }
	raw, _, err := tokens.Issue("ABC234")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestHostTokensRejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{Issuer: issuer, Subject: "ABC234", ID: "x"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := NewHostTokens("s3cret", time.Hour).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unsigned token rejected, got %v", err)
	}
}

func TestHostTokensRejectsGarbage(t *testing.T) {
	if _, _, err := NewHostTokens("s3cret", time.Hour).Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
