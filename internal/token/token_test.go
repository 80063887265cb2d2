package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := NewService([]byte("test-secret-change-me"), time.Hour)

	for _, id := range []int64{1, 42, 1 << 40} {
		tok, err := svc.Issue(id)
		if err != nil {
			t.Fatalf("issue for %d: %v", id, err)
		}

		got, err := svc.Verify(tok)
		if err != nil {
			t.Fatalf("verify for %d: %v", id, err)
		}
		if got != id {
			t.Fatalf("verify returned %d, want %d", got, id)
		}
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := NewService([]byte("test-secret-change-me"), -time.Minute)

	tok, err := svc.Issue(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Verify(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewService([]byte("secret-a"), time.Hour)
	verifier := NewService([]byte("secret-b"), time.Hour)

	tok, err := issuer.Issue(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verifier.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	svc := NewService([]byte("test-secret-change-me"), time.Hour)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.Verify(tok); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", tok, err)
		}
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	secret := []byte("test-secret-change-me")
	svc := NewService(secret, time.Hour)

	// A structurally valid token signed with the right secret but without
	// a user_id claim must not resolve to an identity.
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := raw.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(signed); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}
