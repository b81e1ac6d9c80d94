package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)

	tok, err := iss.Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "a@x.com")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Errorf("validity = %v, want %v", got, time.Hour)
	}
}

func TestDefaultTTLIsOneDay(t *testing.T) {
	iss := NewIssuer("s3cret", 0)
	tok, err := iss.Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 24*time.Hour {
		t.Errorf("validity = %v, want 24h", got)
	}
}

func TestVerifyRejects(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	good, err := iss.Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expired := NewIssuer("s3cret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Issue("a@x.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@x.com"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none) error = %v", err)
	}

	tests := []struct {
		name  string
		iss   *Issuer
		token string
	}{
		{"wrong secret", NewIssuer("other", time.Hour), good},
		{"expired", iss, stale},
		{"alg none", iss, unsigned},
		{"garbage", iss, "not-a-token"},
		{"empty", iss, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.iss.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestClaimsContext(t *testing.T) {
	if _, ok := ClaimsFrom(context.Background()); ok {
		t.Fatal("ClaimsFrom(empty) ok = true")
	}
	ctx := WithClaims(context.Background(), &Claims{Email: "a@x.com"})
	c, ok := ClaimsFrom(ctx)
	if !ok || c.Email != "a@x.com" {
		t.Errorf("ClaimsFrom() = %v, %v", c, ok)
	}
}

func TestEmptySecretRefused(t *testing.T) {
	iss := NewIssuer("", 0)

	if _, err := iss.Issue("admin@x.com"); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("Issue() error = %v, want ErrEmptySecret", err)
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: "admin@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte{})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.Verify(forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}
