package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndVerify(t *testing.T) {
	m := NewManager("topsecret", time.Hour)
	token, err := m.Sign("user42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user42" {
		t.Errorf("Verify returned %q, want user42", userID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).Sign("user42")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager("secret-b", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewManager("topsecret", time.Hour)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): err = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager("topsecret", -time.Minute)
	token, err := m.Sign("user42")
	if err != nil {
		t.Fatal(err)
	}
	// a negative lifetime skips the expiry claim, so build one by hand
	claims := Claims{
		UserID: "user42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("topsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(expired); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
	// the lifetime-free token stays valid
	if _, err := m.Verify(token); err != nil {
		t.Errorf("token without expiry rejected: %v", err)
	}
}

func TestVerifyRejectsMissingUserID(t *testing.T) {
	m := NewManager("topsecret", time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user42",
	}).SignedString([]byte("topsecret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	m := NewManager("topsecret", time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("alg=none accepted: err = %v", err)
	}
}
