package crypto

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestVerifyPasswordRejectsEmptyHash(t *testing.T) {
	if VerifyPassword("", "secret") {
		t.Fatal("expected empty hash to never verify")
	}
}

func TestBcryptHasherUsesConfiguredCost(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost error: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("expected cost %d, got %d", bcrypt.MinCost, cost)
	}
	if !hasher.Verify(hash, "secret") {
		t.Fatal("expected hasher to verify its own hash")
	}
}

func TestNewBcryptHasherClampsInvalidCost(t *testing.T) {
	if got := NewBcryptHasher(99).Cost; got != DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("generate token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected non-empty token")
	}
}
