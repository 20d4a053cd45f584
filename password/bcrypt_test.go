package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := b.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}

	ok, err := b.Verify("correct horse", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = b.Verify("battery staple", hash)
	if err != nil {
		t.Fatalf("mismatch must not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestBcryptDefaultCost(t *testing.T) {
	b, err := NewBcrypt(0)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if b.Cost() != DefaultBcryptCost {
		t.Fatalf("expected cost %d, got %d", DefaultBcryptCost, b.Cost())
	}
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBcryptRejectsLongInput(t *testing.T) {
	b, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := b.Hash(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptMalformedHash(t *testing.T) {
	b, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := b.Verify("pw", "$2a$nope"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	low, _ := NewBcrypt(bcrypt.MinCost)
	hash, _ := low.Hash("pw")

	high, _ := NewBcrypt(bcrypt.MinCost + 1)
	upgrade, err := high.NeedsUpgrade(hash)
	if err != nil || !upgrade {
		t.Fatalf("expected upgrade, got %v %v", upgrade, err)
	}
	upgrade, _ = low.NeedsUpgrade(hash)
	if upgrade {
		t.Fatal("same cost must not need upgrade")
	}
}
