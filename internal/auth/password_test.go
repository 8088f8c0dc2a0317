package auth_test

import (
	"crypto/rand"
	"testing"

	"github.com/pilab-dev/planauth/internal/auth"
)

func TestPasswordHasher(t *testing.T) {
	hasher := auth.NewBcryptPasswordHasher(0)

	hash, err := hasher.Hash("password")
	if err != nil {
		t.Errorf("Hash failed: %v", err)
	}
	if err := hasher.Verify(hash, "password"); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if err := hasher.Verify(hash, "wrong"); err == nil {
		t.Errorf("Verify should have failed for a wrong password")
	}

	t.Run("TestTooLongPassword", func(t *testing.T) {
		tooLongPass := make([]byte, 73)
		rand.Read(tooLongPass)

		_, err := hasher.Hash(string(tooLongPass))
		if err == nil {
			t.Errorf("Hash should have failed")
		}
	})
}

func TestRandomSecret(t *testing.T) {
	a, err := auth.RandomSecret(24)
	if err != nil {
		t.Fatalf("RandomSecret failed: %v", err)
	}
	b, err := auth.RandomSecret(24)
	if err != nil {
		t.Fatalf("RandomSecret failed: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 characters, got %d", len(a))
	}
	if a == b {
		t.Errorf("two secrets should differ")
	}
}
