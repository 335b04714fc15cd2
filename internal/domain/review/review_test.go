package review

import "testing"

func TestNewCommitToken(t *testing.T) {
	secret, digest, err := NewCommitToken()
	if err != nil {
		t.Fatalf("NewCommitToken: %v", err)
	}
	if len(secret) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(secret))
	}
	if digest != HashToken(secret) {
		t.Error("digest does not match HashToken(secret)")
	}
	if digest == secret {
		t.Error("digest equals secret")
	}

	secret2, digest2, err := NewCommitToken()
	if err != nil {
		t.Fatalf("NewCommitToken: %v", err)
	}
	if secret == secret2 || digest == digest2 {
		t.Error("two tokens are identical")
	}
}
