package main

import (
	"bytes"
	"testing"
)

func TestSessionKeyFromEnv(t *testing.T) {
	t.Setenv("SESSION_KEY", "configured-key")
	if got := sessionKey(); string(got) != "configured-key" {
		t.Errorf("sessionKey() = %q, want the SESSION_KEY value", got)
	}
}

func TestSessionKeyUnsetIsRandom(t *testing.T) {
	t.Setenv("SESSION_KEY", "")

	first := sessionKey()
	if len(first) != 32 {
		t.Fatalf("generated key is %d bytes, want 32", len(first))
	}
	if bytes.Equal(first, sessionKey()) {
		t.Error("generated keys must not repeat")
	}
}
