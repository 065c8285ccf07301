package security

import (
	"strings"
	"testing"
	"time"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	encKey := []byte("0123456789abcdef0123456789abcdef")
	signSecret := []byte("test-signing-secret-at-least-32-bytes!!")
	guard := NewDeviceGuard([]byte("test-salt"))
	v, err := NewVault(encKey, signSecret, guard)
	if err != nil {
		t.Fatalf("Failed to create vault: %v", err)
	}
	return v
}

func TestValidDeviceID(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"BP22.250325.006", true},
		{"abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890", true},
		{"device01", true},
		{"short", false},
		{"bad id!", false},
		{"", false},
		{strings.Repeat("a", 65), false},
		{"device-with-hyphen", false},
	}
	for _, c := range cases {
		if got := ValidDeviceID(c.id); got != c.valid {
			t.Errorf("ValidDeviceID(%q) = %v, want %v", c.id, got, c.valid)
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	guard := NewDeviceGuard([]byte("salt-a"))
	fp1 := guard.Fingerprint("BP22.250325.006")
	fp2 := guard.Fingerprint("BP22.250325.006")
	if fp1 != fp2 {
		t.Errorf("Fingerprint not deterministic: %s != %s", fp1, fp2)
	}
	if fp1 == "BP22.250325.006" {
		t.Error("Fingerprint must not equal the raw identifier")
	}

	other := NewDeviceGuard([]byte("salt-b"))
	if other.Fingerprint("BP22.250325.006") == fp1 {
		t.Error("Different salts should yield different fingerprints")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Issue("hls/ep1/en/playlist.m3u8", "BP22.250325.006", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	path, err := v.Verify(token, "BP22.250325.006")
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if path != "hls/ep1/en/playlist.m3u8" {
		t.Errorf("Expected path hls/ep1/en/playlist.m3u8, got %s", path)
	}
}

func TestVerifyWrongDevice(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Issue("hls/ep1/en/playlist.m3u8", "BP22.250325.006", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	if _, err := v.Verify(token, "otherdevice1234"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for wrong device, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Issue("hls/ep1/en/playlist.m3u8", "BP22.250325.006", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	// Move the vault clock past both expiries
	v.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := v.Verify(token, "BP22.250325.006"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	v := newTestVault(t)

	cases := []string{"", "not-a-token", "a.b.c", strings.Repeat("x", 500)}
	for _, tok := range cases {
		if _, err := v.Verify(tok, "BP22.250325.006"); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}

func TestVerifyInvalidDevice(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Issue("hls/ep1/en/playlist.m3u8", "BP22.250325.006", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	// A malformed presenting device must fail with the same generic error
	if _, err := v.Verify(token, "bad id!"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for malformed device, got %v", err)
	}
}

func TestIssueRejectsInvalidDevice(t *testing.T) {
	v := newTestVault(t)

	if _, err := v.Issue("hls/ep1/en/playlist.m3u8", "bad id!", "user-1", time.Minute); err != ErrInvalidDeviceID {
		t.Errorf("Expected ErrInvalidDeviceID, got %v", err)
	}
}
