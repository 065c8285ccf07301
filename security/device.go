package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
)

// ErrInvalidDeviceID is returned for device identifiers that fail validation.
var ErrInvalidDeviceID = errors.New("invalid device id")

// Device IDs are 8-64 characters of letters, digits and dots. This covers
// build-style identifiers like BP22.250325.006 as well as 64-char hex strings.
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9.]{8,64}$`)

// ValidDeviceID reports whether raw is an acceptable device identifier.
func ValidDeviceID(raw string) bool {
	return deviceIDPattern.MatchString(raw)
}

// DeviceGuard derives stable pseudonymous fingerprints from raw device
// identifiers. The salt is process-wide configuration; the raw identifier is
// never stored or logged.
type DeviceGuard struct {
	salt []byte
}

// NewDeviceGuard creates a guard with the given fingerprint salt.
func NewDeviceGuard(salt []byte) *DeviceGuard {
	return &DeviceGuard{salt: salt}
}

// Fingerprint returns the keyed one-way hash of a raw device identifier.
// The same identifier always yields the same fingerprint under one salt.
func (g *DeviceGuard) Fingerprint(raw string) string {
	mac := hmac.New(sha256.New, g.salt)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
