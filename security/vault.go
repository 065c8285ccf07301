package security

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/omzoxima/adminpannelbackend/logger"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// ErrInvalidToken is the only error Verify ever returns. Every verification
// failure collapses into it so callers cannot probe which check failed.
var ErrInvalidToken = errors.New("invalid token")

// tokenPayload is the encrypted inner payload binding an object path to a
// device fingerprint and a lifetime.
type tokenPayload struct {
	Path      string `json:"path"`
	Device    string `json:"device"`
	Subject   string `json:"subject"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// tokenClaims is the outer signed envelope. The payload travels as a JWE
// compact string; iat/exp are duplicated here so the signature itself expires.
type tokenClaims struct {
	Payload   string `json:"pl"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Vault issues and verifies device-bound, time-limited access tokens.
//
// Tokens are built in two layers: the payload is encrypted with direct
// A256GCM (confidentiality and integrity), then the ciphertext is wrapped in
// an HS256-signed JWT with its own expiry. The outer signature is redundant
// over the authenticated encryption; both layers are deliberate and both
// failure channels collapse to ErrInvalidToken.
type Vault struct {
	guard      *DeviceGuard
	encKey     []byte
	signSecret []byte
	encrypter  jose.Encrypter
	signer     jose.Signer
	now        func() time.Time
}

// NewVault creates a vault from a 32-byte encryption key and an HMAC signing
// secret. The guard supplies device fingerprinting.
func NewVault(encKey, signSecret []byte, guard *DeviceGuard) (*Vault, error) {
	if len(encKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(encKey))
	}
	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: encKey},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypter: %w", err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: signSecret}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	return &Vault{
		guard:      guard,
		encKey:     encKey,
		signSecret: signSecret,
		encrypter:  encrypter,
		signer:     signer,
		now:        time.Now,
	}, nil
}

// Issue creates a token granting the presenting device access to objectPath
// for ttl. The raw device identifier is validated, fingerprinted and never
// embedded verbatim.
func (v *Vault) Issue(objectPath, deviceID, subjectID string, ttl time.Duration) (string, error) {
	if !ValidDeviceID(deviceID) {
		return "", ErrInvalidDeviceID
	}

	now := v.now()
	payload := tokenPayload{
		Path:      objectPath,
		Device:    v.guard.Fingerprint(deviceID),
		Subject:   subjectID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token payload: %w", err)
	}

	obj, err := v.encrypter.Encrypt(data)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token payload: %w", err)
	}
	compact, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize encrypted payload: %w", err)
	}

	claims := tokenClaims{
		Payload:   compact,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	token, err := jwt.Signed(v.signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks a token against the presenting device and returns the object
// path it grants. Any failure, structural, cryptographic, expiry or device
// mismatch, returns ErrInvalidToken without detail.
func (v *Vault) Verify(token, deviceID string) (string, error) {
	path, err := v.verify(token, deviceID)
	if err != nil {
		logger.Debugf("Token verification failed: %v", err)
		return "", ErrInvalidToken
	}
	return path, nil
}

func (v *Vault) verify(token, deviceID string) (string, error) {
	if !ValidDeviceID(deviceID) {
		return "", ErrInvalidDeviceID
	}

	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", fmt.Errorf("malformed token: %w", err)
	}
	var claims tokenClaims
	if err := tok.Claims(v.signSecret, &claims); err != nil {
		return "", fmt.Errorf("signature check failed: %w", err)
	}

	now := v.now().Unix()
	if claims.ExpiresAt < now {
		return "", fmt.Errorf("outer envelope expired")
	}

	obj, err := jose.ParseEncrypted(claims.Payload,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return "", fmt.Errorf("malformed payload: %w", err)
	}
	data, err := obj.Decrypt(v.encKey)
	if err != nil {
		return "", fmt.Errorf("payload decryption failed: %w", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("payload decode failed: %w", err)
	}

	// The inner expiry is checked independently of the outer one
	if payload.ExpiresAt < now {
		return "", fmt.Errorf("payload expired")
	}
	fp := v.guard.Fingerprint(deviceID)
	if !hmac.Equal([]byte(payload.Device), []byte(fp)) {
		return "", fmt.Errorf("device fingerprint mismatch")
	}
	return payload.Path, nil
}
