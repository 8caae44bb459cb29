// Package verify checks Ed25519 signatures over feed payloads.
//
// Verification is stateless. A payload is verified exactly as the caller
// supplies it: for hex-convention feeds the hex text itself is the signed
// byte sequence, so it is never decoded before the cryptographic check.
package verify

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/keys"
)

// KeyEncoding identifies how a caller supplied the public key.
type KeyEncoding int

const (
	// RawKey is the 32 raw Ed25519 public key bytes, hex encoded.
	RawKey KeyEncoding = iota
	// CBORKey is the raw key wrapped in a CBOR byte string, hex encoded.
	CBORKey
)

// Raw verifies with a hex-encoded raw public key.
func Raw(publicKey, sig, payload string) (core.VerifyResult, error) {
	return Signature(RawKey, publicKey, sig, payload)
}

// Wrapped verifies with a hex-encoded CBOR-wrapped public key.
func Wrapped(publicKey, sig, payload string) (core.VerifyResult, error) {
	return Signature(CBORKey, publicKey, sig, payload)
}

// Signature reports whether sig is valid for payload under publicKey.
//
// Malformed hex, a bad CBOR envelope, or a key of the wrong length return an
// error wrapping core.ErrMalformedInput. A signature that decodes but does not
// verify is not an error; it yields a result with Valid false.
func Signature(enc KeyEncoding, publicKey, sig string, payload string) (core.VerifyResult, error) {
	pub, err := DecodePublicKey(enc, publicKey)
	if err != nil {
		return core.VerifyResult{}, err
	}
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return core.VerifyResult{}, fmt.Errorf("%w: signature: %w", core.ErrMalformedInput, err)
	}

	verifier, err := signature.LoadED25519Verifier(pub)
	if err != nil {
		return core.VerifyResult{}, fmt.Errorf("%w: %w", core.ErrMalformedInput, err)
	}
	if err := verifier.VerifySignature(bytes.NewReader(sigBytes), strings.NewReader(payload)); err != nil {
		return core.VerifyResult{Valid: false}, nil
	}

	text, _ := DecodePayload(payload)
	return core.VerifyResult{
		Valid:      true,
		SigningKey: publicKey,
		Ed25519:    hex.EncodeToString(pub),
		Payload:    text,
	}, nil
}

// DecodePublicKey turns a hex-encoded key in the given encoding into the raw key.
func DecodePublicKey(enc KeyEncoding, publicKey string) (ed25519.PublicKey, error) {
	data, err := hex.DecodeString(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %w", core.ErrMalformedInput, err)
	}
	switch enc {
	case RawKey:
		if l := len(data); l != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", core.ErrMalformedInput, ed25519.PublicKeySize, l)
		}
		return ed25519.PublicKey(data), nil
	case CBORKey:
		return keys.UnwrapPublicKey(data)
	default:
		return nil, fmt.Errorf("%w: unknown key encoding %d", core.ErrMalformedInput, int(enc))
	}
}

// DecodePayload hex-decodes payload into text. It reports false and returns
// payload unchanged when payload is not hex or does not decode to UTF-8 text.
func DecodePayload(payload string) (string, bool) {
	data, err := hex.DecodeString(payload)
	if err != nil || !utf8.Valid(data) {
		return payload, false
	}
	return string(data), true
}
