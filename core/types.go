// Package core provides the shared types for the express feed server.
//
// This package exists to break import cycles between the root express
// package and internal implementation packages. The express package
// re-exports the public types from this package, so external users should
// import express directly, not express/core.
package core

import (
	"encoding/json"
	"errors"
)

// Sentinel errors for common failure conditions.
var (
	// ErrMalformedInput indicates a key, signature, or envelope could not be decoded.
	// It is distinct from a signature that decodes but does not verify.
	ErrMalformedInput = errors.New("express: malformed input")

	// ErrKeyGeneration indicates the entropy source failed while creating a key pair.
	ErrKeyGeneration = errors.New("express: key generation failed")

	// ErrInvalidSignature indicates an archived record does not verify under its paired key.
	ErrInvalidSignature = errors.New("express: invalid signature")

	// ErrInvalidRecord indicates an archive file does not follow the data/key line pairing.
	ErrInvalidRecord = errors.New("express: invalid archive record")

	// ErrPathTraversal indicates a file name would escape its output directory.
	ErrPathTraversal = errors.New("express: path traversal detected")
)

// PublicKeyExport carries the two encodings of the process verification key.
// Both fields decode to the same 32 raw Ed25519 public key bytes.
type PublicKeyExport struct {
	// Ed25519 is the raw 32-byte public key, hex encoded.
	Ed25519 string `json:"ed25519"`
	// CBOR is the key wrapped in a CBOR byte string, hex encoded.
	CBOR string `json:"cbor"`
}

// FeedPayload is a signed data product as published and archived.
type FeedPayload struct {
	// FeedID names the feed the payload belongs to. It is also present inside Data.
	FeedID string `json:"-"`

	// Data is the structured data block exactly as it was serialized for signing.
	Data json.RawMessage `json:"data"`

	// Description is a human readable summary of the data block.
	Description string `json:"description"`

	// Payload is the exact byte sequence that was signed, rendered as text.
	Payload string `json:"payload"`

	// Signature is the hex-encoded Ed25519 signature over Payload.
	Signature string `json:"signature"`
}

// DebugPayload reports both signing conventions for the same data block.
type DebugPayload struct {
	Data             json.RawMessage `json:"data"`
	Description      string          `json:"description"`
	DataJSON         string          `json:"data (json)"`
	SignatureJSON    string          `json:"signature (json)"`
	PayloadHex       string          `json:"payload (hex)"`
	SignatureHex     string          `json:"signature (hex)"`
	PublicKeyCBOR    string          `json:"pkey_cbor"`
	PublicKeyEd25519 string          `json:"pkey_ed25519"`
}

// VerifyResult is the outcome of a signature verification request.
type VerifyResult struct {
	Valid bool

	// SigningKey echoes the public key exactly as the caller supplied it.
	SigningKey string

	// Ed25519 is the raw public key, hex encoded.
	Ed25519 string

	// Payload is the hex-decoded payload text, or the payload as given when it
	// does not decode to text.
	Payload string
}

// MarshalJSON renders an invalid result as {"valid": false} with nothing
// echoed back.
func (r VerifyResult) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte(`{"valid":false}`), nil
	}
	return json.Marshal(struct {
		Valid      bool   `json:"valid"`
		SigningKey string `json:"signing key"`
		Ed25519    string `json:"ed25519"`
		Payload    string `json:"payload"`
	}{r.Valid, r.SigningKey, r.Ed25519, r.Payload})
}
