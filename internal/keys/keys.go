// Package keys holds the single Ed25519 key pair a server signs with.
//
// The private key lives only in memory. Callers receive signatures and the
// public key encodings, never the private key itself.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/orcfax/protocol-server/core"
)

// KeyMaterial owns one Ed25519 key pair for the lifetime of a process.
type KeyMaterial struct {
	sv     *signature.ED25519SignerVerifier
	public ed25519.PublicKey
	export core.PublicKeyExport
}

// Generate creates a fresh key pair from the given entropy source.
// A nil source uses crypto/rand.
func Generate(entropy io.Reader) (*KeyMaterial, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrKeyGeneration, err)
	}
	return fromPrivateKey(priv)
}

// FromSeed derives the key pair for a 32-byte Ed25519 seed.
func FromSeed(seed []byte) (*KeyMaterial, error) {
	if l := len(seed); l != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes, got %d", core.ErrMalformedInput, ed25519.SeedSize, l)
	}
	return fromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

func fromPrivateKey(priv ed25519.PrivateKey) (*KeyMaterial, error) {
	sv, err := signature.LoadED25519SignerVerifier(priv)
	if err != nil {
		return nil, fmt.Errorf("load ed25519 signer: %w", err)
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", priv.Public())
	}
	wrapped, err := WrapPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{
		sv:     sv,
		public: pub,
		export: core.PublicKeyExport{
			Ed25519: hex.EncodeToString(pub),
			CBOR:    hex.EncodeToString(wrapped),
		},
	}, nil
}

// Sign returns the Ed25519 signature over message.
// The result is deterministic for a given key and message.
func (k *KeyMaterial) Sign(message []byte) ([]byte, error) {
	sig, err := k.sv.SignMessage(bytes.NewReader(message))
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}

// PublicKey returns a copy of the raw verification key.
func (k *KeyMaterial) PublicKey() ed25519.PublicKey {
	return bytes.Clone(k.public)
}

// ExportPublic returns the raw and CBOR-wrapped encodings of the public key.
func (k *KeyMaterial) ExportPublic() core.PublicKeyExport {
	return k.export
}

// ExportPublicPEM returns the public key as a PKIX "PUBLIC KEY" PEM block.
func (k *KeyMaterial) ExportPublicPEM() ([]byte, error) {
	pemBytes, err := cryptoutils.MarshalPublicKeyToPEM(k.public)
	if err != nil {
		return nil, fmt.Errorf("marshal public key to PEM: %w", err)
	}
	return pemBytes, nil
}

// WrapPublicKey encodes a raw public key as a CBOR byte string.
// A 32-byte key encodes as 0x5820 followed by the key bytes.
func WrapPublicKey(raw []byte) ([]byte, error) {
	if l := len(raw); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", core.ErrMalformedInput, ed25519.PublicKeySize, l)
	}
	out, err := cbor.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("cbor encode public key: %w", err)
	}
	return out, nil
}

// UnwrapPublicKey decodes a CBOR byte string envelope back to the raw key.
func UnwrapPublicKey(wrapped []byte) (ed25519.PublicKey, error) {
	var raw []byte
	if err := cbor.Unmarshal(wrapped, &raw); err != nil {
		return nil, fmt.Errorf("%w: cbor decode public key: %w", core.ErrMalformedInput, err)
	}
	if l := len(raw); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", core.ErrMalformedInput, ed25519.PublicKeySize, l)
	}
	return ed25519.PublicKey(raw), nil
}
