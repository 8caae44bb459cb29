// Package vectors provides fixed Ed25519 test material so signing and
// verification tests can assert exact bytes without a random key.
package vectors

import (
	"encoding/hex"
	"testing"

	"github.com/orcfax/protocol-server/internal/keys"
)

const (
	// SeedHex is the 32-byte Ed25519 seed for the fixed test key.
	SeedHex = "4a87403c87f01c7104d14965322b49064ad4ff2cd5a38e9c2e341cebe3494eea"

	// PublicKeyHex is the raw public key derived from SeedHex.
	PublicKeyHex = "5a002828b53dd51c3081eb419494a4c47a93a220253cdca1cc39856b6ec5a2c4"

	// PublicKeyCBORHex is PublicKeyHex wrapped in a CBOR byte string.
	PublicKeyCBORHex = "5820" + PublicKeyHex

	// SpacedJSON is a JSON document in the Python json.dumps default layout.
	SpacedJSON = `{"current": 1, "average": 10, "time": 12345}`

	// SpacedPayloadHex is SpacedJSON, hex encoded. The hex text itself is what was signed.
	SpacedPayloadHex = "7b2263757272656e74223a20312c202261766572616765223a2031302c202274696d65223a2031323334357d"

	// SpacedSignatureHex is the signature over SpacedPayloadHex.
	SpacedSignatureHex = "49e9c8656eb5ea0db5e59039a9004199d36193dd7f01406b6af4537d0df6ceac0b6d28c3d5eeeaa2e9a99dee2c674b5be8ac6dd11c9513b125d55f4a3670ad0b"

	// CompactJSON is the same document without whitespace.
	CompactJSON = `{"current":1,"average":10,"time":12345}`

	// CompactPayloadHex is CompactJSON, hex encoded.
	CompactPayloadHex = "7b2263757272656e74223a312c2261766572616765223a31302c2274696d65223a31323334357d"

	// CompactSignatureHex is the signature over CompactPayloadHex.
	CompactSignatureHex = "176fcc5670dc890de1d0a08476bf55ec21a1613cd41084316d7662563ea37e95eb5ca17384021aa50c30c1ad02e9e9caba0736a4d2cf4ca3eb6e247136516d0e"

	// CompactRawSignatureHex is the signature over the CompactJSON bytes themselves.
	CompactRawSignatureHex = "ed02d2ac630176ec80a30bdecef81047f07637113b946a172e196d6c32ae63efc205a5b1448a30067505c1169ac2cc35fc92af0b7ffe0949b87618919b71140c"
)

// Key returns the key material for SeedHex.
func Key(t testing.TB) *keys.KeyMaterial {
	t.Helper()
	seed, err := hex.DecodeString(SeedHex)
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	km, err := keys.FromSeed(seed)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	return km
}
