// Package envelope wraps structured feed data into signed payloads.
package envelope

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/orcfax/protocol-server/core"
)

// Signer produces signatures and exposes the matching public key encodings.
// *keys.KeyMaterial satisfies it.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	ExportPublic() core.PublicKeyExport
}

// Convention selects which byte form of the canonical JSON gets signed.
type Convention int

const (
	// HexJSON signs the hex text of the canonical JSON bytes.
	HexJSON Convention = iota
	// RawJSON signs the canonical JSON bytes directly.
	RawJSON
)

// String implements fmt.Stringer.
func (c Convention) String() string {
	switch c {
	case HexJSON:
		return "hex"
	case RawJSON:
		return "json"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// Builder turns data blocks into signed FeedPayloads.
type Builder struct {
	signer     Signer
	convention Convention
}

// NewBuilder returns a Builder that signs with signer under the given convention.
func NewBuilder(signer Signer, convention Convention) *Builder {
	return &Builder{signer: signer, convention: convention}
}

// Canonicalize serializes data as RFC 8785 canonical JSON: keys sorted,
// no insignificant whitespace. Any verifier can reproduce the same bytes.
func Canonicalize(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize data: %w", err)
	}
	return canonical, nil
}

// Build signs data and returns the payload bundle.
func (b *Builder) Build(data any, description string) (*core.FeedPayload, error) {
	canonical, err := Canonicalize(data)
	if err != nil {
		return nil, err
	}
	signed, sig, err := b.sign(canonical, b.convention)
	if err != nil {
		return nil, err
	}
	return &core.FeedPayload{
		Data:        canonical,
		Description: description,
		Payload:     string(signed),
		Signature:   hex.EncodeToString(sig),
	}, nil
}

// BuildDebug signs data under both conventions and reports the public key
// encodings alongside the results.
func (b *Builder) BuildDebug(data any, description string) (*core.DebugPayload, error) {
	canonical, err := Canonicalize(data)
	if err != nil {
		return nil, err
	}
	jsonSigned, jsonSig, err := b.sign(canonical, RawJSON)
	if err != nil {
		return nil, err
	}
	hexSigned, hexSig, err := b.sign(canonical, HexJSON)
	if err != nil {
		return nil, err
	}
	export := b.signer.ExportPublic()
	return &core.DebugPayload{
		Data:             canonical,
		Description:      description,
		DataJSON:         string(jsonSigned),
		SignatureJSON:    hex.EncodeToString(jsonSig),
		PayloadHex:       string(hexSigned),
		SignatureHex:     hex.EncodeToString(hexSig),
		PublicKeyCBOR:    export.CBOR,
		PublicKeyEd25519: export.Ed25519,
	}, nil
}

func (b *Builder) sign(canonical []byte, convention Convention) (signed, sig []byte, err error) {
	switch convention {
	case HexJSON:
		signed = []byte(hex.EncodeToString(canonical))
	case RawJSON:
		signed = canonical
	default:
		return nil, nil, fmt.Errorf("unknown signing convention %v", convention)
	}
	sig, err = b.signer.Sign(signed)
	if err != nil {
		return nil, nil, err
	}
	return signed, sig, nil
}
