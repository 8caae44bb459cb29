package keys_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/keys"
	"github.com/orcfax/protocol-server/internal/testutil/vectors"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate(t *testing.T) {
	t.Parallel()

	a, err := keys.Generate(nil)
	require.NoError(t, err)
	b, err := keys.Generate(nil)
	require.NoError(t, err)

	assert.Len(t, a.PublicKey(), ed25519.PublicKeySize)
	assert.NotEqual(t, a.ExportPublic(), b.ExportPublic(), "fresh key pairs should differ")
}

func TestGenerate_EntropyFailure(t *testing.T) {
	t.Parallel()

	_, err := keys.Generate(failingReader{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrKeyGeneration)
}

func TestFromSeed_KnownVector(t *testing.T) {
	t.Parallel()

	km := vectors.Key(t)
	export := km.ExportPublic()

	assert.Equal(t, vectors.PublicKeyHex, export.Ed25519)
	assert.Equal(t, vectors.PublicKeyCBORHex, export.CBOR)
	assert.Equal(t, vectors.PublicKeyHex, hex.EncodeToString(km.PublicKey()))
}

func TestFromSeed_WrongLength(t *testing.T) {
	t.Parallel()

	_, err := keys.FromSeed([]byte("short"))
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestSign(t *testing.T) {
	t.Parallel()

	km := vectors.Key(t)

	t.Run("matches known signature", func(t *testing.T) {
		t.Parallel()

		sig, err := km.Sign([]byte(vectors.SpacedPayloadHex))
		require.NoError(t, err)
		assert.Equal(t, vectors.SpacedSignatureHex, hex.EncodeToString(sig))
	})

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()

		a, err := km.Sign([]byte("data"))
		require.NoError(t, err)
		b, err := km.Sign([]byte("data"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("verifies under public key", func(t *testing.T) {
		t.Parallel()

		msg := []byte("hello")
		sig, err := km.Sign(msg)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(km.PublicKey(), msg, sig))
	})
}

func TestExportPublic_EncodingsAgree(t *testing.T) {
	t.Parallel()

	km, err := keys.Generate(nil)
	require.NoError(t, err)
	export := km.ExportPublic()

	raw, err := hex.DecodeString(export.Ed25519)
	require.NoError(t, err)
	wrapped, err := hex.DecodeString(export.CBOR)
	require.NoError(t, err)

	unwrapped, err := keys.UnwrapPublicKey(wrapped)
	require.NoError(t, err)
	assert.Equal(t, raw, []byte(unwrapped))
	assert.Equal(t, []byte{0x58, 0x20}, wrapped[:2])
}

func TestExportPublicPEM(t *testing.T) {
	t.Parallel()

	km := vectors.Key(t)
	pemBytes, err := km.ExportPublicPEM()
	require.NoError(t, err)
	assert.Contains(t, string(pemBytes), "BEGIN PUBLIC KEY")

	pub, err := cryptoutils.UnmarshalPEMToPublicKey(pemBytes)
	require.NoError(t, err)
	edPub, ok := pub.(ed25519.PublicKey)
	require.True(t, ok, "expected ed25519 key, got %T", pub)
	assert.Equal(t, vectors.PublicKeyHex, hex.EncodeToString(edPub))
}

func TestUnwrapPublicKey_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wrapped string
	}{
		{name: "not cbor", wrapped: "ff"},
		{name: "short byte string", wrapped: "4401020304"},
		{name: "trailing data", wrapped: vectors.PublicKeyCBORHex + "00"},
		{name: "empty", wrapped: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := hex.DecodeString(tt.wrapped)
			require.NoError(t, err)
			_, err = keys.UnwrapPublicKey(data)
			assert.ErrorIs(t, err, core.ErrMalformedInput)
		})
	}
}

func TestWrapPublicKey_WrongLength(t *testing.T) {
	t.Parallel()

	_, err := keys.WrapPublicKey(make([]byte, 16))
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}
