package express

import (
	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/archive"
	"github.com/orcfax/protocol-server/internal/envelope"
)

// FeedPayload is a signed feed product.
// Re-exported from core package.
type FeedPayload = core.FeedPayload

// DebugPayload reports one data block signed under both conventions.
// Re-exported from core package.
type DebugPayload = core.DebugPayload

// PublicKeyExport holds the raw and CBOR-wrapped public key encodings.
// Re-exported from core package.
type PublicKeyExport = core.PublicKeyExport

// VerifyResult is the outcome of a signature check.
// Re-exported from core package.
type VerifyResult = core.VerifyResult

// Convention selects which byte form of a data block is signed.
type Convention = envelope.Convention

// Signing conventions.
const (
	// HexJSON signs the hex text of the canonical JSON.
	HexJSON = envelope.HexJSON
	// RawJSON signs the canonical JSON bytes.
	RawJSON = envelope.RawJSON
)

// ArchiveYear lists the files of one archive year bucket.
type ArchiveYear = archive.YearListing

// ArchiveFile describes one archive file.
type ArchiveFile = archive.FileInfo
