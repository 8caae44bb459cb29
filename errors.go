package express

import "github.com/orcfax/protocol-server/core"

// Sentinel errors for common failure conditions.
// Re-exported from core package.
var (
	// ErrMalformedInput indicates a key, signature, or envelope could not be decoded.
	ErrMalformedInput = core.ErrMalformedInput

	// ErrKeyGeneration indicates the entropy source failed while creating a key pair.
	ErrKeyGeneration = core.ErrKeyGeneration

	// ErrInvalidSignature indicates an archived record does not verify.
	ErrInvalidSignature = core.ErrInvalidSignature

	// ErrInvalidRecord indicates an archive file is not a sequence of payload and key lines.
	ErrInvalidRecord = core.ErrInvalidRecord

	// ErrPathTraversal indicates a file name would escape its output directory.
	ErrPathTraversal = core.ErrPathTraversal
)
