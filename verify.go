package express

import (
	"fmt"
	"io"
	"os"

	"github.com/orcfax/protocol-server/internal/archive"
	"github.com/orcfax/protocol-server/internal/verify"
)

// Verify checks sig over payload with a hex-encoded raw Ed25519 public key.
// Payload is verified as given, without decoding.
func Verify(publicKey, sig, payload string) (VerifyResult, error) {
	return verify.Raw(publicKey, sig, payload)
}

// VerifyCBOR checks sig over payload with a hex-encoded CBOR-wrapped public key.
func VerifyCBOR(publicKey, sig, payload string) (VerifyResult, error) {
	return verify.Wrapped(publicKey, sig, payload)
}

// CheckFailure is one archive record that did not verify.
type CheckFailure struct {
	Line int
	Err  error
}

// CheckResult summarizes an archive file check.
type CheckResult struct {
	Records  int
	Failures []CheckFailure
}

// OK reports whether every record verified.
func (r CheckResult) OK() bool { return len(r.Failures) == 0 }

// CheckArchive verifies every payload line in r against the key line that
// follows it. Structural problems abort the check with an error wrapping
// ErrInvalidRecord; signature failures are collected in the result.
func CheckArchive(r io.Reader) (CheckResult, error) {
	records, err := archive.ReadRecords(r)
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{Records: len(records)}
	for _, rec := range records {
		if err := rec.Verify(); err != nil {
			res.Failures = append(res.Failures, CheckFailure{Line: rec.Line, Err: err})
		}
	}
	return res, nil
}

// CheckArchiveFile opens path and runs CheckArchive on it.
func CheckArchiveFile(path string) (CheckResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return CheckResult{}, fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()
	return CheckArchive(f)
}

// ListArchive returns the year buckets under the archive root dir, oldest
// first. A missing root yields an empty listing.
func ListArchive(dir string) ([]ArchiveYear, error) {
	years, err := archive.List(archive.OSFS(dir))
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return years, nil
}
