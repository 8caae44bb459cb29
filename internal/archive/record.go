package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/orcfax/protocol-server/core"
	"github.com/orcfax/protocol-server/internal/verify"
)

const maxLineSize = 1 << 20

// Record is one archived publication: a payload line and the key line after it.
type Record struct {
	// Line is the 1-based line number of the payload line.
	Line    int
	Payload core.FeedPayload
	Key     core.PublicKeyExport
}

// ReadRecords parses an archive file into records.
// Blank lines are ignored; an unpaired trailing payload line is an error.
func ReadRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		records []Record
		pending *Record
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if pending == nil {
			rec := Record{Line: lineNo}
			if err := json.Unmarshal(line, &rec.Payload); err != nil {
				return nil, fmt.Errorf("%w: line %d: payload: %w", core.ErrInvalidRecord, lineNo, err)
			}
			pending = &rec
			continue
		}
		if err := json.Unmarshal(line, &pending.Key); err != nil {
			return nil, fmt.Errorf("%w: line %d: key: %w", core.ErrInvalidRecord, lineNo, err)
		}
		if pending.Key.Ed25519 == "" {
			return nil, fmt.Errorf("%w: line %d: key line has no ed25519 field", core.ErrInvalidRecord, lineNo)
		}
		records = append(records, *pending)
		pending = nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: line %d: payload without key line", core.ErrInvalidRecord, pending.Line)
	}
	return records, nil
}

// Verify checks the record's signature under its paired key. It returns an
// error wrapping core.ErrInvalidSignature when the check fails.
func (r Record) Verify() error {
	res, err := verify.Raw(r.Key.Ed25519, r.Payload.Signature, r.Payload.Payload)
	if err != nil {
		return fmt.Errorf("line %d: %w", r.Line, err)
	}
	if !res.Valid {
		return fmt.Errorf("%w: line %d", core.ErrInvalidSignature, r.Line)
	}
	return nil
}
