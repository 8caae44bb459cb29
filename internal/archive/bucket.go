package archive

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Bucket is the time partition an archive write lands in.
// Both keys are Unix timestamps in seconds at UTC.
type Bucket struct {
	// Year is the start of the UTC calendar year.
	Year int64
	// Day is the start of the UTC calendar day.
	Day int64
}

// ComputeBucket truncates t to its UTC year and UTC day.
// Two instants on the same UTC day share both keys; two days of the same
// year share only the year key.
func ComputeBucket(t time.Time) Bucket {
	t = t.UTC()
	return Bucket{
		Year: time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Day:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix(),
	}
}

// Dir returns the directory name for the year bucket.
func (b Bucket) Dir() string {
	return strconv.FormatInt(b.Year, 10)
}

// FileName returns the archive file name for a logical feed file within the
// day bucket, e.g. "1760832000-datafeed_one.jsonl" for "datafeed_one.json".
func (b Bucket) FileName(logical string) string {
	stem := strings.TrimSuffix(logical, path.Ext(logical))
	return fmt.Sprintf("%d-%s%s", b.Day, stem, RecordExt)
}

// Path returns the slash-separated archive path relative to the archive root.
func (b Bucket) Path(logical string) string {
	return path.Join(b.Dir(), b.FileName(logical))
}
