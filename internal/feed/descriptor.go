package feed

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// ValueFile is the latest-file name of the value feed.
	ValueFile = "datafeed_one.json"

	// EpochFile is the latest-file name of the epoch feed.
	EpochFile = "datafeed_two.json"

	// DefaultPrefix namespaces generated feed identifiers.
	DefaultPrefix = "custom/FEED/"

	// DefaultEpochID is the fixed identifier of the epoch feed.
	DefaultEpochID = "custom/FEED/epoch1"

	valueDescription = "current data and its average for the past hour including current timestamp (ms)"
	epochDescription = "current unix epoch to the hour, e.g. if 12:25 == 1771326000000 (ms)"
)

// Sample is the per-cycle input every feed builds its data block from.
type Sample struct {
	Current int
	Average float64
	Time    time.Time
}

// Descriptor defines one feed type.
type Descriptor struct {
	// ID is the feed identifier placed in every data block.
	ID string

	// File is the latest-file name and the logical archive name.
	File string

	Description string

	// Archive enables appending every payload to the archive.
	Archive bool

	// Debug additionally builds a payload signed under both conventions.
	Debug bool

	// Data builds the structured data block for a sample.
	Data func(s Sample) any
}

// ValueData is the data block of the value feed.
type ValueData struct {
	FeedID  string  `json:"feed_id"`
	Current int     `json:"current"`
	Average float64 `json:"average"`
	Time    int64   `json:"time"`
}

// EpochData is the data block of the epoch feed.
type EpochData struct {
	FeedID  string `json:"feed_id"`
	Current int64  `json:"current"`
	Time    int64  `json:"time"`
}

// ValueFeed reports the current sample and the rolling mean.
func ValueFeed(id string) Descriptor {
	return Descriptor{
		ID:          id,
		File:        ValueFile,
		Description: valueDescription,
		Archive:     true,
		Debug:       true,
		Data: func(s Sample) any {
			return ValueData{
				FeedID:  id,
				Current: s.Current,
				Average: s.Average,
				Time:    UnixMillis(s.Time),
			}
		},
	}
}

// EpochFeed reports the start of the current UTC hour.
func EpochFeed(id string) Descriptor {
	return Descriptor{
		ID:          id,
		File:        EpochFile,
		Description: epochDescription,
		Archive:     true,
		Data: func(s Sample) any {
			return EpochData{
				FeedID:  id,
				Current: HourStart(s.Time).UnixMilli(),
				Time:    UnixMillis(s.Time),
			}
		},
	}
}

// UnixMillis returns t in milliseconds at whole-second precision.
func UnixMillis(t time.Time) int64 {
	return t.Unix() * 1000
}

// HourStart truncates t to the start of its UTC hour.
func HourStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// NewFeedID returns prefix followed by a short random suffix.
func NewFeedID(prefix string) (string, error) {
	suffix, err := gonanoid.New(6)
	if err != nil {
		return "", fmt.Errorf("generate feed id: %w", err)
	}
	return prefix + suffix, nil
}
