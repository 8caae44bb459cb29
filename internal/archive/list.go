package archive

import (
	"errors"
	"io/fs"
	"sort"
	"strconv"
	"time"
)

// FileInfo describes one archive file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// YearListing groups the archive files of one year bucket.
type YearListing struct {
	Year  int64
	Files []FileInfo
}

// Start returns the first instant of the year bucket.
func (y YearListing) Start() time.Time {
	return time.Unix(y.Year, 0).UTC()
}

// List returns every year bucket under the archive root, oldest first.
// A missing root yields an empty listing.
func List(fsys fs.ReadDirFS) ([]YearListing, error) {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []YearListing
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		year, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		files, err := fsys.ReadDir(e.Name())
		if err != nil {
			return nil, err
		}
		listing := YearListing{Year: year}
		for _, f := range files {
			if f.IsDir() || !listable(f.Name()) {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return nil, err
			}
			listing.Files = append(listing.Files, FileInfo{Name: f.Name(), Size: info.Size(), ModTime: info.ModTime()})
		}
		out = append(out, listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}
