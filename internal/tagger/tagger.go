// Package tagger reads back metadata from a freshly produced audio file as
// a sanity check. github.com/dhowden/tag only reads container tags (it has
// no write path), so it is used here to confirm ffmpeg's output is a
// well-formed, parseable audio file. No duration is read.
package tagger

import (
	"os"

	"github.com/dhowden/tag"
)

// Probe is the subset of a produced file's tag data this pipeline cares
// about.
type Probe struct {
	Format   tag.Format
	FileType tag.FileType
}

// Read opens path and parses its container tags. A parse failure here means
// the encode likely produced a corrupt file and is reported as an error so
// the caller can classify it as a tool_failure.
func Read(path string) (*Probe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	return &Probe{Format: m.Format(), FileType: m.FileType()}, nil
}
