// Package feed implements the feed generator (C5b): RSS 2.0 (with the
// podcast/iTunes namespace) and Atom 1.0 documents rendered from the
// current completed-episode set, plus the in-memory ETag/Last-Modified
// cache the HTTP layer uses for conditional requests.
//
// The XML struct-tag encoding style (encoding/xml with a nested
// Channel/Item/Enclosure/GUID tree) is grounded on the teacher's
// internal/podcast/rss.go; this package generalizes it to the
// specification's enclosure/MIME-type/duration rules and adds the Atom
// dialect and combined cross-channel variant the teacher never needed.
package feed

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

// Variant selects which per-channel artifact kind a feed renders.
type Variant string

const (
	VariantAudio Variant = "audio"
	VariantVideo Variant = "video"
)

// RSS is the root RSS 2.0 + podcast-namespace document.
type RSS struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	XmlnsItunes string `xml:"xmlns:itunes,attr"`
	Channel RSSChannel `xml:"channel"`
}

// RSSChannel is the <channel> element of an RSS document.
type RSSChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	ImageURL    string    `xml:"itunes:image,omitempty"`
	Items       []RSSItem `xml:"item"`
}

// RSSItem is a single <item> element.
type RSSItem struct {
	Title      string       `xml:"title"`
	GUID       RSSGUID      `xml:"guid"`
	PubDate    string       `xml:"pubDate,omitempty"`
	Duration   string       `xml:"itunes:duration,omitempty"`
	Summary    string       `xml:"description,omitempty"`
	Enclosure  RSSEnclosure `xml:"enclosure"`
}

// RSSGUID is the item's stable identifier, never a dereferenceable permalink.
type RSSGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RSSEnclosure describes the downloadable media file.
type RSSEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

// Atom is the root Atom 1.0 document.
type Atom struct {
	XMLName xml.Name   `xml:"feed"`
	Xmlns   string     `xml:"xmlns,attr"`
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Link    AtomLink   `xml:"link"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomLink is a <link> element.
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

// AtomEntry is a single <entry> element.
type AtomEntry struct {
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Summary string      `xml:"summary,omitempty"`
	Link    AtomLink    `xml:"link"`
}

// GUIDPrefix is prepended to an episode's video_id to build its stable item
// identifier, per §4.5.2.
const GUIDPrefix = "channelcast-episode-"

// mimeTypeByExt derives an enclosure media type from a file extension,
// defaulting to a generic octet-stream when unrecognized.
func mimeTypeByExt(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".ogg":
		return "audio/ogg"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// formatDuration renders seconds as H:MM:SS, or M:SS when under an hour.
func formatDuration(totalSeconds int64) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	sec := totalSeconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func marshalXML(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feed: marshal: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
