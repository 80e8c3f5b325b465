package feed

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"channelcast/internal/model"
)

func buildRSS(ch *model.Channel, items []renderItem, baseURL string, variant Variant) *RSS {
	rss := &RSS{
		Version:     "2.0",
		XmlnsItunes: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel: RSSChannel{
			Title:       ch.Title,
			Link:        ch.URL,
			Description: ch.Description,
			Language:    "en-us",
			ImageURL:    ch.ThumbnailURL,
		},
	}
	for _, it := range items {
		rss.Channel.Items = append(rss.Channel.Items, buildRSSItem(it, baseURL, variant))
	}
	return rss
}

func buildRSSItem(it renderItem, baseURL string, variant Variant) RSSItem {
	ep := it.episode
	item := RSSItem{
		Title: ep.Title,
		GUID: RSSGUID{
			IsPermaLink: "false",
			Value:       GUIDPrefix + ep.VideoID,
		},
		Summary: ep.Description,
		Enclosure: RSSEnclosure{
			URL:    enclosureURL(baseURL, it.slug, variant, it.filePath),
			Type:   mimeTypeByExt(it.filePath),
			Length: fileSizeString(ep, variant),
		},
	}
	if ep.PublishedAt != nil {
		item.PubDate = ep.PublishedAt.Format(time.RFC1123Z)
	}
	if ep.DurationSec != nil {
		item.Duration = formatDuration(*ep.DurationSec)
	}
	return item
}

func buildAtom(ch *model.Channel, items []renderItem, baseURL string) *Atom {
	atom := &Atom{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   ch.Title,
		ID:      "channelcast:" + ch.ID,
		Updated: feedUpdated(ch, items).Format(time.RFC3339),
		Link:    AtomLink{Href: ch.URL, Rel: "alternate"},
	}
	for _, it := range items {
		atom.Entries = append(atom.Entries, buildAtomEntry(it, baseURL))
	}
	return atom
}

// feedUpdated derives the feed-level Updated timestamp from the latest of
// the channel's own UpdatedAt and every rendered episode's PublishedAt/
// UpdatedAt, so identical store state always renders identical XML (R3)
// instead of stamping the wall clock on every request.
func feedUpdated(ch *model.Channel, items []renderItem) time.Time {
	latest := ch.UpdatedAt.UTC()
	for _, it := range items {
		ep := it.episode
		t := ep.UpdatedAt.UTC()
		if ep.PublishedAt != nil && ep.PublishedAt.UTC().After(t) {
			t = ep.PublishedAt.UTC()
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

func buildAtomEntry(it renderItem, baseURL string) AtomEntry {
	ep := it.episode
	entry := AtomEntry{
		Title:   ep.Title,
		ID:      GUIDPrefix + ep.VideoID,
		Summary: ep.Description,
		Link: AtomLink{
			Href: enclosureURL(baseURL, it.slug, VariantAudio, it.filePath),
			Rel:  "enclosure",
			Type: mimeTypeByExt(it.filePath),
		},
	}
	if ep.PublishedAt != nil {
		entry.Updated = ep.PublishedAt.UTC().Format(time.RFC3339)
	} else {
		entry.Updated = ep.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return entry
}

func enclosureURL(baseURL, slug string, variant Variant, filePath string) string {
	return fmt.Sprintf("%s/feeds/%s/%s/%s", strings.TrimSuffix(baseURL, "/"), slug, variant, filepath.Base(filePath))
}

func fileSizeString(ep *model.Episode, variant Variant) string {
	if variant == VariantVideo && ep.FileSizeVideo != nil {
		return fmt.Sprintf("%d", *ep.FileSizeVideo)
	}
	if ep.FileSizeAudio != nil {
		return fmt.Sprintf("%d", *ep.FileSizeAudio)
	}
	return "0"
}
