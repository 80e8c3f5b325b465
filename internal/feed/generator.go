package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"channelcast/internal/model"
	"channelcast/internal/store"
)

// MaxCombinedItems caps the cross-channel combined variant at 100 items
// total, per §4.5.2.
const MaxCombinedItems = 100

// cacheKey identifies one cached document: a single channel_id+variant pair,
// or the sentinel combinedKey for a cross-channel variant.
type cacheKey struct {
	channelID string
	variant   Variant
}

const combinedChannelID = "__combined__"

// cachedDoc is the last emitted document plus the metadata conditional
// requests need.
type cachedDoc struct {
	body         []byte
	contentType  string
	etag         string
	lastModified time.Time
}

// Generator renders RSS/Atom documents from the Store's current state and
// caches the last emission per (channel_id, variant), invalidated on any
// write that could change the output.
type Generator struct {
	store   *store.Store
	baseURL string

	mu    sync.RWMutex
	cache map[cacheKey]cachedDoc
}

// New builds a Generator. baseURL is the externally reachable root used to
// build enclosure URLs (e.g. "https://podcasts.example.com").
func New(st *store.Store, baseURL string) *Generator {
	return &Generator{store: st, baseURL: baseURL, cache: make(map[cacheKey]cachedDoc)}
}

// Invalidate drops the cached documents affected by a write to channelID
// (both variants, plus the combined variants since any channel's episode
// set can change the combined item list). Called after any episode-status
// or channel-metadata write, per §4.5.2's cache-invalidation rule.
func (g *Generator) Invalidate(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cache, cacheKey{channelID, VariantAudio})
	delete(g.cache, cacheKey{channelID, VariantVideo})
	delete(g.cache, cacheKey{combinedChannelID, VariantAudio})
	delete(g.cache, cacheKey{combinedChannelID, VariantVideo})
}

// RSS renders (or returns cached) the RSS 2.0 document for one channel.
// Returns (body, contentType, etag, lastModified, err).
func (g *Generator) RSS(ctx context.Context, channelID string, variant Variant) ([]byte, string, string, time.Time, error) {
	return g.render(ctx, cacheKey{channelID, variant}, "application/rss+xml", func() ([]byte, error) {
		ch, items, err := g.channelItems(ctx, channelID, variant)
		if err != nil {
			return nil, err
		}
		return marshalXML(buildRSS(ch, items, g.baseURL, variant))
	})
}

// Atom renders (or returns cached) the Atom 1.0 document for one channel.
// Returns (body, contentType, etag, lastModified, err).
func (g *Generator) Atom(ctx context.Context, channelID string, variant Variant) ([]byte, string, string, time.Time, error) {
	return g.render(ctx, cacheKey{channelID, variant}, "application/atom+xml", func() ([]byte, error) {
		ch, items, err := g.channelItems(ctx, channelID, variant)
		if err != nil {
			return nil, err
		}
		return marshalXML(buildAtom(ch, items, g.baseURL))
	})
}

// CombinedRSS renders the cross-channel RSS variant across all enabled
// channels, capped at MaxCombinedItems total. Returns (body, contentType,
// etag, lastModified, err).
func (g *Generator) CombinedRSS(ctx context.Context, variant Variant) ([]byte, string, string, time.Time, error) {
	return g.render(ctx, cacheKey{combinedChannelID, variant}, "application/rss+xml", func() ([]byte, error) {
		items, err := g.combinedItems(ctx, variant)
		if err != nil {
			return nil, err
		}
		ch := &model.Channel{Title: "All channels", Description: "Combined feed"}
		return marshalXML(buildRSS(ch, items, g.baseURL, variant))
	})
}

func (g *Generator) render(ctx context.Context, key cacheKey, contentType string, build func() ([]byte, error)) ([]byte, string, string, time.Time, error) {
	g.mu.RLock()
	if doc, ok := g.cache[key]; ok {
		g.mu.RUnlock()
		return doc.body, doc.contentType, doc.etag, doc.lastModified, nil
	}
	g.mu.RUnlock()

	body, err := build()
	if err != nil {
		return nil, "", "", time.Time{}, err
	}

	sum := sha1.Sum(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	lastModified := time.Now().UTC()

	g.mu.Lock()
	g.cache[key] = cachedDoc{body: body, contentType: contentType, etag: etag, lastModified: lastModified}
	g.mu.Unlock()

	return body, contentType, etag, lastModified, nil
}

type renderItem struct {
	episode  *model.Episode
	filePath string
	slug     string
}

func (g *Generator) channelItems(ctx context.Context, channelID string, variant Variant) (*model.Channel, []renderItem, error) {
	ch, err := g.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("feed: get channel: %w", err)
	}

	completed := model.EpisodeCompleted
	episodes, err := g.store.ListEpisodes(ctx, store.EpisodeFilter{ChannelID: channelID, Status: completed, Limit: ch.WindowSize})
	if err != nil {
		return nil, nil, fmt.Errorf("feed: list episodes: %w", err)
	}

	var items []renderItem
	for _, ep := range episodes {
		fp := filePathForVariant(ep, variant)
		if fp == "" {
			continue
		}
		items = append(items, renderItem{episode: ep, filePath: fp, slug: ch.Slug()})
	}
	return ch, items, nil
}

func (g *Generator) combinedItems(ctx context.Context, variant Variant) ([]renderItem, error) {
	enabled := true
	channels, err := g.store.ListChannels(ctx, store.ChannelFilter{Enabled: &enabled})
	if err != nil {
		return nil, fmt.Errorf("feed: list channels: %w", err)
	}

	var items []renderItem
	for _, ch := range channels {
		completed := model.EpisodeCompleted
		episodes, err := g.store.ListEpisodes(ctx, store.EpisodeFilter{ChannelID: ch.ID, Status: completed, Limit: ch.WindowSize})
		if err != nil {
			return nil, fmt.Errorf("feed: list episodes for %s: %w", ch.ID, err)
		}
		for _, ep := range episodes {
			fp := filePathForVariant(ep, variant)
			if fp == "" {
				continue
			}
			items = append(items, renderItem{episode: ep, filePath: fp, slug: ch.Slug()})
		}
	}

	sortByPublishedDesc(items)
	if len(items) > MaxCombinedItems {
		items = items[:MaxCombinedItems]
	}
	return items, nil
}

func filePathForVariant(ep *model.Episode, variant Variant) string {
	if ep.DownloadedAt == nil {
		return ""
	}
	switch variant {
	case VariantVideo:
		if ep.FilePathVideo != nil {
			return *ep.FilePathVideo
		}
	default:
		if ep.FilePathAudio != nil {
			return *ep.FilePathAudio
		}
	}
	return ""
}

func sortByPublishedDesc(items []renderItem) {
	sort.SliceStable(items, func(i, j int) bool { return publishedBefore(items[j], items[i]) })
}

func publishedBefore(a, b renderItem) bool {
	at, bt := a.episode.PublishedAt, b.episode.PublishedAt
	if at == nil {
		return bt != nil
	}
	if bt == nil {
		return false
	}
	return at.Before(*bt)
}
