package feed

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channelcast/internal/model"
	"channelcast/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), dir+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreateCompletedEpisode(t *testing.T, st *store.Store, id, channelID, videoID, filePath string) {
	t.Helper()
	ctx := context.Background()
	ep := &model.Episode{ID: id, ChannelID: channelID, VideoID: videoID, Title: "Episode " + id}
	require.NoError(t, st.CreateEpisode(ctx, ep))

	now := time.Now().UTC()
	size := int64(1234)
	ep.Status = model.EpisodeCompleted
	ep.DownloadedAt = &now
	ep.FilePathAudio = &filePath
	ep.FileSizeAudio = &size
	require.NoError(t, st.UpdateEpisode(ctx, ep))
}

func TestMimeTypeByExt(t *testing.T) {
	assert.Equal(t, "audio/mpeg", mimeTypeByExt("ep.mp3"))
	assert.Equal(t, "video/mp4", mimeTypeByExt("ep.mp4"))
	assert.Equal(t, "application/octet-stream", mimeTypeByExt("ep.unknown"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1:05:00", formatDuration(3900))
	assert.Equal(t, "5:00", formatDuration(300))
	assert.Equal(t, "0:09", formatDuration(9))
}

func TestGenerator_RSS_RendersCompletedEpisodesOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "My Channel"}
	require.NoError(t, st.CreateChannel(ctx, ch))

	mustCreateCompletedEpisode(t, st, "e1", "c1", "v1", "/data/c1/audio/e1.mp3")
	pending := &model.Episode{ID: "e2", ChannelID: "c1", VideoID: "v2", Title: "Pending"}
	require.NoError(t, st.CreateEpisode(ctx, pending))

	g := New(st, "https://podcasts.example.com")
	body, contentType, etag, _, err := g.RSS(ctx, "c1", VariantAudio)
	require.NoError(t, err)

	assert.Equal(t, "application/rss+xml", contentType)
	assert.NotEmpty(t, etag)
	assert.Contains(t, string(body), "My Channel")
	assert.Contains(t, string(body), "channelcast-episode-v1")
	assert.NotContains(t, string(body), "channelcast-episode-v2", "a pending episode has no file and must not be rendered")
}

func TestGenerator_RSS_CachesUntilInvalidated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "My Channel"}
	require.NoError(t, st.CreateChannel(ctx, ch))
	mustCreateCompletedEpisode(t, st, "e1", "c1", "v1", "/data/c1/audio/e1.mp3")

	g := New(st, "https://podcasts.example.com")
	_, _, etag1, _, err := g.RSS(ctx, "c1", VariantAudio)
	require.NoError(t, err)

	mustCreateCompletedEpisode(t, st, "e2", "c1", "v2", "/data/c1/audio/e2.mp3")

	_, _, etag2, _, err := g.RSS(ctx, "c1", VariantAudio)
	require.NoError(t, err)
	assert.Equal(t, etag1, etag2, "second episode should not appear until Invalidate is called")

	g.Invalidate("c1")

	body, _, etag3, _, err := g.RSS(ctx, "c1", VariantAudio)
	require.NoError(t, err)
	assert.NotEqual(t, etag1, etag3)
	assert.Contains(t, string(body), "channelcast-episode-v2")
}

func TestGenerator_Atom_ContentType(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "My Channel"}
	require.NoError(t, st.CreateChannel(ctx, ch))
	mustCreateCompletedEpisode(t, st, "e1", "c1", "v1", "/data/c1/audio/e1.mp3")

	g := New(st, "https://podcasts.example.com")
	body, contentType, _, _, err := g.Atom(ctx, "c1", VariantAudio)
	require.NoError(t, err)
	assert.Equal(t, "application/atom+xml", contentType)
	assert.True(t, strings.Contains(string(body), "<feed"))
}

// TestGenerator_Atom_IsPureOfWallClock is a regression test for R3 ("feed
// rendering is a pure function: identical store state produces
// byte-identical XML"): two independent generators rendering the same
// store state must emit identical Atom bodies, which fails if the
// <updated> element were derived from time.Now() instead of the store's
// own timestamps.
func TestGenerator_Atom_IsPureOfWallClock(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "My Channel"}
	require.NoError(t, st.CreateChannel(ctx, ch))
	mustCreateCompletedEpisode(t, st, "e1", "c1", "v1", "/data/c1/audio/e1.mp3")

	body1, _, etag1, _, err := New(st, "https://podcasts.example.com").Atom(ctx, "c1", VariantAudio)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	body2, _, etag2, _, err := New(st, "https://podcasts.example.com").Atom(ctx, "c1", VariantAudio)
	require.NoError(t, err)

	assert.Equal(t, string(body1), string(body2))
	assert.Equal(t, etag1, etag2)
}

func TestGenerator_CombinedRSS_CapsAtMaxItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// 3 enabled channels x 34 completed episodes = 102 items, each channel
	// within its default window of 50, so only the combined cap trims them.
	for c := 0; c < 3; c++ {
		channelID := "c" + strconv.Itoa(c)
		ch := &model.Channel{ID: channelID, URL: "https://example.com/" + channelID, Title: "Channel", Enabled: true}
		require.NoError(t, st.CreateChannel(ctx, ch))
		for e := 0; e < 34; e++ {
			epID := channelID + "-e" + strconv.Itoa(e)
			mustCreateCompletedEpisode(t, st, epID, channelID, epID, "/data/"+channelID+"/audio/"+epID+".mp3")
		}
	}

	g := New(st, "https://podcasts.example.com")
	body, _, _, _, err := g.CombinedRSS(ctx, VariantAudio)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Combined feed")
	assert.Equal(t, MaxCombinedItems, strings.Count(string(body), "<item>"))
}
