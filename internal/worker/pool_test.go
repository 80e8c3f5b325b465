package worker

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channelcast/internal/adapter"
	"channelcast/internal/extractor"
	"channelcast/internal/model"
	"channelcast/internal/store"
	"channelcast/internal/transcoder"
)

type fakeInvalidator struct {
	calls []string
}

func (f *fakeInvalidator) Invalidate(channelID string) { f.calls = append(f.calls, channelID) }

func newTestPool(t *testing.T) (*Pool, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), dir+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := New(st, extractor.New(extractor.Config{}), transcoder.New(transcoder.Config{}), t.TempDir(), 1, TranscodeConfig{})
	return p, st
}

func claimedEntry(t *testing.T, st *store.Store, channelID, episodeID, videoID string) *model.QueueEntry {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.CreateEpisode(ctx, &model.Episode{ID: episodeID, ChannelID: channelID, VideoID: videoID, Title: "T"}))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: episodeID + "-q", EpisodeID: episodeID}))

	entry, err := st.ClaimNext(ctx)
	require.NoError(t, err)
	return entry
}

func TestFail_RetryableBelowMaxAttemptsReturnsToPending(t *testing.T) {
	p, st := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "T"}))
	entry := claimedEntry(t, st, "c1", "e1", "v1")
	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)

	p.fail(ctx, slog.Default(), entry, ep, "download", &adapter.Error{Kind: adapter.KindTransient})

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.QueuePending, q.Status)

	gotEp, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.EpisodePending, gotEp.Status)
}

func TestFail_NonRetryableTerminatesImmediately(t *testing.T) {
	p, st := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "T"}))
	entry := claimedEntry(t, st, "c1", "e1", "v1")
	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)

	p.fail(ctx, slog.Default(), entry, ep, "download", &adapter.Error{Kind: adapter.KindNotFound})

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.QueueFailed, q.Status)

	gotEp, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeFailed, gotEp.Status)
	assert.NotNil(t, gotEp.ErrorMessage)
}

func TestFail_RetryableAtMaxAttemptsTerminates(t *testing.T) {
	p, st := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "T"}))
	require.NoError(t, st.CreateEpisode(ctx, &model.Episode{ID: "e1", ChannelID: "c1", VideoID: "v1", Title: "T"}))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1", MaxAttempts: 1}))

	entry, err := st.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, entry.Attempts)
	require.Equal(t, 1, entry.MaxAttempts)

	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)

	p.fail(ctx, slog.Default(), entry, ep, "download", &adapter.Error{Kind: adapter.KindTransient})

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.QueueFailed, q.Status, "attempts has reached max_attempts, so this retryable failure still terminates")
}

func TestSucceed_CompletesEpisodeAndQueueAndInvalidates(t *testing.T) {
	p, st := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "T"}))
	entry := claimedEntry(t, st, "c1", "e1", "v1")
	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)

	path := "/data/c1/audio/e1.mp3"
	size := int64(100)
	ep.FilePathAudio = &path
	ep.FileSizeAudio = &size

	inv := &fakeInvalidator{}
	p.SetInvalidator(inv)

	p.succeed(ctx, slog.Default(), entry, ep)

	gotEp, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeCompleted, gotEp.Status)
	assert.NotNil(t, gotEp.DownloadedAt)

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, q.Status)

	assert.Equal(t, []string{"c1"}, inv.calls)
}

func TestRelease_ReturnsEntryToPendingWithoutCountingAttempt(t *testing.T) {
	p, st := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "T"}))
	entry := claimedEntry(t, st, "c1", "e1", "v1")

	p.release(ctx, entry.ID)

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.QueuePending, q.Status)
	assert.Equal(t, 1, q.Attempts)
}

func TestNew_ClampsConcurrency(t *testing.T) {
	st := &store.Store{}
	p := New(st, nil, nil, "/tmp", 0, TranscodeConfig{})
	assert.Equal(t, model.MinConcurrentDownloads, p.concurrency)

	p = New(st, nil, nil, "/tmp", 1000, TranscodeConfig{})
	assert.Equal(t, model.MaxConcurrentDownloads, p.concurrency)
}
