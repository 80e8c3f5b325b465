package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channelcast/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(context.Background(), dir+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newChannel(id, url string) *model.Channel {
	return &model.Channel{ID: id, URL: url, Title: "Channel " + id, FeedType: model.FeedAudio, Enabled: true}
}

func newEpisode(id, channelID, videoID string) *model.Episode {
	return &model.Episode{ID: id, ChannelID: channelID, VideoID: videoID, Title: "Episode " + id}
}

func TestCreateChannel_DuplicateURL(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	err := st.CreateChannel(ctx, newChannel("c2", "https://example.com/a"))
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateChannel_Defaults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch := &model.Channel{ID: "c1", URL: "https://example.com/a", Title: "T"}
	require.NoError(t, st.CreateChannel(ctx, ch))

	got, err := st.GetChannel(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, model.DefaultWindowSize, got.WindowSize)
	require.Equal(t, model.FeedAudio, got.FeedType)
}

func TestCreateEpisode_DuplicateVideoID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))

	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "vid1")))
	err := st.CreateEpisode(ctx, newEpisode("e2", "c1", "vid1"))
	require.ErrorIs(t, err, ErrDuplicate)
}

// TestClaimNext_Ordering verifies that priority ASC decides the claim order
// ahead of insertion order (§4.4.3), using WithClock to control created_at
// deterministically. The created_at and id tie-breaks are not exercised.
func TestClaimNext_Ordering(t *testing.T) {
	dir := t.TempDir()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return tick }

	st, err := Open(context.Background(), dir+"/test.db", WithClock(now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))

	// q1 is inserted first, but q2's lower priority number (higher priority) wins.
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	tick = tick.Add(time.Second)
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e2", "c1", "v2")))

	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1", Priority: 5}))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q2", EpisodeID: "e2", Priority: 1}))

	claimed, err := st.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, "q2", claimed.ID, "lower priority number (higher priority) claims first")

	claimed, err = st.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, "q1", claimed.ID)

	_, err = st.ClaimNext(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClaimNext_CascadesEpisodeToDownloading(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1"}))

	_, err := st.ClaimNext(ctx)
	require.NoError(t, err)

	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.EpisodeDownloading, ep.Status)
}

func TestMarkFailedRetry_AppliesBackoffAndReturnsEpisodeToPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1"}))

	entry, err := st.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, entry.Attempts)

	require.NoError(t, st.MarkFailedRetry(ctx, entry.ID, "network blip"))

	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.EpisodePending, ep.Status)

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.QueuePending, q.Status)
	require.NotNil(t, q.NextRetryAt)
	require.NotNil(t, q.LastError)
}

func TestMarkFailedPermanent_TerminatesBothEntities(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1"}))

	entry, err := st.ClaimNext(ctx)
	require.NoError(t, err)

	require.NoError(t, st.MarkFailedPermanent(ctx, entry.ID, "tool not found"))

	ep, err := st.GetEpisode(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.EpisodeFailed, ep.Status)
	require.NotNil(t, ep.ErrorMessage)

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.QueueFailed, q.Status)
	require.Nil(t, q.NextRetryAt)
}

func TestResetForManualRetry_RequiresFailedStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1"}))

	err := st.ResetForManualRetry(ctx, "e1")
	require.ErrorIs(t, err, ErrInvariant)
}

func TestListEpisodes_EmptyChannelIDListsAcrossAllChannels(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	require.NoError(t, st.CreateChannel(ctx, newChannel("c2", "https://example.com/b")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e2", "c2", "v2")))

	all, err := st.ListEpisodes(ctx, EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyC1, err := st.ListEpisodes(ctx, EpisodeFilter{ChannelID: "c1"})
	require.NoError(t, err)
	assert.Len(t, onlyC1, 1)
	assert.Equal(t, "e1", onlyC1[0].ID)
}

func TestBackoffFor_MatchesSpecSchedule(t *testing.T) {
	require.Equal(t, time.Duration(0), BackoffFor(1))
	require.Equal(t, 5*time.Minute, BackoffFor(2))
	require.Equal(t, 30*time.Minute, BackoffFor(3))
	require.Equal(t, 2*time.Hour, BackoffFor(4))
	require.Equal(t, 8*time.Hour, BackoffFor(5))
	require.Equal(t, 8*time.Hour, BackoffFor(6), "attempts beyond 5 reuse the longest delay")
}

func TestReleaseClaim_DoesNotIncrementAttempts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateChannel(ctx, newChannel("c1", "https://example.com/a")))
	require.NoError(t, st.CreateEpisode(ctx, newEpisode("e1", "c1", "v1")))
	require.NoError(t, st.InsertQueueEntry(ctx, &model.QueueEntry{ID: "q1", EpisodeID: "e1"}))

	entry, err := st.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, st.ReleaseClaim(ctx, entry.ID))

	q, err := st.GetQueueEntryByEpisodeID(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.QueuePending, q.Status)
	require.Equal(t, 1, q.Attempts, "cancellation does not count as a failed attempt")
}
