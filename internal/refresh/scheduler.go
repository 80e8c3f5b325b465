// Package refresh implements the refresh scheduler (C3): periodic and
// on-demand polling of monitored channels, reconciling their upstream
// video list against the Store and enqueueing new work.
//
// The per-channel procedure (fetch listing, truncate to window, dedup
// insert, conditional enqueue) and the ticker-driven sweep loop are
// grounded on umputun/feed-master's youtube Service.Do/procChannels
// (other_examples/28882e8c_oneils-feed-master__app-youtube-service.go.go),
// the closest analog in the retrieved pack to a channel-to-feed mirror
// loop; per-channel coalescing is adapted from that file's single-flight
// style dedup against Store.Exist/CheckProcessed.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"channelcast/internal/extractor"
	"channelcast/internal/model"
	"channelcast/internal/store"
)

// MinPollInterval is the lowest configurable poll_interval, per §6.
const MinPollInterval = 300 * time.Second

// Result reports the outcome of a single channel refresh.
type Result struct {
	ChannelID      string
	VideosSeen     int
	EpisodesNew    int
	EpisodesQueued int
	CompletedAt    time.Time
	Err            error
}

// Scheduler owns the periodic sweep and on-demand triggers.
type Scheduler struct {
	store        *store.Store
	extractor    *extractor.Extractor
	pollInterval time.Duration

	mu       sync.Mutex
	inflight map[string]chan struct{} // channel_id -> closed when the in-progress refresh lands
	results  map[string]Result        // channel_id -> result of the refresh that closed the above channel
}

// New builds a Scheduler. pollInterval is clamped to MinPollInterval.
func New(st *store.Store, ex *extractor.Extractor, pollInterval time.Duration) *Scheduler {
	if pollInterval < MinPollInterval {
		pollInterval = MinPollInterval
	}
	return &Scheduler{
		store:        st,
		extractor:    ex,
		pollInterval: pollInterval,
		inflight:     make(map[string]chan struct{}),
		results:      make(map[string]Result),
	}
}

// PollInterval returns the sweep period, for status reporting.
func (s *Scheduler) PollInterval() time.Duration { return s.pollInterval }

// Run drives the periodic sweep until ctx is cancelled. It never returns an
// error: per-channel failures are logged and do not abort the sweep.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	enabled := true
	channels, err := s.store.ListChannels(ctx, store.ChannelFilter{Enabled: &enabled, OrderBy: "last_refresh_at", Desc: false})
	if err != nil {
		slog.Error("refresh sweep: list channels", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.RefreshChannel(ctx, ch.ID, false)
			if res.Err != nil {
				slog.Warn("channel refresh failed", "channel_id", ch.ID, "error", res.Err)
			}
		}()
	}
	wg.Wait()
}

// RefreshAll triggers an on-demand refresh of every enabled channel and
// waits for all of them to finish.
func (s *Scheduler) RefreshAll(ctx context.Context, force bool) []Result {
	enabled := true
	channels, err := s.store.ListChannels(ctx, store.ChannelFilter{Enabled: &enabled})
	if err != nil {
		return []Result{{Err: fmt.Errorf("refresh all: list channels: %w", err)}}
	}

	results := make([]Result, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		i, ch := i, ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.RefreshChannel(ctx, ch.ID, force)
		}()
	}
	wg.Wait()
	return results
}

// RefreshChannel runs the per-channel refresh procedure. A second concurrent
// call for the same channel is coalesced onto the first: all callers
// observe the same Result once it lands, so the cap-truncation and
// queueing steps never race for one channel.
func (s *Scheduler) RefreshChannel(ctx context.Context, channelID string, force bool) Result {
	s.mu.Lock()
	if wait, ok := s.inflight[channelID]; ok {
		s.mu.Unlock()
		select {
		case <-wait:
			s.mu.Lock()
			res := s.results[channelID]
			s.mu.Unlock()
			return res
		case <-ctx.Done():
			return Result{ChannelID: channelID, Err: ctx.Err()}
		}
	}

	done := make(chan struct{})
	s.inflight[channelID] = done
	s.mu.Unlock()

	res := s.doRefresh(ctx, channelID, force)

	s.mu.Lock()
	s.results[channelID] = res
	delete(s.inflight, channelID)
	s.mu.Unlock()

	// Closing (rather than sending) broadcasts the completion signal to
	// every waiter that accumulated on wait; they read the landed result
	// from s.results under the lock above.
	close(done)
	return res
}

func (s *Scheduler) doRefresh(ctx context.Context, channelID string, force bool) Result {
	res := Result{ChannelID: channelID}

	ch, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		res.Err = fmt.Errorf("refresh: get channel: %w", err)
		return res
	}
	if !ch.Enabled && !force {
		res.Err = fmt.Errorf("refresh: channel %s disabled", channelID)
		return res
	}

	videos, err := s.extractor.ListChannelVideos(ctx, ch.URL, ch.WindowSize)
	if err != nil {
		res.Err = fmt.Errorf("refresh: list videos: %w", err)
		return res
	}
	res.VideosSeen = len(videos)

	if len(videos) > ch.WindowSize {
		videos = videos[:ch.WindowSize]
	}

	for _, v := range videos {
		created, queued, err := s.reconcileVideo(ctx, ch, v)
		if err != nil {
			slog.Warn("refresh: reconcile video", "channel_id", channelID, "video_id", v.VideoID, "error", err)
			continue
		}
		if created {
			res.EpisodesNew++
		}
		if queued {
			res.EpisodesQueued++
		}
	}

	res.CompletedAt = time.Now().UTC()
	if err := s.store.TouchRefresh(ctx, channelID, res.CompletedAt); err != nil {
		res.Err = fmt.Errorf("refresh: touch last_refresh_at: %w", err)
	}
	return res
}

// reconcileVideo attempts to insert the Episode for v, then enqueues work
// for it if newly created and the channel's feed_type requires downloading.
// A duplicate video_id is treated as success-no-op, per the dedup invariant.
func (s *Scheduler) reconcileVideo(ctx context.Context, ch *model.Channel, v extractor.Video) (created, queued bool, err error) {
	ep := &model.Episode{
		ID:          uuid.NewString(),
		ChannelID:   ch.ID,
		VideoID:     v.VideoID,
		Title:       v.Title,
		PublishedAt: v.PublishedAt,
		Status:      model.EpisodePending,
	}

	err = s.store.CreateEpisode(ctx, ep)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, false, nil
		}
		return false, false, err
	}

	queueEntry := &model.QueueEntry{
		ID:        uuid.NewString(),
		EpisodeID: ep.ID,
		Priority:  model.DefaultPriority,
		Status:    model.QueuePending,
	}
	if err := s.store.InsertQueueEntry(ctx, queueEntry); err != nil {
		return true, false, fmt.Errorf("insert queue entry: %w", err)
	}
	return true, true, nil
}
