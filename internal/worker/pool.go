// Package worker implements the queue + worker pool (C4): the pipeline
// core driving each claimed QueueEntry through download and transcode,
// applying the retry policy, and keeping Episode/QueueEntry status in
// lockstep.
//
// The goroutine-per-slot loop over typed request/result values, guarded by
// a buffered-channel concurrency gate, generalizes the teacher's
// internal/processor/processor.go downloadWorker/ffmpegWorker pair (which
// processes a bounded in-memory M3U8 playlist) into an indefinitely
// running claim-next consumer loop against the Store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"channelcast/internal/adapter"
	"channelcast/internal/archive"
	"channelcast/internal/extractor"
	"channelcast/internal/model"
	"channelcast/internal/store"
	"channelcast/internal/tagger"
	"channelcast/internal/transcoder"
)

// Invalidator drops any cached feed documents for a channel. The feed
// Generator satisfies this; kept as a narrow interface here so worker
// doesn't need to import the feed package.
type Invalidator interface {
	Invalidate(channelID string)
}

// PollInterval is how long an idle worker waits before re-attempting
// claim-next, per §4.4.2 step 2.
const PollInterval = 5 * time.Second

// ReapInterval is how often the stuck-entry reaper sweeps, per §4.4.5.
const ReapInterval = 10 * time.Minute

// StuckThreshold is how long a queue entry may sit in_progress before the
// reaper considers it abandoned — a small multiple of the longest
// reasonable transcode duration.
const StuckThreshold = 90 * time.Minute

// TranscodeConfig carries the encode settings. One TranscodeConfig applies
// to every episode; per-channel overrides are not applied.
type TranscodeConfig struct {
	Audio        transcoder.AudioOptions
	Video        transcoder.VideoOptions
	KeepOriginal bool
}

// Pool drives N workers against the Store's claim-next primitive.
type Pool struct {
	store      *store.Store
	extractor  *extractor.Extractor
	transcoder *transcoder.Transcoder

	concurrency int
	rootDir     string
	transcode   TranscodeConfig

	invalidate Invalidator
	mirror     archive.Mirror
}

// New builds a Pool. concurrency is clamped to
// [model.MinConcurrentDownloads, model.MaxConcurrentDownloads].
func New(st *store.Store, ex *extractor.Extractor, tc *transcoder.Transcoder, rootDir string, concurrency int, cfg TranscodeConfig) *Pool {
	if concurrency < model.MinConcurrentDownloads {
		concurrency = model.MinConcurrentDownloads
	}
	if concurrency > model.MaxConcurrentDownloads {
		concurrency = model.MaxConcurrentDownloads
	}
	return &Pool{store: st, extractor: ex, transcoder: tc, concurrency: concurrency, rootDir: rootDir, transcode: cfg, mirror: archive.NoopMirror{}}
}

// SetInvalidator wires a feed cache invalidator, called after an episode is
// marked completed so cached feeds pick up the new item.
func (p *Pool) SetInvalidator(inv Invalidator) { p.invalidate = inv }

// SetMirror wires an optional off-site archive backend. Upload failures are
// logged and never affect the pipeline's success/failure outcome.
func (p *Pool) SetMirror(m archive.Mirror) { p.mirror = m }

// Run starts the concurrency-gated worker loop and the stuck-entry reaper,
// blocking until ctx is cancelled. On entry it reverts any queue entries
// left in_progress by an unclean prior shutdown, per §4.4.5's simplest
// documented reaper strategy.
func (p *Pool) Run(ctx context.Context) error {
	if n, err := p.store.ReleaseStaleClaims(ctx); err != nil {
		slog.Error("worker pool: release stale claims", "error", err)
	} else if n > 0 {
		slog.Info("worker pool: released stale claims from prior run", "count", n)
	}

	var wg sync.WaitGroup
	gate := make(chan struct{}, p.concurrency)

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reapLoop(ctx)
	}()

	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.workerLoop(ctx, workerID, gate)
		}(i)
	}

	wg.Wait()
	return nil
}

func (p *Pool) workerLoop(ctx context.Context, workerID int, gate chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case gate <- struct{}{}:
		}

		entry, err := p.store.ClaimNext(ctx)
		if err == store.ErrNotFound {
			<-gate
			select {
			case <-ctx.Done():
				return
			case <-time.After(PollInterval):
			}
			continue
		}
		if err != nil {
			slog.Error("worker: claim-next", "worker_id", workerID, "error", err)
			<-gate
			select {
			case <-ctx.Done():
				return
			case <-time.After(PollInterval):
			}
			continue
		}

		p.process(ctx, workerID, entry)
		<-gate
	}
}

// process runs the claimed entry through download and transcode, applying
// the retry policy on any failure. It never returns an error: the outcome
// is fully reflected in the Store.
func (p *Pool) process(ctx context.Context, workerID int, entry *model.QueueEntry) {
	log := slog.With("worker_id", workerID, "queue_id", entry.ID, "episode_id", entry.EpisodeID)

	ep, err := p.store.GetEpisode(ctx, entry.EpisodeID)
	if err != nil {
		log.Error("process: get episode", "error", err)
		p.release(ctx, entry.ID)
		return
	}
	ch, err := p.store.GetChannel(ctx, ep.ChannelID)
	if err != nil {
		log.Error("process: get channel", "error", err)
		p.release(ctx, entry.ID)
		return
	}

	tempPath, err := p.download(ctx, ep)
	if err != nil {
		if ctx.Err() != nil {
			p.release(ctx, entry.ID) // cancellation, not a failure
			return
		}
		p.fail(ctx, log, entry, ep, "download", err)
		return
	}
	defer func() {
		if !p.transcode.KeepOriginal {
			os.Remove(tempPath)
		}
	}()

	if err := p.store.UpdateEpisodeStatus(ctx, ep.ID, model.EpisodeProcessing); err != nil {
		log.Error("process: transition to processing", "error", err)
	}

	if err := p.transcodeEpisode(ctx, ch, ep, tempPath); err != nil {
		if ctx.Err() != nil {
			p.release(ctx, entry.ID)
			return
		}
		p.fail(ctx, log, entry, ep, "transcode", err)
		return
	}

	p.succeed(ctx, log, entry, ep)
}

func (p *Pool) download(ctx context.Context, ep *model.Episode) (string, error) {
	tempDir := filepath.Join(p.rootDir, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir temp dir: %w", err)
	}
	tempPath := filepath.Join(tempDir, ep.VideoID+".src")

	if err := p.extractor.Download(ctx, ep.VideoID, tempPath); err != nil {
		return "", err
	}
	return tempPath, nil
}

func (p *Pool) transcodeEpisode(ctx context.Context, ch *model.Channel, ep *model.Episode, sourcePath string) error {
	slug := ch.Slug()

	switch ch.FeedType {
	case model.FeedAudio:
		return p.transcodeAudio(ctx, ep, slug, sourcePath)
	case model.FeedVideo:
		return p.transcodeVideo(ctx, ep, slug, sourcePath)
	case model.FeedBoth:
		if err := p.transcodeAudio(ctx, ep, slug, sourcePath); err != nil {
			return err
		}
		return p.transcodeVideo(ctx, ep, slug, sourcePath)
	default:
		return fmt.Errorf("unknown feed_type %q", ch.FeedType)
	}
}

func (p *Pool) transcodeAudio(ctx context.Context, ep *model.Episode, slug, sourcePath string) error {
	format := p.transcode.Audio.Format
	if format == "" {
		format = "mp3"
	}
	dir := filepath.Join(p.rootDir, slug, "audio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir audio dir: %w", err)
	}
	outPath := filepath.Join(dir, ep.VideoID+"."+format)

	size, err := p.transcoder.ToAudio(ctx, sourcePath, outPath, p.transcode.Audio)
	if err != nil {
		return err
	}

	if _, err := tagger.Read(outPath); err != nil {
		return &adapter.Error{Kind: adapter.KindToolFailure, Op: "to_audio", Err: fmt.Errorf("produced file unreadable: %w", err)}
	}

	ep.FilePathAudio = &outPath
	ep.FileSizeAudio = &size
	return nil
}

func (p *Pool) transcodeVideo(ctx context.Context, ep *model.Episode, slug, sourcePath string) error {
	codec := p.transcode.Video.Codec
	ext := ".mp4"
	dir := filepath.Join(p.rootDir, slug, "video")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir video dir: %w", err)
	}
	outPath := filepath.Join(dir, ep.VideoID+ext)

	opts := p.transcode.Video
	opts.Codec = codec
	size, err := p.transcoder.ToVideo(ctx, sourcePath, outPath, opts)
	if err != nil {
		return err
	}
	ep.FilePathVideo = &outPath
	ep.FileSizeVideo = &size
	return nil
}

// succeed records a completed episode and queue entry.
func (p *Pool) succeed(ctx context.Context, log *slog.Logger, entry *model.QueueEntry, ep *model.Episode) {
	now := time.Now().UTC()
	ep.DownloadedAt = &now
	ep.Status = model.EpisodeCompleted
	ep.ErrorMessage = nil

	if err := p.store.UpdateEpisode(ctx, ep); err != nil {
		log.Error("succeed: update episode", "error", err)
		return
	}
	if err := p.store.MarkQueueCompleted(ctx, entry.ID); err != nil {
		log.Error("succeed: mark queue completed", "error", err)
	}
	if p.invalidate != nil {
		p.invalidate.Invalidate(ep.ChannelID)
	}
	p.mirrorEpisode(ctx, log, ep)
}

// mirrorEpisode best-effort uploads the episode's produced files to the
// configured archive backend. Failures are logged only: the archive is
// never authoritative and never blocks or retries the pipeline.
func (p *Pool) mirrorEpisode(ctx context.Context, log *slog.Logger, ep *model.Episode) {
	upload := func(path *string) {
		if path == nil {
			return
		}
		key := filepath.Base(*path)
		exists, err := p.mirror.Exists(ctx, key)
		if err != nil {
			log.Warn("mirror: exists check failed", "key", key, "error", err)
		}
		if exists {
			return
		}
		if err := p.mirror.Upload(ctx, *path, key); err != nil {
			log.Warn("mirror: upload failed", "key", key, "error", err)
		}
	}
	upload(ep.FilePathAudio)
	upload(ep.FilePathVideo)
}

// fail classifies err via the adapter taxonomy and applies the retry policy:
// retryable kinds go back to pending with backoff unless attempts have
// exhausted max_attempts, non-retryable kinds terminate immediately.
func (p *Pool) fail(ctx context.Context, log *slog.Logger, entry *model.QueueEntry, ep *model.Episode, step string, err error) {
	msg := fmt.Sprintf("%s: %v", step, err)
	retryable := true
	if ae, ok := adapter.As(err); ok {
		retryable = ae.Kind.Retryable()
	}

	if !retryable || entry.Attempts >= entry.MaxAttempts {
		log.Warn("episode terminally failed", "error", msg, "attempts", entry.Attempts)
		if err := p.store.MarkFailedPermanent(ctx, entry.ID, msg); err != nil {
			log.Error("fail: mark permanent", "error", err)
		}
		return
	}

	log.Warn("episode failed, will retry", "error", msg, "attempts", entry.Attempts)
	if err := p.store.MarkFailedRetry(ctx, entry.ID, msg); err != nil {
		log.Error("fail: mark retry", "error", err)
	}
}

func (p *Pool) release(ctx context.Context, queueID string) {
	if err := p.store.ReleaseClaim(ctx, queueID); err != nil {
		slog.Error("release claim", "queue_id", queueID, "error", err)
	}
}

func (p *Pool) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.store.ReapStuck(ctx, StuckThreshold)
			if err != nil {
				slog.Error("reap stuck entries", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("reaped stuck queue entries", "count", n)
			}
		}
	}
}
