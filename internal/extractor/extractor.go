// Package extractor wraps an external video-metadata tool (e.g. yt-dlp) as
// the Extractor half of C2: listing a channel's videos and fetching
// per-video metadata, both as fresh, timed-out child processes whose
// combined stdout and stderr is parsed as JSON (so any non-JSON stderr
// output makes the parse fail) and whose failures are classified into the
// shared adapter taxonomy.
//
// Process-invocation style (exec.CommandContext, captured combined output,
// context-based cancellation) follows the teacher's
// internal/audio/processor.go ffmpeg invocation.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"channelcast/internal/adapter"
)

// Video is one entry from a channel listing.
type Video struct {
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Metadata is the per-video detail fetched lazily before download.
type Metadata struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	DurationSec  *int64     `json:"duration_seconds,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// Config controls how the Extractor invokes its backing binary.
type Config struct {
	// BinaryPath is the executable invoked for both operations, e.g. "yt-dlp".
	BinaryPath string
	// Timeout bounds each single invocation.
	Timeout time.Duration
}

// Extractor lists channel videos and fetches their metadata by shelling out
// to BinaryPath, one fresh process per call.
type Extractor struct {
	cfg     Config
	breaker *adapter.Breaker
}

// New builds an Extractor. Defaults BinaryPath to "yt-dlp" and Timeout to
// 2 minutes when unset.
func New(cfg Config) *Extractor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Extractor{cfg: cfg, breaker: adapter.NewBreaker("extractor:" + cfg.BinaryPath)}
}

// ListChannelVideos lists up to limit of the channel's most recent videos,
// in upstream-declared (newest-first) order. Idempotent and safe to re-run.
func (e *Extractor) ListChannelVideos(ctx context.Context, channelURL string, limit int) ([]Video, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{
		"--flat-playlist",
		"--dump-json",
		"--playlist-end", fmt.Sprintf("%d", limit),
		channelURL,
	}

	out, err := e.breaker.Do(func() ([]byte, error) {
		cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
		return cmd.CombinedOutput()
	})
	if err != nil {
		return nil, adapter.Classify("list_channel_videos", err, out)
	}

	videos, err := parseVideoLines(out)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindToolFailure, Op: "list_channel_videos", Output: string(out), Err: err}
	}
	return videos, nil
}

// FetchVideoMetadata performs an idempotent single-video lookup.
func (e *Extractor) FetchVideoMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{"--dump-json", "--skip-download", videoID}

	out, err := e.breaker.Do(func() ([]byte, error) {
		cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
		return cmd.CombinedOutput()
	})
	if err != nil {
		return nil, adapter.Classify("fetch_video_metadata", err, out)
	}

	var raw rawMetadata
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &adapter.Error{Kind: adapter.KindToolFailure, Op: "fetch_video_metadata", Output: string(out), Err: err}
	}
	return raw.toMetadata(), nil
}

// Download fetches the source video's best available stream to destPath.
// Not part of the specification's named Extractor operations list, but the
// download capability §4.4.2 requires the worker to invoke through
// "Extractor/Transcoder's download capability" — yt-dlp is the single
// binary that both lists and downloads, so it lives on this adapter.
func (e *Extractor) Download(ctx context.Context, videoID, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{"-o", destPath, "--no-playlist", videoID}

	out, err := e.breaker.Do(func() ([]byte, error) {
		cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
		return cmd.CombinedOutput()
	})
	if err != nil {
		return adapter.Classify("download", err, out)
	}
	return nil
}

// rawMetadata mirrors the subset of yt-dlp's --dump-json schema this
// adapter depends on; unrecognized fields are ignored.
type rawMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Duration    *int64 `json:"duration"`
	UploadDate  string `json:"upload_date"` // YYYYMMDD
}

func (r rawMetadata) toMetadata() *Metadata {
	m := &Metadata{
		Title:        r.Title,
		Description:  r.Description,
		ThumbnailURL: r.Thumbnail,
		DurationSec:  r.Duration,
	}
	if r.UploadDate != "" {
		if t, err := time.Parse("20060102", r.UploadDate); err == nil {
			m.PublishedAt = &t
		}
	}
	return m
}

// parseVideoLines decodes yt-dlp's --dump-json output: one JSON object per
// line, consumed as a stream of consecutive values rather than split on
// newlines.
func parseVideoLines(out []byte) ([]Video, error) {
	dec := json.NewDecoder(bytes.NewReader(out))
	var videos []Video
	for {
		var raw rawVideo
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		videos = append(videos, raw.toVideo())
	}
	return videos, nil
}

type rawVideo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	UploadDate string `json:"upload_date"`
}

func (r rawVideo) toVideo() Video {
	v := Video{VideoID: r.ID, Title: r.Title}
	if r.UploadDate != "" {
		if t, err := time.Parse("20060102", r.UploadDate); err == nil {
			v.PublishedAt = &t
		}
	}
	return v
}
