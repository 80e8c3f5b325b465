// Package transcoder wraps ffmpeg as the Transcoder half of C2: producing
// the audio and/or video artifacts a completed episode publishes.
//
// Grounded on the teacher's internal/audio/processor.go, which already
// shells out to ffmpeg via exec.CommandContext with CombinedOutput
// captured for diagnosis; this package generalizes that single atempo
// invocation into the two fixed operations the specification names.
package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"channelcast/internal/adapter"
)

// AudioOptions configures to_audio.
type AudioOptions struct {
	Format      string // "mp3", "aac", ...
	BitrateKbps int
	SampleRate  int
	Threads     int
}

// VideoOptions configures to_video.
type VideoOptions struct {
	Codec            string // "libx264", ...
	CRF              int
	AudioBitrateKbps int
	Threads          int
}

// Config controls how the Transcoder invokes ffmpeg.
type Config struct {
	BinaryPath string
	Timeout    time.Duration
}

// Transcoder runs ffmpeg against a downloaded source file.
type Transcoder struct {
	cfg     Config
	breaker *adapter.Breaker
}

// New builds a Transcoder. Defaults BinaryPath to "ffmpeg" and Timeout to
// 30 minutes when unset — long enough for a full-length video encode.
func New(cfg Config) *Transcoder {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffmpeg"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Transcoder{cfg: cfg, breaker: adapter.NewBreaker("transcoder:" + cfg.BinaryPath)}
}

// ToAudio encodes inputPath to outputPath, returning the produced file's
// byte length. ffmpeg picks the output format from outputPath's extension;
// opts.Format is not passed to it.
func (t *Transcoder) ToAudio(ctx context.Context, inputPath, outputPath string, opts AudioOptions) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	args := []string{"-y", "-i", inputPath}
	if opts.Threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", opts.Threads))
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", opts.SampleRate))
	}
	if opts.BitrateKbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", opts.BitrateKbps))
	}
	args = append(args, "-vn", outputPath)

	out, err := t.breaker.Do(func() ([]byte, error) {
		cmd := exec.CommandContext(ctx, t.cfg.BinaryPath, args...)
		return cmd.CombinedOutput()
	})
	if err != nil {
		return 0, adapter.Classify("to_audio", err, out)
	}
	return fileSize(outputPath, "to_audio", out)
}

// ToVideo encodes inputPath into outputPath with a streamable (moov-first)
// layout, returning its byte length.
func (t *Transcoder) ToVideo(ctx context.Context, inputPath, outputPath string, opts VideoOptions) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	codec := opts.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{"-y", "-i", inputPath, "-c:v", codec}
	if opts.CRF > 0 {
		args = append(args, "-crf", fmt.Sprintf("%d", opts.CRF))
	}
	if opts.AudioBitrateKbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", opts.AudioBitrateKbps))
	}
	if opts.Threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", opts.Threads))
	}
	// moov-first so playback/streaming can begin before the trailing index
	// has fully downloaded.
	args = append(args, "-movflags", "+faststart", outputPath)

	out, err := t.breaker.Do(func() ([]byte, error) {
		cmd := exec.CommandContext(ctx, t.cfg.BinaryPath, args...)
		return cmd.CombinedOutput()
	})
	if err != nil {
		return 0, adapter.Classify("to_video", err, out)
	}
	return fileSize(outputPath, "to_video", out)
}

func fileSize(path, op string, toolOutput []byte) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &adapter.Error{Kind: adapter.KindToolFailure, Op: op, Output: string(toolOutput), Err: fmt.Errorf("stat output: %w", err)}
	}
	if info.Size() == 0 {
		return 0, &adapter.Error{Kind: adapter.KindToolFailure, Op: op, Output: string(toolOutput), Err: fmt.Errorf("produced empty output file")}
	}
	return info.Size(), nil
}
