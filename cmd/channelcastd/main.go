// Command channelcastd is the single combined binary running every
// background service described in §5: the refresh scheduler, the worker
// pool, the retention sweeper and the HTTP server, supervised together in
// one process. It replaces the teacher's split cmd/http + cmd/worker
// binaries, matching this specification's single-process background-task
// model.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"channelcast/internal/archive"
	"channelcast/internal/authn"
	"channelcast/internal/config"
	"channelcast/internal/endpoints"
	"channelcast/internal/extractor"
	"channelcast/internal/feed"
	"channelcast/internal/ratelimit"
	"channelcast/internal/refresh"
	"channelcast/internal/retention"
	"channelcast/internal/server"
	"channelcast/internal/store"
	"channelcast/internal/supervisor"
	"channelcast/internal/transcoder"
	"channelcast/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	configPath := flag.String("config", os.Getenv("CHANNELCAST_CONFIG_FILE"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		slog.Error("create data dir", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(ctx, cfg.DataDir+"/channelcast.db")
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ex := extractor.New(extractor.Config{BinaryPath: cfg.ExtractorBinary})
	tc := transcoder.New(transcoder.Config{BinaryPath: cfg.TranscoderBinary})

	mirror, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		slog.Error("build archive mirror", "error", err)
		os.Exit(1)
	}

	scheduler := refresh.New(st, ex, cfg.PollInterval())

	pool := worker.New(st, ex, tc, cfg.DataDir, cfg.MaxConcurrentDownloads, worker.TranscodeConfig{
		Audio: transcoder.AudioOptions{
			Format:      cfg.Transcode.AudioFormat,
			BitrateKbps: bitrateKbps(cfg.Transcode.AudioBitrate),
			SampleRate:  cfg.Transcode.AudioSampleRate,
			Threads:     cfg.Transcode.Threads,
		},
		Video: transcoder.VideoOptions{
			Codec:   cfg.Transcode.VideoCodec,
			CRF:     cfg.Transcode.VideoQuality,
			Threads: cfg.Transcode.Threads,
		},
		KeepOriginal: cfg.Transcode.KeepOriginal,
	})
	pool.SetMirror(mirror)

	sweeper := retention.New(st)

	generator := feed.New(st, cfg.Server.BaseURL)
	pool.SetInvalidator(generator)
	sweeper.SetInvalidator(generator)

	admin, err := authn.AdminJWT(authn.AdminAuthConfig{Domain: cfg.Admin.Domain, Audience: cfg.Admin.Audience})
	if err != nil {
		slog.Error("configure admin auth", "error", err)
		os.Exit(1)
	}
	feedAuth := authn.FeedBasicAuth(cfg.Feed.Username, cfg.Feed.Password)
	limiter := ratelimit.New()

	deps := &endpoints.Deps{
		Store:     st,
		Refresh:   scheduler,
		Retention: sweeper,
		Feed:      generator,
		DataDir:   cfg.DataDir,
		Version:   version(),
		StartedAt: time.Now().UTC(),
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := server.New(addr, deps, admin, feedAuth, limiter)

	super := supervisor.New("channelcastd")
	super.Add(supervisor.Func(scheduler.Run))
	super.Add(supervisor.Func(pool.Run))
	super.Add(supervisor.Func(sweeper.Run))
	super.Add(supervisor.Func(httpServer.Serve))

	slog.Info("channelcastd starting", "data_dir", cfg.DataDir, "addr", addr)
	if err := super.Serve(ctx); err != nil && ctx.Err() == nil {
		slog.Error("supervisor exited", "error", err)
		os.Exit(1)
	}
	slog.Info("channelcastd stopped")
}

// buildVersion is overridden at build time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func version() string { return buildVersion }

func bitrateKbps(bitrate string) int {
	if bitrate == "" {
		return 0
	}
	n := 0
	for _, r := range bitrate {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
