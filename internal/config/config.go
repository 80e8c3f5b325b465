// Package config loads the system's configuration from a YAML file
// overlaid with environment variables, replacing the teacher's
// package-level os.Getenv var block with a koanf-based loader per the
// specification's ${VAR}/${VAR:-default}/${VAR:?msg} substitution
// contract (§6).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Transcode holds the global or per-channel-overridden encode settings.
type Transcode struct {
	AudioFormat     string `koanf:"audio_format"`
	AudioBitrate    string `koanf:"audio_bitrate"`
	AudioSampleRate int    `koanf:"audio_sample_rate"`
	VideoCodec      string `koanf:"video_codec"`
	VideoQuality    int    `koanf:"video_quality"`
	Threads         int    `koanf:"threads"`
	KeepOriginal    bool   `koanf:"keep_original"`
}

// Server holds the HTTP server's bind address and externally reachable URL.
type Server struct {
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	BaseURL string `koanf:"base_url"`
}

// ChannelOverride names per-channel configuration exceptions. They are
// parsed into Config.Channels; nothing in the service reads or applies them.
type ChannelOverride struct {
	ChannelID  string     `koanf:"channel_id"`
	WindowSize int        `koanf:"window_size"`
	Enabled    *bool      `koanf:"enabled"`
	FeedType   string     `koanf:"feed_type"`
	Transcode  *Transcode `koanf:"transcode"`
}

// Archive configures the optional off-site mirror (best-effort, not the
// source of truth — see internal/archive).
type Archive struct {
	Backend string `koanf:"backend"` // "", "gdrive", "s3"

	GDriveFolderID string `koanf:"gdrive_folder_id"`

	S3Bucket      string `koanf:"s3_bucket"`
	S3Region      string `koanf:"s3_region"`
	S3EndpointURL string `koanf:"s3_endpoint_url"`
}

// Admin configures the management API's JWT validation.
type Admin struct {
	Domain   string `koanf:"domain"`
	Audience string `koanf:"audience"`
}

// Feed configures HTTP Basic credentials guarding the feed endpoints.
type Feed struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Config is the fully resolved, validated configuration.
type Config struct {
	DataDir                string `koanf:"data_dir"`
	PollIntervalSeconds    int    `koanf:"poll_interval"`
	MaxConcurrentDownloads int    `koanf:"max_concurrent_downloads"`
	ExtractorBinary        string `koanf:"extractor_binary"`
	TranscoderBinary       string `koanf:"transcoder_binary"`

	Transcode Transcode         `koanf:"transcode"`
	Server    Server            `koanf:"server"`
	Admin     Admin             `koanf:"admin"`
	Feed      Feed              `koanf:"feed"`
	Archive   Archive           `koanf:"archive"`
	Channels  []ChannelOverride `koanf:"channels"`
}

// defaults mirrors the specification's documented defaults.
func defaults() Config {
	return Config{
		DataDir:                "./data",
		PollIntervalSeconds:    300,
		MaxConcurrentDownloads: 1,
		ExtractorBinary:        "yt-dlp",
		TranscoderBinary:       "ffmpeg",
		Transcode: Transcode{
			AudioFormat:     "mp3",
			AudioBitrate:    "128k",
			AudioSampleRate: 44100,
			VideoCodec:      "libx264",
			VideoQuality:    23,
			Threads:         2,
		},
		Server: Server{Host: "0.0.0.0", Port: 8080},
	}
}

// Load reads path (YAML), overlays environment variables prefixed
// CHANNELCAST_ (double underscore as nesting separator, e.g.
// CHANNELCAST_SERVER__PORT), substitutes ${VAR}/${VAR:-default}/${VAR:?msg}
// expressions found anywhere in the raw file against the process
// environment, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		substituted, err := substituteEnv(string(raw))
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider([]byte(substituted)), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CHANNELCAST_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CHANNELCAST_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval is PollIntervalSeconds as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

const minPollInterval = 300

func validate(c *Config) error {
	if c.PollIntervalSeconds < minPollInterval {
		return fmt.Errorf("config: poll_interval must be >= %d seconds", minPollInterval)
	}
	if c.MaxConcurrentDownloads < 1 || c.MaxConcurrentDownloads > 10 {
		return fmt.Errorf("config: max_concurrent_downloads must be in [1, 10]")
	}
	if c.Transcode.VideoQuality < 0 || c.Transcode.VideoQuality > 51 {
		return fmt.Errorf("config: transcode.video_quality (CRF) must be in [0, 51]")
	}
	switch c.Transcode.AudioFormat {
	case "mp3", "aac", "ogg", "m4a":
	default:
		return fmt.Errorf("config: transcode.audio_format %q invalid", c.Transcode.AudioFormat)
	}
	if !bitratePattern.MatchString(c.Transcode.AudioBitrate) {
		return fmt.Errorf("config: transcode.audio_bitrate %q does not match \\d+[kKmM]", c.Transcode.AudioBitrate)
	}
	return nil
}

var bitratePattern = regexp.MustCompile(`^\d+[kKmM]$`)

// envExpr matches ${VAR}, ${VAR:-default}, and ${VAR:?msg}.
var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*)|:\?([^}]*))?\}`)

func substituteEnv(raw string) (string, error) {
	var firstErr error
	out := envExpr.ReplaceAllStringFunc(raw, func(match string) string {
		groups := envExpr.FindStringSubmatch(match)
		name, hasDefault, defaultClause, requiredMsg := groups[1], groups[2], groups[3], groups[4]

		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if strings.HasPrefix(hasDefault, ":-") {
			return defaultClause
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("required environment variable %s unset: %s", name, requiredMsg)
		}
		return ""
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
