package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteEnv_PlainVar(t *testing.T) {
	t.Setenv("CC_TEST_VAR", "hello")
	out, err := substituteEnv("value: ${CC_TEST_VAR}")
	require.NoError(t, err)
	assert.Equal(t, "value: hello", out)
}

func TestSubstituteEnv_DefaultClauseUsedWhenUnset(t *testing.T) {
	os.Unsetenv("CC_TEST_MISSING")
	out, err := substituteEnv("value: ${CC_TEST_MISSING:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "value: fallback", out)
}

func TestSubstituteEnv_DefaultClauseIgnoredWhenSet(t *testing.T) {
	t.Setenv("CC_TEST_VAR", "set-value")
	out, err := substituteEnv("value: ${CC_TEST_VAR:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "value: set-value", out)
}

func TestSubstituteEnv_RequiredClauseErrorsWhenUnset(t *testing.T) {
	os.Unsetenv("CC_TEST_REQUIRED")
	_, err := substituteEnv("value: ${CC_TEST_REQUIRED:?must set this}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CC_TEST_REQUIRED")
}

func TestSubstituteEnv_RequiredClauseSatisfiedWhenSet(t *testing.T) {
	t.Setenv("CC_TEST_REQUIRED", "present")
	out, err := substituteEnv("value: ${CC_TEST_REQUIRED:?must set this}")
	require.NoError(t, err)
	assert.Equal(t, "value: present", out)
}

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 300, cfg.PollIntervalSeconds)
	assert.Equal(t, "mp3", cfg.Transcode.AudioFormat)
}

func TestLoad_RejectsPollIntervalBelowMinimum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval: 60\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestLoad_RejectsInvalidAudioFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transcode:\n  audio_format: wav\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio_format")
}

func TestLoad_RejectsBadBitratePattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transcode:\n  audio_bitrate: \"fast\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio_bitrate")
}

func TestLoad_SubstitutesEnvInFile(t *testing.T) {
	t.Setenv("CC_TEST_BUCKET", "my-bucket")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archive:\n  backend: s3\n  s3_bucket: ${CC_TEST_BUCKET}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", cfg.Archive.S3Bucket)
}

func TestLoad_EnvOverrideTakesPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

	t.Setenv("CHANNELCAST_SERVER__PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestPollInterval_ConvertsSecondsToDuration(t *testing.T) {
	cfg := &Config{PollIntervalSeconds: 600}
	assert.Equal(t, 600.0, cfg.PollInterval().Seconds())
}
