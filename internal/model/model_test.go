package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify_LowercasesAndCollapsesRuns(t *testing.T) {
	assert.Equal(t, "my-great-channel", Slugify("My  Great!! Channel"))
}

func TestSlugify_TrimsLeadingAndTrailingDashes(t *testing.T) {
	assert.Equal(t, "channel", Slugify("---"))
}

func TestSlugify_CapsLength(t *testing.T) {
	got := Slugify(strings.Repeat("a", 100))
	assert.LessOrEqual(t, len(got), 50)
}

func TestChannel_Slug_DerivesFromTitle(t *testing.T) {
	c := Channel{Title: "Late Night Tech Talk"}
	assert.Equal(t, "late-night-tech-talk", c.Slug())
}

func TestFeedType_Valid(t *testing.T) {
	assert.True(t, FeedAudio.Valid())
	assert.True(t, FeedVideo.Valid())
	assert.True(t, FeedBoth.Valid())
	assert.False(t, FeedType("invalid").Valid())
}

func TestEpisode_HasCompletedFile_RequiresPositiveSize(t *testing.T) {
	path := "/data/c1/audio/e1.mp3"
	zero := int64(0)
	positive := int64(100)

	assert.False(t, Episode{}.HasCompletedFile(), "no file path set at all")
	assert.False(t, Episode{FilePathAudio: &path}.HasCompletedFile(), "path without size")
	assert.False(t, Episode{FilePathAudio: &path, FileSizeAudio: &zero}.HasCompletedFile(), "zero size does not count")
	assert.True(t, Episode{FilePathAudio: &path, FileSizeAudio: &positive}.HasCompletedFile())
}

func TestEpisode_HasCompletedFile_VideoOnlySatisfies(t *testing.T) {
	path := "/data/c1/video/e1.mp4"
	size := int64(500)
	assert.True(t, Episode{FilePathVideo: &path, FileSizeVideo: &size}.HasCompletedFile())
}
