package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAudioFile(t *testing.T) {
	audio := []string{
		"/music/track.mp3",
		"/music/track.FLAC",
		"/music/deep/nested/track.Ogg",
		"song.m4a",
	}
	for _, path := range audio {
		assert.True(t, IsAudioFile(path), path)
	}

	notAudio := []string{
		"/music/cover.jpg",
		"/music/notes.txt",
		"/music/track.mp3.part",
		"track",
		"",
	}
	for _, path := range notAudio {
		assert.False(t, IsAudioFile(path), path)
	}
}
