package utils

import (
	"path/filepath"
	"strings"
)

// audio container extensions the library tracks
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".wav":  {},
	".aiff": {},
	".aif":  {},
	".m4a":  {},
	".aac":  {},
	".wma":  {},
	".alac": {},
}

// IsAudioFile reports whether path has a recognized audio extension.
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := audioExtensions[ext]
	return ok
}
