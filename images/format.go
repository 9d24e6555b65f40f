// Package images - Media format classification.
package images

import (
	"path/filepath"
	"strings"
)

// Format identifies the container format of a media file, derived from its
// extension. The decoder remains the authority on whether the contents are
// actually readable.
type Format string

const (
	// FormatJPEG represents JPEG image format.
	FormatJPEG Format = "jpeg"
	// FormatPNG represents PNG image format.
	FormatPNG Format = "png"
	// FormatGIF represents GIF image format.
	FormatGIF Format = "gif"
	// FormatWebP represents WebP image format.
	FormatWebP Format = "webp"
	// FormatVideo represents any supported video container.
	FormatVideo Format = "video"
	// FormatUnknown represents an unsupported extension.
	FormatUnknown Format = "unknown"
)

var extensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".webp": FormatWebP,
	".mp4":  FormatVideo,
	".avi":  FormatVideo,
	".mov":  FormatVideo,
	".mkv":  FormatVideo,
	".webm": FormatVideo,
}

// FormatForPath classifies a file path by extension, case-insensitively.
func FormatForPath(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f
	}
	return FormatUnknown
}

// IsImage reports whether f is a decodable still-image format.
func (f Format) IsImage() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatWebP:
		return true
	}
	return false
}

// IsVideo reports whether f is a video container format.
func (f Format) IsVideo() bool {
	return f == FormatVideo
}
