package mediatypes

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MediaType classifies an indexed file. Classification is extension-driven
// with a single content-probe fallback for .webp, which can be either a
// static or an animated image.
type MediaType string

const (
	// TypeImage is a static image.
	TypeImage MediaType = "image"
	// TypeAnimatedImage is a multi-frame image (GIF, animated WebP).
	TypeAnimatedImage MediaType = "animated_image"
	// TypeVideo is a video container.
	TypeVideo MediaType = "video"
	// TypeAudio is an audio file.
	TypeAudio MediaType = "audio"
	// TypeUnknown is anything the gallery cannot classify.
	TypeUnknown MediaType = "unknown"
)

// SortOrder specifies the direction of a modification-time sort.
type SortOrder string

const (
	// SortAsc sorts oldest first.
	SortAsc SortOrder = "asc"
	// SortDesc sorts newest first.
	SortDesc SortOrder = "desc"
)

// extensionTypes maps lowercase extensions to their coarse media type.
// .webp is deliberately absent: it needs a content probe to distinguish
// animated from static.
var extensionTypes = map[string]MediaType{
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".bmp":  TypeImage,
	".gif":  TypeAnimatedImage,
	".mp4":  TypeVideo,
	".mkv":  TypeVideo,
	".webm": TypeVideo,
	".mov":  TypeVideo,
	".avi":  TypeVideo,
	".mp3":  TypeAudio,
	".wav":  TypeAudio,
	".ogg":  TypeAudio,
	".flac": TypeAudio,
}

// reservedExtensions are never indexed; they belong to the gallery's cache
// layout and sidecar metadata, not to the media tree.
var reservedExtensions = map[string]bool{
	".json":   true,
	".sqlite": true,
}

// ClassifyExt returns the media type for a lowercase extension (leading dot
// included). Extensions needing a content probe (.webp) and unrecognized
// extensions both return TypeUnknown; callers decide whether to probe.
func ClassifyExt(ext string) MediaType {
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return TypeUnknown
}

// ClassifyPath classifies a path by its extension alone.
func ClassifyPath(path string) MediaType {
	return ClassifyExt(strings.ToLower(filepath.Ext(path)))
}

// NeedsContentProbe reports whether an extension is ambiguous and requires
// opening the file to classify it.
func NeedsContentProbe(ext string) bool {
	return ext == ".webp"
}

// IsIndexable reports whether a filename should appear in the index at all.
func IsIndexable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return !reservedExtensions[ext]
}

// HasThumbnail reports whether the type has a visual thumbnail
// representation. Audio and unknown files have none.
func (t MediaType) HasThumbnail() bool {
	switch t {
	case TypeImage, TypeAnimatedImage, TypeVideo:
		return true
	}
	return false
}

// IsImageLike reports whether the type is decodable as an image.
func (t MediaType) IsImageLike() bool {
	return t == TypeImage || t == TypeAnimatedImage
}

// FormatDuration renders a playback duration as MM:SS, or H:MM:SS for
// durations of an hour or more. Non-positive durations render empty, which
// is the "not applicable" value stored in the index.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total <= 0 {
		return ""
	}
	m, s := total/60, total%60
	h, m := m/60, m%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
