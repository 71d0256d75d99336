package mediatypes

import (
	"testing"
	"time"
)

func TestClassifyExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ext  string
		want MediaType
	}{
		{
			name: "PNG image",
			ext:  ".png",
			want: TypeImage,
		},
		{
			name: "JPEG image",
			ext:  ".jpg",
			want: TypeImage,
		},
		{
			name: "GIF is animated",
			ext:  ".gif",
			want: TypeAnimatedImage,
		},
		{
			name: "MP4 video",
			ext:  ".mp4",
			want: TypeVideo,
		},
		{
			name: "WebM video",
			ext:  ".webm",
			want: TypeVideo,
		},
		{
			name: "MP3 audio",
			ext:  ".mp3",
			want: TypeAudio,
		},
		{
			name: "WebP needs a content probe",
			ext:  ".webp",
			want: TypeUnknown,
		},
		{
			name: "Unknown extension",
			ext:  ".xyz",
			want: TypeUnknown,
		},
		{
			name: "Empty extension",
			ext:  "",
			want: TypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyExt(tt.ext)
			if got != tt.want {
				t.Errorf("ClassifyExt(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestClassifyPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want MediaType
	}{
		{
			name: "uppercase extension",
			path: "/output/ComfyUI_00001.PNG",
			want: TypeImage,
		},
		{
			name: "nested path",
			path: "/output/videos/render_final.mp4",
			want: TypeVideo,
		},
		{
			name: "no extension",
			path: "/output/README",
			want: TypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPath(tt.path); got != tt.want {
				t.Errorf("ClassifyPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestNeedsContentProbe(t *testing.T) {
	t.Parallel()

	if !NeedsContentProbe(".webp") {
		t.Error("NeedsContentProbe(.webp) = false, want true")
	}
	if NeedsContentProbe(".png") {
		t.Error("NeedsContentProbe(.png) = true, want false")
	}
}

func TestIsIndexable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{
			name:     "media file",
			filename: "img_00042.png",
			want:     true,
		},
		{
			name:     "unknown extension is still indexed",
			filename: "render.xyz",
			want:     true,
		},
		{
			name:     "sidecar json is reserved",
			filename: "img_00042.json",
			want:     false,
		},
		{
			name:     "sqlite cache is reserved",
			filename: "gallery_cache.sqlite",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIndexable(tt.filename); got != tt.want {
				t.Errorf("IsIndexable(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestHasThumbnail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mediaType MediaType
		want      bool
	}{
		{TypeImage, true},
		{TypeAnimatedImage, true},
		{TypeVideo, true},
		{TypeAudio, false},
		{TypeUnknown, false},
	}

	for _, tt := range tests {
		if got := tt.mediaType.HasThumbnail(); got != tt.want {
			t.Errorf("%v.HasThumbnail() = %v, want %v", tt.mediaType, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{
			name: "zero is not applicable",
			d:    0,
			want: "",
		},
		{
			name: "negative is not applicable",
			d:    -3 * time.Second,
			want: "",
		},
		{
			name: "under a minute",
			d:    7 * time.Second,
			want: "00:07",
		},
		{
			name: "minutes and seconds",
			d:    3*time.Minute + 42*time.Second,
			want: "03:42",
		},
		{
			name: "over an hour",
			d:    time.Hour + 5*time.Minute + 9*time.Second,
			want: "1:05:09",
		},
		{
			name: "sub-second truncates to zero",
			d:    500 * time.Millisecond,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
