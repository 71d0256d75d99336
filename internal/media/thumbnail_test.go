package media

import (
	"image"
	"image/gif"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"smart-gallery/internal/mediatypes"
)

func TestGenerateStaticImage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	src := filepath.Join(dir, "render.png")
	writePNG(t, src, 800, 600)

	g := NewGenerator(cacheDir, 100, "")
	out := g.Generate(src, "abc123", mediatypes.TypeImage)
	if out == "" {
		t.Fatal("Generate returned empty path for a valid image")
	}
	if !strings.HasSuffix(out, "abc123.jpeg") {
		t.Errorf("thumbnail path = %s, want suffix abc123.jpeg", out)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer f.Close()
	config, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("thumbnail format = %s, want jpeg", format)
	}
	// 800x600 fit into a 100x200 bounding box preserves aspect ratio.
	if config.Width != 100 || config.Height != 75 {
		t.Errorf("thumbnail size = %dx%d, want 100x75", config.Width, config.Height)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	src := filepath.Join(dir, "render.png")
	writePNG(t, src, 32, 32)

	g := NewGenerator(cacheDir, 100, "")
	out := g.Generate(src, "deadbeef", mediatypes.TypeImage)
	if out == "" {
		t.Fatal("Generate failed")
	}

	if got := g.Find("deadbeef"); got != out {
		t.Errorf("Find(deadbeef) = %q, want %q", got, out)
	}
	if got := g.Find("cafef00d"); got != "" {
		t.Errorf("Find of unknown key = %q, want empty", got)
	}
}

func TestGenerateAnimatedGIF(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	src := filepath.Join(dir, "loop.gif")
	writeGIF(t, src, []int{7, 12})

	g := NewGenerator(cacheDir, 100, "")
	out := g.Generate(src, "anim01", mediatypes.TypeAnimatedImage)
	if out == "" {
		t.Fatal("Generate returned empty path for a valid gif")
	}
	if !strings.HasSuffix(out, "anim01.gif") {
		t.Errorf("thumbnail path = %s, want suffix anim01.gif", out)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer f.Close()
	thumb, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decode thumbnail gif: %v", err)
	}
	if len(thumb.Image) != 2 {
		t.Fatalf("frame count = %d, want 2", len(thumb.Image))
	}
	if thumb.Delay[0] != 7 || thumb.Delay[1] != 12 {
		t.Errorf("delays = %v, want [7 12]", thumb.Delay)
	}
	// Source frames are smaller than the bounding box and must not be
	// upscaled.
	if dx := thumb.Image[0].Bounds().Dx(); dx != 8 {
		t.Errorf("frame width = %d, want 8", dx)
	}
}

func TestGenerateReturnsEmptyWithoutThumbnailPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	g := NewGenerator(cacheDir, 100, "")

	corrupt := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	clip := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(clip, []byte("container bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	animWebP := filepath.Join(dir, "loop.webp")
	writeWebP(t, animWebP, true, 4)

	tests := []struct {
		name      string
		path      string
		mediaType mediatypes.MediaType
	}{
		{name: "audio has no visual", path: clip, mediaType: mediatypes.TypeAudio},
		{name: "unknown type", path: clip, mediaType: mediatypes.TypeUnknown},
		{name: "undecodable image", path: corrupt, mediaType: mediatypes.TypeImage},
		{name: "video without ffmpeg", path: clip, mediaType: mediatypes.TypeVideo},
		{name: "animated webp without vips", path: animWebP, mediaType: mediatypes.TypeAnimatedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := g.Generate(tt.path, "key", tt.mediaType); out != "" {
				t.Errorf("Generate = %q, want empty", out)
			}
		})
	}
}
