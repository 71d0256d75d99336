package media

import (
	"bytes"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"smart-gallery/internal/logging"
	"smart-gallery/internal/mediatypes"
	"smart-gallery/internal/metrics"
)

const (
	staticJPEGQuality = 85
	videoJPEGQuality  = 80
)

// Generator produces downscaled previews into the thumbnail cache
// directory. Thumbnails are keyed by the caller-supplied cache key with a
// format-dependent extension, so a cache lookup is a prefix glob.
type Generator struct {
	cacheDir   string
	width      int
	ffmpegPath string
}

// NewGenerator creates a Generator writing into cacheDir. ffmpegPath may be
// empty, disabling video thumbnails. The cache directory is created if
// absent.
func NewGenerator(cacheDir string, width int, ffmpegPath string) *Generator {
	if width <= 0 {
		width = 300
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		logging.Warn("thumbnails: cannot create cache dir %s: %v", cacheDir, err)
	}
	return &Generator{cacheDir: cacheDir, width: width, ffmpegPath: ffmpegPath}
}

// Find returns the cached thumbnail path for a cache key, or "" when none
// exists. The extension varies by source format, hence the glob.
func (g *Generator) Find(cacheKey string) string {
	matches, err := filepath.Glob(filepath.Join(g.cacheDir, cacheKey+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Generate produces a thumbnail for path under the given cache key and
// returns the thumbnail path. An empty return means "no thumbnail
// available" (decode failure or a type with no visual representation) and
// is not a fault.
func (g *Generator) Generate(path, cacheKey string, mediaType mediatypes.MediaType) string {
	if !mediaType.HasThumbnail() {
		metrics.ThumbnailsGenerated.WithLabelValues("skipped").Inc()
		return ""
	}

	var out string
	switch {
	case strings.EqualFold(filepath.Ext(path), ".gif") && mediaType == mediatypes.TypeAnimatedImage:
		out = g.generateAnimatedGIF(path, cacheKey)
	case strings.EqualFold(filepath.Ext(path), ".webp"):
		out = g.generateWebP(path, cacheKey, mediaType)
	case mediaType == mediatypes.TypeVideo:
		out = g.generateVideoFrame(path, cacheKey)
	default:
		out = g.generateStatic(path, cacheKey)
	}

	if out == "" {
		metrics.ThumbnailsGenerated.WithLabelValues("failed").Inc()
	} else {
		metrics.ThumbnailsGenerated.WithLabelValues("ok").Inc()
	}
	return out
}

// boundedFit fits img into the thumbnail bounding box of width x 2*width,
// preserving aspect ratio and never upscaling.
func (g *Generator) boundedFit(img image.Image) image.Image {
	return imaging.Fit(img, g.width, g.width*2, imaging.Lanczos)
}

func (g *Generator) generateStatic(path, cacheKey string) string {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		logging.Debug("thumbnails: decode failed for %s: %v", path, err)
		return ""
	}

	thumb := g.boundedFit(img)
	out := filepath.Join(g.cacheDir, cacheKey+".jpeg")
	if err := g.writeJPEG(out, thumb, staticJPEGQuality); err != nil {
		logging.Warn("thumbnails: %v", err)
		return ""
	}
	return out
}

// generateAnimatedGIF resizes every frame and re-encodes the sequence,
// preserving per-frame delays and the loop count.
func (g *Generator) generateAnimatedGIF(path, cacheKey string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	src, err := gif.DecodeAll(f)
	if err != nil || len(src.Image) == 0 {
		logging.Debug("thumbnails: gif decode failed for %s: %v", path, err)
		return ""
	}

	out := &gif.GIF{
		Delay:     src.Delay,
		LoopCount: src.LoopCount,
		Disposal:  src.Disposal,
	}

	for _, frame := range src.Image {
		resized := g.boundedFit(frame)
		paletted := image.NewPaletted(resized.Bounds(), frame.Palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		out.Image = append(out.Image, paletted)
	}
	out.Config = image.Config{
		ColorModel: out.Image[0].ColorModel(),
		Width:      out.Image[0].Bounds().Dx(),
		Height:     out.Image[0].Bounds().Dy(),
	}

	dest := filepath.Join(g.cacheDir, cacheKey+".gif")
	w, err := os.Create(dest)
	if err != nil {
		logging.Warn("thumbnails: cannot create %s: %v", dest, err)
		return ""
	}
	defer w.Close()

	if err := gif.EncodeAll(w, out); err != nil {
		logging.Debug("thumbnails: gif encode failed for %s: %v", path, err)
		os.Remove(dest)
		return ""
	}
	return dest
}

// generateWebP goes through libvips, which handles animated WebP natively.
// Without vips, a static WebP still gets a JPEG thumbnail via the standard
// decode path; an animated one is dropped.
func (g *Generator) generateWebP(path, cacheKey string, mediaType mediatypes.MediaType) string {
	if IsVipsAvailable() {
		data, err := webpThumbnailBytes(path, g.width)
		if err == nil {
			dest := filepath.Join(g.cacheDir, cacheKey+".webp")
			if writeErr := os.WriteFile(dest, data, 0o644); writeErr == nil {
				return dest
			}
		}
		logging.Debug("thumbnails: vips webp failed for %s: %v", path, err)
	}
	if mediaType == mediatypes.TypeAnimatedImage {
		return ""
	}
	return g.generateStatic(path, cacheKey)
}

// generateVideoFrame captures one frame near the start of the video with
// ffmpeg and encodes it as JPEG.
func (g *Generator) generateVideoFrame(path, cacheKey string) string {
	if g.ffmpegPath == "" {
		return ""
	}

	cmd := exec.Command(g.ffmpegPath,
		"-ss", "00:00:00.5",
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil || stdout.Len() == 0 {
		// Very short clips can have nothing at 0.5s; retry from the first
		// frame before giving up.
		cmd = exec.Command(g.ffmpegPath,
			"-i", path,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		stdout.Reset()
		stderr.Reset()
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil || stdout.Len() == 0 {
			logging.Debug("thumbnails: ffmpeg failed for %s: %v, stderr: %s", path, err, stderr.String())
			return ""
		}
	}

	frame, _, err := image.Decode(&stdout)
	if err != nil {
		logging.Debug("thumbnails: cannot decode ffmpeg frame for %s: %v", path, err)
		return ""
	}

	thumb := g.boundedFit(frame)
	out := filepath.Join(g.cacheDir, cacheKey+".jpeg")
	if err := g.writeJPEG(out, thumb, videoJPEGQuality); err != nil {
		logging.Warn("thumbnails: %v", err)
		return ""
	}
	return out
}

func (g *Generator) writeJPEG(dest string, img image.Image, quality int) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return err
	}
	return os.WriteFile(dest, buf.Bytes(), 0o644)
}
