package media

import (
	"encoding/json"
	"fmt"
	"image"
	"image/gif"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"smart-gallery/internal/logging"
	"smart-gallery/internal/mediatypes"
	"smart-gallery/internal/metrics"
	"smart-gallery/internal/workflow"

	// Image format decoders for DecodeConfig
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp" // WebP format support
)

// Metadata is the result of probing one file. Degraded lists the fields
// that fell back to their empty value because of a recoverable failure;
// tests assert on it instead of relying on the absence of logged errors.
type Metadata struct {
	Type        mediatypes.MediaType
	Duration    string
	Dimensions  string
	HasWorkflow bool
	Degraded    []string
}

// Prober derives metadata for media files.
type Prober struct {
	ffprobePath string
	webpFPS     float64
	workflows   *workflow.Extractor
}

// NewProber creates a Prober. ffprobePath may be empty; video duration and
// dimensions then degrade to empty. webpFPS is the assumed frame rate for
// animated WebP duration estimation.
func NewProber(ffprobePath string, webpFPS float64, workflows *workflow.Extractor) *Prober {
	if webpFPS <= 0 {
		webpFPS = 16
	}
	return &Prober{
		ffprobePath: ffprobePath,
		webpFPS:     webpFPS,
		workflows:   workflows,
	}
}

// Probe inspects path and returns a complete Metadata record. It never
// fails: a file that cannot be opened at all still yields a record with
// its extension-derived type and every probe-derived field empty.
func (p *Prober) Probe(path string) Metadata {
	meta := Metadata{Type: mediatypes.ClassifyPath(path)}
	ext := strings.ToLower(filepath.Ext(path))

	if meta.Type == mediatypes.TypeUnknown && mediatypes.NeedsContentProbe(ext) {
		if isAnimatedWebP(path) {
			meta.Type = mediatypes.TypeAnimatedImage
		} else {
			meta.Type = mediatypes.TypeImage
		}
	}

	if meta.Type.IsImageLike() {
		if dims, ok := imageDimensions(path); ok {
			meta.Dimensions = dims
		} else {
			meta.degrade("dimensions")
		}
	}

	var duration time.Duration
	switch meta.Type {
	case mediatypes.TypeVideo:
		duration = p.probeVideo(path, &meta)
	case mediatypes.TypeAnimatedImage:
		duration = p.probeAnimated(path, ext, &meta)
	}
	meta.Duration = mediatypes.FormatDuration(duration)

	if p.workflows != nil {
		_, meta.HasWorkflow = p.workflows.Extract(path)
	}

	return meta
}

func (m *Metadata) degrade(field string) {
	m.Degraded = append(m.Degraded, field)
	metrics.ProbeFailures.WithLabelValues(field).Inc()
}

// imageDimensions reads pixel dimensions without decoding the full image.
func imageDimensions(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		logging.Debug("probe: cannot read dimensions of %s: %v", path, err)
		return "", false
	}
	return fmt.Sprintf("%dx%d", config.Width, config.Height), true
}

// probeVideo asks ffprobe for the first video stream's frame count, frame
// rate, and dimensions. Duration is frames/fps when both are positive.
// Dimensions from the stream overwrite anything extension-derived; the
// container is more reliable than the filename.
func (p *Prober) probeVideo(path string, meta *Metadata) time.Duration {
	if p.ffprobePath == "" {
		meta.degrade("duration")
		meta.degrade("dimensions")
		return 0
	}

	cmd := exec.Command(p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "v:0",
		"-count_packets",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		logging.Debug("probe: ffprobe failed for %s: %v", path, err)
		meta.degrade("duration")
		meta.degrade("dimensions")
		return 0
	}

	var probe struct {
		Streams []struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			NbFrames   string `json:"nb_frames"`
			NbPackets  string `json:"nb_read_packets"`
			RFrameRate string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &probe); err != nil || len(probe.Streams) == 0 {
		meta.degrade("duration")
		return 0
	}

	stream := probe.Streams[0]
	if stream.Width > 0 && stream.Height > 0 {
		meta.Dimensions = fmt.Sprintf("%dx%d", stream.Width, stream.Height)
	}

	frames, _ := strconv.ParseFloat(stream.NbFrames, 64)
	if frames <= 0 {
		frames, _ = strconv.ParseFloat(stream.NbPackets, 64)
	}
	fps := parseFrameRate(stream.RFrameRate)
	if frames > 0 && fps > 0 {
		return time.Duration(frames / fps * float64(time.Second))
	}
	meta.degrade("duration")
	return 0
}

// parseFrameRate parses ffprobe's rational "num/den" frame rate.
func parseFrameRate(r string) float64 {
	num, den, found := strings.Cut(r, "/")
	if !found {
		v, _ := strconv.ParseFloat(r, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// probeAnimated estimates the playback duration of an animated image. GIFs
// carry per-frame delays; animated WebP duration is frame count divided by
// the configured assumed frame rate.
func (p *Prober) probeAnimated(path, ext string, meta *Metadata) time.Duration {
	switch ext {
	case ".gif":
		f, err := os.Open(path)
		if err != nil {
			meta.degrade("duration")
			return 0
		}
		defer f.Close()

		g, err := gif.DecodeAll(f)
		if err != nil {
			logging.Debug("probe: gif decode failed for %s: %v", path, err)
			meta.degrade("duration")
			return 0
		}
		total := 0
		for _, delay := range g.Delay {
			if delay <= 0 {
				delay = 10 // GIF convention: treat 0 as 100ms
			}
			total += delay
		}
		return time.Duration(total) * 10 * time.Millisecond

	case ".webp":
		frames, ok := countWebPFrames(path)
		if !ok || frames <= 0 {
			meta.degrade("duration")
			return 0
		}
		return time.Duration(float64(frames) / p.webpFPS * float64(time.Second))
	}
	meta.degrade("duration")
	return 0
}
