package media

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"smart-gallery/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library. Call once at startup; WebP
// thumbnails (static and animated) go through vips because the standard
// library cannot encode WebP at all.
func InitVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level <= vips.LogLevelError:
			logging.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vips.LogLevelWarning)

	// Conservative memory settings: thumbnails are small and generated
	// inline with reconciliation.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips cleans up libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
	}
}

// IsVipsAvailable returns whether libvips is initialized and available.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// webpThumbnailBytes renders a WebP thumbnail with vips, loading every page
// so animated sources stay animated. maxWidth bounds the output width;
// aspect ratio and per-frame timing are preserved by vips.
func webpThumbnailBytes(path string, maxWidth int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	params := vips.NewImportParams()
	params.NumPages.Set(-1)

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, fmt.Errorf("vips load failed: %w", err)
	}
	defer ref.Close()

	if ref.Width() > maxWidth {
		scale := float64(maxWidth) / float64(ref.Width())
		pageHeight := ref.PageHeight()
		if err := ref.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
		if pageHeight > 0 {
			// Keep the frame boundary metadata in step with the resize,
			// otherwise an animated export renders as one tall strip.
			if err := ref.SetPageHeight(int(float64(pageHeight) * scale)); err != nil {
				return nil, fmt.Errorf("vips page height update failed: %w", err)
			}
		}
	}

	out, _, err := ref.ExportWebp(&vips.WebpExportParams{
		Quality:       85,
		StripMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}
