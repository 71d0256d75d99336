// Package media implements the metadata prober and the thumbnail generator.
//
// The prober derives media type, playback duration, pixel dimensions, and
// workflow presence for a single file. It never returns an error: every
// internal failure degrades one field to its empty value and records a soft
// failure flag, so a reconciliation pass is never aborted by one corrupt
// file.
//
// The thumbnail generator produces downscaled previews into the thumbnail
// cache, keyed by the caller-supplied cache key:
//   - static images: JPEG, quality 85
//   - animated GIFs: animated GIF preserving per-frame delays and loop count
//   - WebP (static or animated): WebP via libvips, JPEG fallback
//   - video: single early frame as JPEG, quality 80, via ffmpeg
//
// Audio and unknown files have no thumbnail representation; generation for
// them (and any decode failure) yields an empty path, not an error.
package media
