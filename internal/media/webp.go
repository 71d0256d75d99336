package media

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

// WebP container parsing. The animation flag lives in the VP8X chunk and
// animated files carry one ANMF chunk per frame. Only the chunk headers are
// inspected; frame payloads are skipped.

const vp8xAnimationFlag = 0x02

// isAnimatedWebP reports whether path is an animated WebP container.
// Unreadable or non-WebP files report false.
func isAnimatedWebP(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var header [12]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return false
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WEBP")) {
		return false
	}

	var chunk [8]byte
	if _, err := io.ReadFull(f, chunk[:]); err != nil {
		return false
	}
	if !bytes.Equal(chunk[0:4], []byte("VP8X")) {
		// Simple lossy/lossless files have no VP8X chunk and are never
		// animated.
		return false
	}

	var flags [1]byte
	if _, err := io.ReadFull(f, flags[:]); err != nil {
		return false
	}
	return flags[0]&vp8xAnimationFlag != 0
}

// countWebPFrames counts ANMF chunks in an animated WebP. A static WebP
// counts as one frame.
func countWebPFrames(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var header [12]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return 0, false
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WEBP")) {
		return 0, false
	}

	frames := 0
	var chunk [8]byte
	for {
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			break
		}
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if bytes.Equal(chunk[0:4], []byte("ANMF")) {
			frames++
		}
		// Chunks are padded to even sizes.
		skip := int64(size)
		if size%2 == 1 {
			skip++
		}
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			break
		}
	}

	if frames == 0 {
		return 1, true
	}
	return frames, true
}
