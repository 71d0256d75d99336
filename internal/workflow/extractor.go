// Package workflow extracts embedded generation-workflow payloads from
// media files. Generators embed the workflow graph as JSON in PNG text
// chunks, EXIF blobs, or video container tags; batch pipelines also drop
// sidecar JSON files next to the inputs. Extraction is strictly
// best-effort: every failure means "not found", never an error.
package workflow

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"smart-gallery/internal/logging"
	"smart-gallery/internal/mediatypes"
)

// SidecarFolderName is the directory under the generator's input root where
// successful runs log their workflow JSON.
const SidecarFolderName = "workflow_logs_success"

// maxScanBytes caps how much of a file the raw byte scan will read.
const maxScanBytes = 32 << 20

// Extractor locates workflow payloads for media files.
type Extractor struct {
	ffprobePath string
	sidecarDir  string
}

// NewExtractor creates an Extractor. ffprobePath may be empty, disabling
// video tag extraction. sidecarDir may be empty, disabling sidecar lookup.
func NewExtractor(ffprobePath, sidecarDir string) *Extractor {
	return &Extractor{ffprobePath: ffprobePath, sidecarDir: sidecarDir}
}

// Extract returns the workflow JSON embedded in or associated with path.
// The second return is false when no workflow was found anywhere.
func (e *Extractor) Extract(path string) (string, bool) {
	if mediatypes.ClassifyPath(path) == mediatypes.TypeVideo {
		if wf, ok := e.fromVideoTags(path); ok {
			return wf, true
		}
	} else {
		if wf, ok := fromPNGText(path); ok {
			return wf, true
		}
	}

	if wf, ok := fromRawBytes(path); ok {
		return wf, true
	}

	return e.fromSidecar(path)
}

// validate parses a candidate payload and returns the canonical workflow
// JSON. Payloads may wrap the graph under "workflow" or "prompt" keys; a
// real graph always carries a "nodes" array.
func validate(candidate string) (string, bool) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return "", false
	}

	graph := data
	for _, key := range []string{"workflow", "prompt"} {
		if raw, ok := data[key]; ok {
			// A wrapper key claims the payload; if its value is not an
			// object the candidate is malformed, not a bare graph.
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(raw, &inner); err != nil {
				return "", false
			}
			graph = inner
			break
		}
	}

	if _, ok := graph["nodes"]; !ok {
		return "", false
	}

	out, err := json.Marshal(graph)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// fromPNGText walks PNG text chunks looking for workflow/prompt keywords.
func fromPNGText(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	var sig [8]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil || !bytes.Equal(sig[:], []byte("\x89PNG\r\n\x1a\n")) {
		return "", false
	}

	var header [8]byte
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			return "", false
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkType := string(header[4:8])

		if chunkType == "IEND" || length > maxScanBytes {
			return "", false
		}

		if chunkType != "tEXt" && chunkType != "iTXt" {
			// Skip data + CRC
			if _, err := f.Seek(int64(length)+4, 1); err != nil {
				return "", false
			}
			continue
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(f, data); err != nil {
			return "", false
		}
		if _, err := f.Seek(4, 1); err != nil { // CRC
			return "", false
		}

		keyword, text, found := bytes.Cut(data, []byte{0})
		if !found {
			continue
		}
		if chunkType == "iTXt" {
			// keyword \0 compression-flag compression-method \0 lang \0
			// translated-keyword \0 text; compressed payloads are skipped.
			if len(text) < 2 || text[0] != 0 {
				continue
			}
			rest := text[2:]
			if i := bytes.IndexByte(rest, 0); i >= 0 {
				rest = rest[i+1:]
			}
			if i := bytes.IndexByte(rest, 0); i >= 0 {
				rest = rest[i+1:]
			}
			text = rest
		}

		switch string(keyword) {
		case "workflow", "prompt":
			if wf, ok := validate(string(text)); ok {
				return wf, true
			}
		}
	}
}

// fromRawBytes scans the whole file for the first balanced {...} span that
// validates as a workflow. Matches the behavior of scanning EXIF blobs and
// appended metadata without knowing the container format.
func fromRawBytes(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxScanBytes {
		return "", false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	candidate, ok := scanForJSONObject(content)
	if !ok {
		return "", false
	}
	return validate(candidate)
}

// scanForJSONObject finds the first balanced brace span in b. Braces inside
// JSON strings are not special-cased; a payload containing them simply
// fails validation and is skipped by the caller.
func scanForJSONObject(b []byte) (string, bool) {
	start := bytes.IndexByte(b, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(b); i++ {
		switch b[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := b[start : i+1]
				if json.Valid(candidate) {
					return string(candidate), true
				}
				return "", false
			}
		}
	}
	return "", false
}

// fromVideoTags asks ffprobe for container format tags and validates any
// tag value that looks like JSON.
func (e *Extractor) fromVideoTags(path string) (string, bool) {
	if e.ffprobePath == "" {
		return "", false
	}

	cmd := exec.Command(e.ffprobePath, "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		logging.Debug("workflow: ffprobe failed for %s: %v", path, err)
		return "", false
	}

	var probe struct {
		Format struct {
			Tags map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return "", false
	}

	for _, value := range probe.Format.Tags {
		if strings.HasPrefix(strings.TrimSpace(value), "{") {
			if wf, ok := validate(value); ok {
				return wf, true
			}
		}
	}
	return "", false
}

// fromSidecar looks for the newest sidecar JSON logged for this file's
// basename.
func (e *Extractor) fromSidecar(path string) (string, bool) {
	if e.sidecarDir == "" {
		return "", false
	}

	matches, err := filepath.Glob(filepath.Join(e.sidecarDir, filepath.Base(path)+"*.json"))
	if err != nil || len(matches) == 0 {
		return "", false
	}

	newest, newestMod := "", int64(-1)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return "", false
	}

	content, err := os.ReadFile(newest)
	if err != nil {
		return "", false
	}
	return validate(string(content))
}
