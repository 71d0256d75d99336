package workflow

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type textChunk struct {
	keyword string
	text    string
}

// buildPNG assembles a minimal PNG byte stream: signature, a 1x1 IHDR,
// the given tEXt chunks, and IEND.
func buildPNG(chunks []textChunk) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	writeChunk := func(chunkType string, data []byte) {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(data)))
		buf.Write(length[:])
		buf.WriteString(chunkType)
		buf.Write(data)
		crc := crc32.NewIEEE()
		crc.Write([]byte(chunkType))
		crc.Write(data)
		var sum [4]byte
		binary.BigEndian.PutUint32(sum[:], crc.Sum32())
		buf.Write(sum[:])
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 1)
	binary.BigEndian.PutUint32(ihdr[4:8], 1)
	ihdr[8] = 8 // bit depth
	writeChunk("IHDR", ihdr)

	for _, c := range chunks {
		data := append([]byte(c.keyword), 0)
		data = append(data, []byte(c.text)...)
		writeChunk("tEXt", data)
	}

	writeChunk("IEND", nil)
	return buf.Bytes()
}

func TestExtractFromPNGTextChunk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "render.png")
	png := buildPNG([]textChunk{
		{keyword: "Software", text: "generator 1.0"},
		{keyword: "workflow", text: `{"nodes":[{"id":7}]}`},
	})
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor("", "")
	wf, ok := e.Extract(path)
	if !ok {
		t.Fatal("Extract found no workflow in png text chunk")
	}
	if !strings.Contains(wf, `"nodes"`) || !strings.Contains(wf, `"id":7`) {
		t.Errorf("workflow = %s, want the embedded graph", wf)
	}
}

func TestExtractFromRawBytes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "render.jpg")
	content := append([]byte("\xff\xd8 exif padding "), []byte(`{"prompt":{"nodes":["a"]}} trailer`)...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor("", "")
	wf, ok := e.Extract(path)
	if !ok {
		t.Fatal("Extract found no workflow in raw bytes")
	}
	if !strings.Contains(wf, `"nodes"`) {
		t.Errorf("workflow = %s, want unwrapped graph with nodes", wf)
	}
	if strings.Contains(wf, "prompt") {
		t.Errorf("workflow = %s, wrapper key should be stripped", wf)
	}
}

func TestExtractFromSidecarPicksNewest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sidecarDir := filepath.Join(dir, SidecarFolderName)
	if err := os.Mkdir(sidecarDir, 0o755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "clip.webm")
	if err := os.WriteFile(path, []byte("no metadata here"), 0o644); err != nil {
		t.Fatal(err)
	}

	older := filepath.Join(sidecarDir, "clip.webm_0001.json")
	newer := filepath.Join(sidecarDir, "clip.webm_0002.json")
	if err := os.WriteFile(older, []byte(`{"nodes":["old"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte(`{"nodes":["new"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(newer, now, now); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor("", sidecarDir)
	wf, ok := e.Extract(path)
	if !ok {
		t.Fatal("Extract found no sidecar workflow")
	}
	if !strings.Contains(wf, "new") {
		t.Errorf("workflow = %s, want contents of the newest sidecar", wf)
	}
}

func TestExtractNotFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.png")
	if err := os.WriteFile(path, buildPNG(nil), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor("", "")
	if wf, ok := e.Extract(path); ok {
		t.Errorf("Extract = (%s, true), want not found", wf)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{name: "bare graph", in: `{"nodes":[]}`, ok: true},
		{name: "wrapped under workflow", in: `{"workflow":{"nodes":[]}}`, ok: true},
		{name: "wrapped under prompt", in: `{"prompt":{"nodes":[]}}`, ok: true},
		{name: "missing nodes", in: `{"steps":[]}`, ok: false},
		{name: "wrapper without nodes", in: `{"workflow":{"steps":[]}}`, ok: false},
		{name: "wrapper holds string", in: `{"workflow":"nope","nodes":[]}`, ok: false},
		{name: "wrapper holds array", in: `{"prompt":[1,2],"nodes":[]}`, ok: false},
		{name: "not json", in: `nodes`, ok: false},
		{name: "empty", in: ``, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, ok := validate(tt.in)
			if ok != tt.ok {
				t.Fatalf("validate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !strings.Contains(out, `"nodes"`) {
				t.Errorf("validate(%q) = %s, want canonical graph", tt.in, out)
			}
		})
	}
}

func TestScanForJSONObject(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`, ok: true},
		{name: "surrounded by noise", in: `xx{"a":{"b":2}}yy`, want: `{"a":{"b":2}}`, ok: true},
		{name: "unbalanced", in: `{"a":1`, ok: false},
		{name: "no brace", in: `plain text`, ok: false},
		{name: "invalid json in braces", in: `{not json}`, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := scanForJSONObject([]byte(tt.in))
			if ok != tt.ok || got != tt.want {
				t.Errorf("scanForJSONObject(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
