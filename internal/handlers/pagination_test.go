package handlers

import (
	"testing"

	"smart-gallery/internal/mediatypes"
)

func TestPageTokenRoundTrip(t *testing.T) {
	t.Parallel()
	in := pageToken{
		Search:    "flux",
		Favorites: true,
		Exts:      []string{"png", "webp"},
		Prefixes:  []string{"sdxl"},
		Sort:      "asc",
		PageSize:  50,
		Offset:    150,
	}

	encoded := in.encode()
	if encoded == "" {
		t.Fatal("encode returned empty token")
	}

	out, err := decodePageToken(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Search != in.Search || out.Favorites != in.Favorites ||
		out.Sort != in.Sort || out.PageSize != in.PageSize || out.Offset != in.Offset {
		t.Errorf("round trip changed token: %+v -> %+v", in, out)
	}
	if len(out.Exts) != 2 || out.Exts[0] != "png" {
		t.Errorf("extensions lost: %v", out.Exts)
	}
	if len(out.Prefixes) != 1 || out.Prefixes[0] != "sdxl" {
		t.Errorf("prefixes lost: %v", out.Prefixes)
	}
}

func TestDecodePageTokenRejectsGarbage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%%"},
		{name: "base64 but not json", token: "bm90IGpzb24"},
		{name: "zero page size", token: pageToken{PageSize: 0, Offset: 0}.encode()},
		{name: "negative offset", token: pageToken{PageSize: 10, Offset: -1}.encode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := decodePageToken(tt.token); err == nil {
				t.Errorf("decodePageToken(%q) accepted a bad token", tt.token)
			}
		})
	}
}

func TestPageTokenQueryOptions(t *testing.T) {
	t.Parallel()
	opts := pageToken{Search: "cat", PageSize: 25, Offset: 50}.queryOptions()
	if opts.Sort != mediatypes.SortDesc {
		t.Errorf("default Sort = %q, want descending", opts.Sort)
	}
	if opts.Limit != 25 || opts.Offset != 50 {
		t.Errorf("window = (%d, %d), want (25, 50)", opts.Limit, opts.Offset)
	}

	asc := pageToken{Sort: "asc", PageSize: 1}.queryOptions()
	if asc.Sort != mediatypes.SortAsc {
		t.Errorf("Sort = %q, want ascending", asc.Sort)
	}
}
