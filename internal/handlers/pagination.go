package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"smart-gallery/internal/database"
	"smart-gallery/internal/mediatypes"
)

// pageToken is the opaque continuation token for folder browsing. It
// carries the full query so that a follow-up page is self-contained and
// survives server restarts; the client treats it as a black box.
type pageToken struct {
	Search    string   `json:"q,omitempty"`
	Favorites bool     `json:"fav,omitempty"`
	Exts      []string `json:"ext,omitempty"`
	Prefixes  []string `json:"pfx,omitempty"`
	Sort      string   `json:"sort,omitempty"`
	PageSize  int      `json:"n"`
	Offset    int      `json:"off"`
}

func (t pageToken) encode() string {
	raw, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodePageToken(s string) (pageToken, error) {
	var t pageToken
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("malformed page token: %w", err)
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("malformed page token: %w", err)
	}
	if t.PageSize <= 0 || t.Offset < 0 {
		return t, fmt.Errorf("malformed page token: bad window")
	}
	return t, nil
}

func (t pageToken) queryOptions() database.QueryOptions {
	sort := mediatypes.SortDesc
	if t.Sort == string(mediatypes.SortAsc) {
		sort = mediatypes.SortAsc
	}
	return database.QueryOptions{
		Search:        t.Search,
		FavoritesOnly: t.Favorites,
		Extensions:    t.Exts,
		Prefixes:      t.Prefixes,
		Sort:          sort,
		Limit:         t.PageSize,
		Offset:        t.Offset,
	}
}
