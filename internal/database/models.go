package database

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"time"

	"smart-gallery/internal/mediatypes"
)

// FileRecord is one indexed media file.
type FileRecord struct {
	ID          string               `json:"id"`
	Path        string               `json:"-"`
	ModTime     time.Time            `json:"modTime"`
	Name        string               `json:"name"`
	Type        mediatypes.MediaType `json:"type"`
	Duration    string               `json:"duration,omitempty"`
	Dimensions  string               `json:"dimensions,omitempty"`
	HasWorkflow bool                 `json:"hasWorkflow"`
	IsFavorite  bool                 `json:"isFavorite"`
}

// Identity derives the stable primary key for a file from its absolute
// path. It is a pure function of the path alone; a moved file gets a new
// identity.
func Identity(path string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(path)))
}

// ThumbKey derives the thumbnail cache key for a file. The modification
// time participates so that a changed file busts its stale thumbnail
// without explicit invalidation.
func ThumbKey(path string, modTime time.Time) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(path+strconv.FormatInt(modTime.Unix(), 10))))
}

// QueryOptions scope and order a folder query.
type QueryOptions struct {
	// Search filters by substring match on the display name.
	Search string
	// FavoritesOnly restricts to user-favorited records.
	FavoritesOnly bool
	// Extensions restricts to files with one of these extensions
	// (without the leading dot).
	Extensions []string
	// Prefixes restricts to files whose name starts with one of these
	// generator prefixes (the part before the first underscore).
	Prefixes []string
	// Sort orders by modification time; defaults to descending.
	Sort mediatypes.SortOrder
	// Limit/Offset page the result. Limit <= 0 means no limit.
	Limit  int
	Offset int
}
