// Package handlers provides HTTP request handlers for the gallery API.
//
// It includes handlers for:
//   - Folder tree and paged folder browsing
//   - Media serving, downloads, and thumbnails
//   - Workflow JSON extraction and download
//   - Favorites, batch move, and deletion
//   - Folder management (create, rename, delete)
//   - Health checks and manual reconciliation
package handlers
