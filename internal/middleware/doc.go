// Package middleware provides HTTP middleware for the gallery server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Response compression (gzip) for the JSON API
//   - Prometheus request metrics
//
// ClientIP resolves the caller's address through reverse-proxy headers
// and is shared with the deletion permission checks.
package middleware
