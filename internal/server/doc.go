// Package server exposes the HTTP surface: the REST API, the per-room
// WebSocket endpoint, image upload/serving, and observability routes.
package server
