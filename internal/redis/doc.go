// Package redis wraps the go-redis client and keeps the per-room presence
// records that survive actor suspension.
package redis
