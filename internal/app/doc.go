// Package app is the application layer. It is the only component that
// references multiple domain components and orchestrates all use cases:
// a storage mutation commits first, then exactly one event is broadcast.
package app
