// Package domain contains the core types, events, errors, and repository
// interfaces of the liveboard. It has no dependencies on transport or storage
// packages; those implement the interfaces defined here.
package domain
