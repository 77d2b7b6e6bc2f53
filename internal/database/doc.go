// Package database provides the PostgreSQL connection pool, schema
// migrations, and the repositories backing questions and votes.
package database
