// Package directory provides account and profile lookups behind the
// authcore boundary interfaces: a pgx-backed implementation for production
// and an in-memory one for tests and development.
package directory
