// Package testdb opens migrated databases for tests. SQLite databases live in
// the test's temp dir; postgres tests are skipped without a database URL,
// except in CI where the URL is required.
package testdb
