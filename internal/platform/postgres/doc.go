// Package postgres stores queue snapshots in PostgreSQL through the pgx
// database/sql driver. It owns the schema migrations and maps driver errors
// onto the sentinel errors of the store package.
package postgres
