// Package store holds what the SQL-backed queue backends share: the DBTX
// abstraction over connections and transactions, transaction handling and
// the sentinel errors that driver-specific errors are mapped to.
package store
