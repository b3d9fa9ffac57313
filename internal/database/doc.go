// Package database provides the PostgreSQL connection pool of the gateway.
//
// The pool backs the transaction journal. Migrate creates the schema on
// startup; every statement is idempotent so it is safe to run on each boot.
package database
