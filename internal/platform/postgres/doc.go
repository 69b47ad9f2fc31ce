// Package postgres provides PostgreSQL implementations of the account, code,
// subscription and credit stores defined in internal/store, plus the embedded
// goose migrations that create their schema.
//
// Stores take a store.DBTX. A store built on the *sql.DB runs each
// read-modify-write in its own transaction; a store bound with WithTx runs its
// statements on the caller's transaction, so a service can lock an account,
// insert its subscription and update its credits on one connection and commit
// them together. Target rows are locked with SELECT ... FOR NO KEY UPDATE.
package postgres
