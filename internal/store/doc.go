// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Every read-modify-write goes through an Update method taking a mutation
// callback. Implementations hold a per-record lock (a keyed mutex in memory,
// a row lock in PostgreSQL) for the whole callback, so callers never observe
// or persist an intermediate state.
package store
