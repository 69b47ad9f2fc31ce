// Package api exposes the account lifecycle pipeline and the credit ledger over
// HTTP. Handlers decode and validate requests, call the services, and map
// domain error kinds to status codes and safe messages.
package api
