// Package domain contains the core business entities, value objects, and
// domain logic of the account lifecycle: identity validation, the account
// state machine, verification codes, subscriptions and credit balances.
// It is independent of any storage or delivery mechanism.
package domain
