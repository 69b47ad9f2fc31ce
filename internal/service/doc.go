// Package service contains the account lifecycle use cases: registration,
// email verification, subscription activation and the credit ledger. It
// orchestrates domain objects and the repositories defined in internal/store.
//
// Key components:
//
// 1. VerificationService issues, redeems and resends one-time email codes and
// hands them to a notify.NotificationSender.
//
// 2. AccountService registers accounts, verifies their email and looks them
// up. A registration whose code cannot be issued is rolled back.
//
// 3. CreditLedger grants and consumes multi-tranche credit balances. Every
// read-modify-write runs under the account's credit lock in the store.
//
// 4. SubscriptionService activates plans, branching on the payment method,
// and completes pending payments when the external payment signal arrives.
//
// Services return the sentinel errors of internal/domain. Store errors are
// translated at this layer so the API never depends on internal/store.
// Lifecycle events are emitted after a successful operation; a failing event
// handler is logged and counted but never fails the operation.
package service
