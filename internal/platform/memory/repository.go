// Package memory provides the in-process storage backend. A Repository is an
// explicitly constructed object holding every record map; the application
// creates one at start-up and injects its stores into the services, and tests
// create their own or call Reset between runs.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
)

// Repository owns all in-memory records. The zero value is not usable; call New.
type Repository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]domain.Account
	byEmail  map[string]uuid.UUID
	codes    map[string]codeEntry
	subs     map[uuid.UUID]domain.Subscription
	credits  map[uuid.UUID]domain.CreditBalance

	// locks serializes read-modify-write per record.
	locks *keyedMutex
	now   func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for timestamps and code expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New creates an empty repository.
func New(opts ...Option) *Repository {
	r := &Repository{
		locks: newKeyedMutex(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Reset()
	return r
}

// Reset drops every record. Locks held by in-flight updates stay valid.
func (r *Repository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = make(map[uuid.UUID]domain.Account)
	r.byEmail = make(map[string]uuid.UUID)
	r.codes = make(map[string]codeEntry)
	r.subs = make(map[uuid.UUID]domain.Subscription)
	r.credits = make(map[uuid.UUID]domain.CreditBalance)
}

// Accounts returns the account store view of the repository.
func (r *Repository) Accounts() *AccountStore {
	return &AccountStore{r: r}
}

// Codes returns the verification code store view of the repository.
func (r *Repository) Codes() *CodeStore {
	return &CodeStore{r: r}
}

// Subscriptions returns the subscription store view of the repository.
func (r *Repository) Subscriptions() *SubscriptionStore {
	return &SubscriptionStore{r: r}
}

// Credits returns the credit store view of the repository.
func (r *Repository) Credits() *CreditStore {
	return &CreditStore{r: r}
}

func (r *Repository) accountExists(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.accounts[id]
	return ok
}

func accountKey(id uuid.UUID) string      { return "account:" + id.String() }
func subscriptionKey(id uuid.UUID) string { return "subscription:" + id.String() }
func creditKey(id uuid.UUID) string       { return "credit:" + id.String() }
