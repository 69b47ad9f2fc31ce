package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

// CreditStore implements store.CreditStore on a Repository.
type CreditStore struct {
	r *Repository
}

var _ store.CreditStore = (*CreditStore)(nil)

// WithTx implements store.CreditStore.WithTx.
func (s *CreditStore) WithTx(*sql.Tx) store.CreditStore {
	return s
}

// Get implements store.CreditStore.Get.
func (s *CreditStore) Get(_ context.Context, accountID uuid.UUID) (*domain.CreditBalance, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	balance, ok := s.r.credits[accountID]
	if !ok {
		return nil, store.ErrCreditsNotFound
	}
	return &balance, nil
}

// Update implements store.CreditStore.Update. The check and the write happen
// under the account's credit lock, so concurrent consumers cannot both pass a
// sufficiency check against the same balance.
func (s *CreditStore) Update(
	_ context.Context,
	accountID uuid.UUID,
	fn store.CreditMutation,
) (*domain.CreditBalance, error) {
	unlock := s.r.locks.Lock(creditKey(accountID))
	defer unlock()

	s.r.mu.RLock()
	current, ok := s.r.credits[accountID]
	s.r.mu.RUnlock()

	if !ok {
		if !s.r.accountExists(accountID) {
			return nil, fmt.Errorf("%w: account %s does not exist", store.ErrInvalidEntity, accountID)
		}
		current = domain.CreditBalance{AccountID: accountID}
	}

	working := current
	if err := fn(&working); err != nil {
		return nil, err
	}
	if err := working.Tranches.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	working.AccountID = accountID
	working.UpdatedAt = s.r.now().UTC()

	s.r.mu.Lock()
	s.r.credits[accountID] = working
	s.r.mu.Unlock()

	return &working, nil
}
