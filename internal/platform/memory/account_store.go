package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

// AccountStore implements store.AccountStore on a Repository.
type AccountStore struct {
	r *Repository
}

var _ store.AccountStore = (*AccountStore)(nil)

// WithTx implements store.AccountStore.WithTx. Updates already serialize on
// the repository's per-record locks.
func (s *AccountStore) WithTx(*sql.Tx) store.AccountStore {
	return s
}

// Create implements store.AccountStore.Create.
func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.byEmail[account.Email]; ok {
		return store.ErrEmailExists
	}
	if _, ok := s.r.accounts[account.ID]; ok {
		return fmt.Errorf("%w: account %s", store.ErrDuplicate, account.ID)
	}

	s.r.accounts[account.ID] = *account
	s.r.byEmail[account.Email] = account.ID
	return nil
}

// GetByID implements store.AccountStore.GetByID.
func (s *AccountStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	account, ok := s.r.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return &account, nil
}

// GetByEmail implements store.AccountStore.GetByEmail.
func (s *AccountStore) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	id, ok := s.r.byEmail[email]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	account := s.r.accounts[id]
	return &account, nil
}

// Update implements store.AccountStore.Update.
func (s *AccountStore) Update(
	_ context.Context,
	id uuid.UUID,
	fn store.AccountMutation,
) (*domain.Account, error) {
	unlock := s.r.locks.Lock(accountKey(id))
	defer unlock()

	s.r.mu.RLock()
	current, ok := s.r.accounts[id]
	s.r.mu.RUnlock()
	if !ok {
		return nil, store.ErrAccountNotFound
	}

	working := current
	if err := fn(&working); err != nil {
		return nil, err
	}
	if working == current {
		return &working, nil
	}
	if working.ID != current.ID || working.Email != current.Email {
		return nil, fmt.Errorf("%w: account id and email are immutable", store.ErrInvalidEntity)
	}
	working.UpdatedAt = s.r.now().UTC()

	s.r.mu.Lock()
	s.r.accounts[id] = working
	s.r.mu.Unlock()

	return &working, nil
}

// Delete implements store.AccountStore.Delete.
func (s *AccountStore) Delete(_ context.Context, id uuid.UUID) error {
	unlock := s.r.locks.Lock(accountKey(id))
	defer unlock()

	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	account, ok := s.r.accounts[id]
	if !ok {
		return store.ErrAccountNotFound
	}
	delete(s.r.accounts, id)
	delete(s.r.byEmail, account.Email)
	return nil
}
