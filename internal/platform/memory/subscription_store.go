package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

// SubscriptionStore implements store.SubscriptionStore on a Repository.
type SubscriptionStore struct {
	r *Repository
}

var _ store.SubscriptionStore = (*SubscriptionStore)(nil)

// WithTx implements store.SubscriptionStore.WithTx.
func (s *SubscriptionStore) WithTx(*sql.Tx) store.SubscriptionStore {
	return s
}

func cloneSubscription(sub domain.Subscription) *domain.Subscription {
	if sub.ActivatedAt != nil {
		at := *sub.ActivatedAt
		sub.ActivatedAt = &at
	}
	return &sub
}

// Create implements store.SubscriptionStore.Create.
func (s *SubscriptionStore) Create(_ context.Context, sub *domain.Subscription) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.accounts[sub.AccountID]; !ok {
		return fmt.Errorf("%w: account %s does not exist", store.ErrInvalidEntity, sub.AccountID)
	}
	if _, ok := s.r.subs[sub.ID]; ok {
		return fmt.Errorf("%w: subscription %s", store.ErrDuplicate, sub.ID)
	}

	s.r.subs[sub.ID] = *cloneSubscription(*sub)
	return nil
}

// GetByID implements store.SubscriptionStore.GetByID.
func (s *SubscriptionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	sub, ok := s.r.subs[id]
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}
	return cloneSubscription(sub), nil
}

// ListByAccount implements store.SubscriptionStore.ListByAccount.
func (s *SubscriptionStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*domain.Subscription, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	var subs []*domain.Subscription
	for _, sub := range s.r.subs {
		if sub.AccountID == accountID {
			subs = append(subs, cloneSubscription(sub))
		}
	}

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID.String() < subs[j].ID.String()
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}

// Update implements store.SubscriptionStore.Update.
func (s *SubscriptionStore) Update(
	_ context.Context,
	id uuid.UUID,
	fn store.SubscriptionMutation,
) (*domain.Subscription, error) {
	unlock := s.r.locks.Lock(subscriptionKey(id))
	defer unlock()

	s.r.mu.RLock()
	current, ok := s.r.subs[id]
	s.r.mu.RUnlock()
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}

	working := cloneSubscription(current)
	if err := fn(working); err != nil {
		return nil, err
	}
	if working.ID != current.ID || working.AccountID != current.AccountID {
		return nil, fmt.Errorf("%w: subscription id and owner are immutable", store.ErrInvalidEntity)
	}

	s.r.mu.Lock()
	s.r.subs[id] = *cloneSubscription(*working)
	s.r.mu.Unlock()

	return working, nil
}

// Delete implements store.SubscriptionStore.Delete.
func (s *SubscriptionStore) Delete(_ context.Context, id uuid.UUID) error {
	unlock := s.r.locks.Lock(subscriptionKey(id))
	defer unlock()

	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.subs[id]; !ok {
		return store.ErrSubscriptionNotFound
	}
	delete(s.r.subs, id)
	return nil
}
