package memory

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
)

type codeEntry struct {
	code      domain.VerificationCode
	expiresAt time.Time // zero means never
}

func (e codeEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// CodeStore implements store.CodeStore on a Repository.
type CodeStore struct {
	r *Repository
}

var _ store.CodeStore = (*CodeStore)(nil)

// WithTx implements store.CodeStore.WithTx.
func (s *CodeStore) WithTx(*sql.Tx) store.CodeStore {
	return s
}

// Put implements store.CodeStore.Put.
func (s *CodeStore) Put(_ context.Context, code *domain.VerificationCode, ttl time.Duration) error {
	entry := codeEntry{code: *code}
	if ttl > 0 {
		entry.expiresAt = code.IssuedAt.Add(ttl)
	}

	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.codes[code.Email] = entry
	return nil
}

// Get implements store.CodeStore.Get.
func (s *CodeStore) Get(_ context.Context, email string) (*domain.VerificationCode, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	entry, ok := s.r.codes[email]
	if !ok || !entry.live(s.r.now()) {
		return nil, store.ErrCodeNotFound
	}
	code := entry.code
	return &code, nil
}

// Redeem implements store.CodeStore.Redeem.
func (s *CodeStore) Redeem(_ context.Context, email, code string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	entry, ok := s.r.codes[email]
	if !ok {
		return store.ErrCodeNotFound
	}
	if !entry.live(s.r.now()) {
		delete(s.r.codes, email)
		return store.ErrCodeNotFound
	}
	if entry.code.Code != code {
		return store.ErrMismatch
	}

	delete(s.r.codes, email)
	return nil
}

// Delete implements store.CodeStore.Delete.
func (s *CodeStore) Delete(_ context.Context, email string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	delete(s.r.codes, email)
	return nil
}
