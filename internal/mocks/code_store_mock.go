package mocks

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// TestifyMockCodeStore is a mock of store.CodeStore interface for use with testify/mock
type TestifyMockCodeStore struct {
	mock.Mock
}

var _ store.CodeStore = (*TestifyMockCodeStore)(nil)

// Put is a mock implementation of store.CodeStore.Put
func (m *TestifyMockCodeStore) Put(ctx context.Context, code *domain.VerificationCode, ttl time.Duration) error {
	args := m.Called(ctx, code, ttl)
	return args.Error(0)
}

// Get is a mock implementation of store.CodeStore.Get
func (m *TestifyMockCodeStore) Get(ctx context.Context, email string) (*domain.VerificationCode, error) {
	args := m.Called(ctx, email)
	if code, ok := args.Get(0).(*domain.VerificationCode); ok {
		return code, args.Error(1)
	}
	return nil, args.Error(1)
}

// Redeem is a mock implementation of store.CodeStore.Redeem
func (m *TestifyMockCodeStore) Redeem(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

// Delete is a mock implementation of store.CodeStore.Delete
func (m *TestifyMockCodeStore) Delete(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// WithTx returns the mock itself so expectations still apply inside units of work.
func (m *TestifyMockCodeStore) WithTx(*sql.Tx) store.CodeStore {
	return m
}
