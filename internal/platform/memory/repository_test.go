package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, email string) *domain.Account {
	t.Helper()
	account, err := domain.NewAccount(domain.Registration{
		FullName:        "Jane Doe",
		Email:           email,
		NationalID:      "11144477735",
		Phone:           "(11) 98888-7777",
		Password:        "Secret1",
		AcceptedTerms:   true,
		AcceptedPrivacy: true,
	}, "hash")
	require.NoError(t, err)
	return account
}

func TestAccountStore(t *testing.T) {
	ctx := context.Background()
	repo := New()
	accounts := repo.Accounts()

	account := newAccount(t, "jane@x.com")
	require.NoError(t, accounts.Create(ctx, account))

	t.Run("duplicate email is exact match", func(t *testing.T) {
		err := accounts.Create(ctx, newAccount(t, "jane@x.com"))
		assert.ErrorIs(t, err, store.ErrEmailExists)

		// Case differs, so this is a different email.
		require.NoError(t, accounts.Create(ctx, newAccount(t, "Jane@x.com")))
	})

	t.Run("lookups return copies", func(t *testing.T) {
		got, err := accounts.GetByEmail(ctx, "jane@x.com")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)

		got.FullName = "Mutated Outside"
		again, err := accounts.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", again.FullName)

		_, err = accounts.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrAccountNotFound)
		_, err = accounts.GetByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, store.ErrAccountNotFound)
	})

	t.Run("update persists on success only", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := accounts.Update(ctx, account.ID, func(a *domain.Account) error {
			a.State = domain.AccountStateEmailVerified
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := accounts.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AccountStatePendingVerification, stored.State)

		updated, err := accounts.Update(ctx, account.ID, func(a *domain.Account) error {
			return a.TransitionTo(domain.AccountStateEmailVerified)
		})
		require.NoError(t, err)
		assert.Equal(t, domain.AccountStateEmailVerified, updated.State)
	})

	t.Run("update without changes keeps the timestamp", func(t *testing.T) {
		before, err := accounts.GetByID(ctx, account.ID)
		require.NoError(t, err)

		same, err := accounts.Update(ctx, account.ID, func(*domain.Account) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, before.UpdatedAt, same.UpdatedAt)
	})

	t.Run("transaction binding is a no-op", func(t *testing.T) {
		assert.Same(t, accounts, accounts.WithTx(nil))
		assert.Equal(t, repo.Codes(), repo.Codes().WithTx(nil))
	})

	t.Run("update rejects email changes", func(t *testing.T) {
		_, err := accounts.Update(ctx, account.ID, func(a *domain.Account) error {
			a.Email = "other@x.com"
			return nil
		})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)

		_, err = accounts.Update(ctx, uuid.New(), func(*domain.Account) error { return nil })
		assert.ErrorIs(t, err, store.ErrAccountNotFound)
	})

	t.Run("delete frees the email", func(t *testing.T) {
		require.NoError(t, accounts.Delete(ctx, account.ID))
		assert.ErrorIs(t, accounts.Delete(ctx, account.ID), store.ErrAccountNotFound)
		require.NoError(t, accounts.Create(ctx, newAccount(t, "jane@x.com")))
	})
}

func TestCodeStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	codes := New(WithClock(clock)).Codes()
	issue := func(value string) *domain.VerificationCode {
		return &domain.VerificationCode{Email: "jane@x.com", Code: value, IssuedAt: clock()}
	}

	t.Run("overwrite keeps only the latest code", func(t *testing.T) {
		require.NoError(t, codes.Put(ctx, issue("111111"), 0))
		require.NoError(t, codes.Put(ctx, issue("222222"), 0))

		got, err := codes.Get(ctx, "jane@x.com")
		require.NoError(t, err)
		assert.Equal(t, "222222", got.Code)

		assert.ErrorIs(t, codes.Redeem(ctx, "jane@x.com", "111111"), store.ErrMismatch)
	})

	t.Run("redeem is one-time", func(t *testing.T) {
		require.NoError(t, codes.Redeem(ctx, "jane@x.com", "222222"))
		assert.ErrorIs(t, codes.Redeem(ctx, "jane@x.com", "222222"), store.ErrCodeNotFound)
		_, err := codes.Get(ctx, "jane@x.com")
		assert.ErrorIs(t, err, store.ErrCodeNotFound)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		require.NoError(t, codes.Put(ctx, issue("333333"), 0))
		advance(365 * 24 * time.Hour)
		_, err := codes.Get(ctx, "jane@x.com")
		require.NoError(t, err)
	})

	t.Run("positive ttl expires", func(t *testing.T) {
		require.NoError(t, codes.Put(ctx, issue("444444"), time.Minute))
		advance(30 * time.Second)
		_, err := codes.Get(ctx, "jane@x.com")
		require.NoError(t, err)

		advance(time.Minute)
		_, err = codes.Get(ctx, "jane@x.com")
		assert.ErrorIs(t, err, store.ErrCodeNotFound)
		assert.ErrorIs(t, codes.Redeem(ctx, "jane@x.com", "444444"), store.ErrCodeNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, codes.Put(ctx, issue("555555"), 0))
		require.NoError(t, codes.Delete(ctx, "jane@x.com"))
		require.NoError(t, codes.Delete(ctx, "jane@x.com"))
	})
}

func TestCodeStore_ConcurrentRedeemSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	codes := New().Codes()
	require.NoError(t, codes.Put(ctx, &domain.VerificationCode{
		Email: "jane@x.com", Code: "123456", IssuedAt: time.Now(),
	}, 0))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if codes.Redeem(ctx, "jane@x.com", "123456") == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestSubscriptionStore(t *testing.T) {
	ctx := context.Background()
	repo := New()
	account := newAccount(t, "jane@x.com")
	require.NoError(t, repo.Accounts().Create(ctx, account))
	subs := repo.Subscriptions()

	orphan, err := domain.NewSubscription(uuid.New(), "pro", domain.PaymentMethodPix)
	require.NoError(t, err)
	assert.ErrorIs(t, subs.Create(ctx, orphan), store.ErrInvalidEntity)

	first, err := domain.NewSubscription(account.ID, "basic", domain.PaymentMethodPix)
	require.NoError(t, err)
	second, err := domain.NewSubscription(account.ID, "pro", domain.PaymentMethodCreditCard)
	require.NoError(t, err)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, subs.Create(ctx, second))
	require.NoError(t, subs.Create(ctx, first))

	list, err := subs.ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	completed, err := subs.Update(ctx, first.ID, func(s *domain.Subscription) error {
		return s.Complete(time.Now())
	})
	require.NoError(t, err)
	assert.True(t, completed.Active())

	_, err = subs.Update(ctx, first.ID, func(s *domain.Subscription) error {
		return s.Complete(time.Now())
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	stored, err := subs.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ActivatedAt)

	require.NoError(t, subs.Delete(ctx, second.ID))
	_, err = subs.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, store.ErrSubscriptionNotFound)
	assert.ErrorIs(t, subs.Delete(ctx, second.ID), store.ErrSubscriptionNotFound)
}

func TestCreditStore(t *testing.T) {
	ctx := context.Background()
	repo := New()
	account := newAccount(t, "jane@x.com")
	require.NoError(t, repo.Accounts().Create(ctx, account))
	credits := repo.Credits()

	_, err := credits.Get(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrCreditsNotFound)

	_, err = credits.Update(ctx, uuid.New(), func(b *domain.CreditBalance) error {
		return b.Add(domain.Tranches{Current: 1})
	})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	balance, err := credits.Update(ctx, account.ID, func(b *domain.CreditBalance) error {
		return b.Add(domain.Tranches{Current: 10, Monthly: 5, Bonus: 3})
	})
	require.NoError(t, err)
	assert.Equal(t, 18, balance.Total())

	_, err = credits.Update(ctx, account.ID, func(b *domain.CreditBalance) error {
		return b.Deduct(19)
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	stored, err := credits.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Tranches{Current: 10, Monthly: 5, Bonus: 3}, stored.Tranches)

	_, err = credits.Update(ctx, account.ID, func(b *domain.CreditBalance) error {
		b.Bonus = -1
		return nil
	})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestCreditStore_ConcurrentConsumeNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	repo := New()
	account := newAccount(t, "jane@x.com")
	require.NoError(t, repo.Accounts().Create(ctx, account))
	credits := repo.Credits()

	_, err := credits.Update(ctx, account.ID, func(b *domain.CreditBalance) error {
		return b.Add(domain.Tranches{Current: 20, Monthly: 20, Bonus: 10})
	})
	require.NoError(t, err)

	var succeeded, failed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := credits.Update(ctx, account.ID, func(b *domain.CreditBalance) error {
				return b.Deduct(1)
			})
			if err == nil {
				succeeded.Add(1)
			} else if errors.Is(err, domain.ErrInsufficientCredits) {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), succeeded.Load())
	assert.Equal(t, int32(70), failed.Load())

	final, err := credits.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Tranches{}, final.Tranches)
	assert.Zero(t, repo.locks.size(), "locks are released once uncontended")
}

func TestRepositoryReset(t *testing.T) {
	ctx := context.Background()
	repo := New()
	account := newAccount(t, "jane@x.com")
	require.NoError(t, repo.Accounts().Create(ctx, account))
	require.NoError(t, repo.Codes().Put(ctx, &domain.VerificationCode{Email: "jane@x.com", Code: "123456"}, 0))

	repo.Reset()

	_, err := repo.Accounts().GetByID(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
	_, err = repo.Codes().Get(ctx, "jane@x.com")
	assert.ErrorIs(t, err, store.ErrCodeNotFound)
	require.NoError(t, repo.Accounts().Create(ctx, account))
}

func TestKeyedMutex_SerializesPerKeyOnly(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-acquired
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 5*time.Millisecond)
}
