package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/events"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/platform/metrics"
	"github.com/phrazzld/enroll-api/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// CreditLedger owns multi-tranche credit balances.
type CreditLedger interface {
	// Grant adds grant to the account's tranches, creating the balance on first use.
	// Avoiding a double grant for one renewal period is the caller's job.
	Grant(ctx context.Context, accountID uuid.UUID, grant domain.Tranches) (*domain.CreditBalance, error)

	// Sufficient reports whether the account holds at least amount credits.
	Sufficient(ctx context.Context, accountID uuid.UUID, amount int) (bool, error)

	// Consume deducts amount, draining bonus, then current, then monthly.
	// The check and the deduction are one atomic step per account.
	// Returns domain.ErrInsufficientCredits and leaves the balance unchanged
	// when amount exceeds the total.
	Consume(ctx context.Context, accountID uuid.UUID, amount int) (*domain.CreditBalance, error)

	// Balance returns the account's balance. An account that was never
	// granted credits has a zero balance.
	Balance(ctx context.Context, accountID uuid.UUID) (*domain.CreditBalance, error)

	// WithTx returns a ledger whose stores run on tx.
	WithTx(tx *sql.Tx) CreditLedger
}

type creditLedger struct {
	credits  store.CreditStore
	accounts store.AccountStore
	metrics  *metrics.Metrics
	events   publisher
	logger   *slog.Logger
}

var _ CreditLedger = (*creditLedger)(nil)

// NewCreditLedger creates a CreditLedger.
func NewCreditLedger(
	credits store.CreditStore,
	accounts store.AccountStore,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	log *slog.Logger,
) CreditLedger {
	if log == nil {
		log = slog.Default()
	}
	m = orNewMetrics(m)
	log = log.With("component", "credit_ledger")
	return &creditLedger{
		credits:  credits,
		accounts: accounts,
		metrics:  m,
		events:   publisher{emitter: emitter, metrics: m, logger: log},
		logger:   log,
	}
}

// translateCreditError maps a missing owner, reported by the store as an
// invalid entity, to domain.ErrAccountNotFound.
func translateCreditError(err error) error {
	if errors.Is(err, store.ErrInvalidEntity) {
		return domain.ErrAccountNotFound
	}
	return translateStoreError(err)
}

func (l *creditLedger) WithTx(tx *sql.Tx) CreditLedger {
	if tx == nil {
		return l
	}
	bound := *l
	bound.credits = l.credits.WithTx(tx)
	bound.accounts = l.accounts.WithTx(tx)
	return &bound
}

func (l *creditLedger) Grant(
	ctx context.Context,
	accountID uuid.UUID,
	grant domain.Tranches,
) (_ *domain.CreditBalance, err error) {
	ctx, span := startSpan(ctx, "CreditLedger.Grant",
		attribute.String("account.id", accountID.String()),
		attribute.Int("credits.total", grant.Total()))
	defer func() { endSpan(span, err) }()
	log := logger.FromContextOrDefault(ctx, l.logger)

	if err := grant.Validate(); err != nil {
		return nil, err
	}

	balance, err := l.credits.Update(ctx, accountID, func(b *domain.CreditBalance) error {
		return b.Add(grant)
	})
	if err != nil {
		err = translateCreditError(err)
		logFailure(log, "failed to grant credits", err, "account_id", accountID)
		return nil, err
	}

	l.metrics.CreditsGranted.Add(float64(grant.Total()))
	log.Info("credits granted",
		"account_id", accountID,
		"granted", grant.Total(),
		"balance", balance.Total())
	l.events.publish(ctx, events.TypeCreditsGranted, accountID, events.CreditsPayload{
		Granted:      &grant,
		BalanceTotal: balance.Total(),
	})
	return balance, nil
}

func (l *creditLedger) Sufficient(ctx context.Context, accountID uuid.UUID, amount int) (bool, error) {
	if amount < 0 {
		return false, domain.ErrInvalidAmount
	}
	balance, err := l.Balance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance.Sufficient(amount), nil
}

func (l *creditLedger) Consume(
	ctx context.Context,
	accountID uuid.UUID,
	amount int,
) (_ *domain.CreditBalance, err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "CreditLedger.Consume",
		attribute.String("account.id", accountID.String()),
		attribute.Int("credits.amount", amount))
	defer func() {
		endSpan(span, err)
		l.metrics.ObserveOperation("consume", start)
	}()
	log := logger.FromContextOrDefault(ctx, l.logger)

	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	balance, err := l.credits.Update(ctx, accountID, func(b *domain.CreditBalance) error {
		return b.Deduct(amount)
	})
	if err != nil {
		err = translateCreditError(err)
		if errors.Is(err, domain.ErrInsufficientCredits) {
			l.metrics.ConsumeRejections.Inc()
		}
		logFailure(log, "credit consumption rejected", err,
			"account_id", accountID,
			"amount", amount)
		return nil, err
	}

	l.metrics.CreditsConsumed.Add(float64(amount))
	log.Debug("credits consumed",
		"account_id", accountID,
		"amount", amount,
		"balance", balance.Total())
	l.events.publish(ctx, events.TypeCreditsConsumed, accountID, events.CreditsPayload{
		Amount:       amount,
		BalanceTotal: balance.Total(),
	})
	return balance, nil
}

func (l *creditLedger) Balance(ctx context.Context, accountID uuid.UUID) (*domain.CreditBalance, error) {
	balance, err := l.credits.Get(ctx, accountID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, store.ErrCreditsNotFound) {
		return nil, fmt.Errorf("failed to read credit balance: %w", err)
	}

	if _, err := l.accounts.GetByID(ctx, accountID); err != nil {
		return nil, translateStoreError(err)
	}
	return domain.NewCreditBalance(accountID), nil
}
