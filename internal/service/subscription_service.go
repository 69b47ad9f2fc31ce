package service

import (
	"context"
	"database/sql"
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

// Activation reports the outcome of a subscription request. A subscription
// record can exist without being active: pix and boleto payments stay pending
// until CompletePayment is called.
type Activation struct {
	Subscription        *domain.Subscription
	Plan                domain.Plan
	AccountState        domain.AccountState
	SubscriptionCreated bool
	SubscriptionActive  bool
}

// SubscriptionService turns verified accounts into subscribers.
type SubscriptionService interface {
	// Activate creates a subscription for an EMAIL_VERIFIED account. With a
	// completed payment it grants the plan's credits and moves the account to
	// SUBSCRIBED; otherwise the subscription is left pending.
	// Returns domain.ErrAccountNotFound, domain.ErrUnverifiedEmail,
	// domain.ErrAlreadyActive, domain.ErrUnknownPlan or
	// domain.ErrInvalidPaymentMethod.
	Activate(ctx context.Context, accountID uuid.UUID, planID string, method domain.PaymentMethod) (*Activation, error)

	// CompletePayment records the external payment signal for a pending
	// subscription. Credits are granted exactly once; a second call returns
	// domain.ErrAlreadyActive.
	CompletePayment(ctx context.Context, subscriptionID uuid.UUID) (*Activation, error)

	// ListByAccount returns the account's subscriptions, oldest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Subscription, error)
}

type subscriptionService struct {
	accounts store.AccountStore
	subs     store.SubscriptionStore
	tx       store.Transactor
	ledger   CreditLedger
	plans    domain.PlanCatalog
	now      func() time.Time
	metrics  *metrics.Metrics
	events   publisher
	logger   *slog.Logger
}

var _ SubscriptionService = (*subscriptionService)(nil)

// NewSubscriptionService creates a SubscriptionService over the plans catalog.
// Activation and payment completion each run as one unit of work on tx; a
// nil tx means the stores need no shared transaction.
func NewSubscriptionService(
	accounts store.AccountStore,
	subs store.SubscriptionStore,
	tx store.Transactor,
	ledger CreditLedger,
	plans domain.PlanCatalog,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	log *slog.Logger,
) SubscriptionService {
	if log == nil {
		log = slog.Default()
	}
	if tx == nil {
		tx = store.NoTx{}
	}
	m = orNewMetrics(m)
	log = log.With("component", "subscription_service")
	return &subscriptionService{
		accounts: accounts,
		subs:     subs,
		tx:       tx,
		ledger:   ledger,
		plans:    plans,
		now:      time.Now,
		metrics:  m,
		events:   publisher{emitter: emitter, metrics: m, logger: log},
		logger:   log,
	}
}

func (s *subscriptionService) Activate(
	ctx context.Context,
	accountID uuid.UUID,
	planID string,
	method domain.PaymentMethod,
) (_ *Activation, err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "SubscriptionService.Activate",
		attribute.String("account.id", accountID.String()),
		attribute.String("plan.id", planID),
		attribute.String("payment.method", string(method)))
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveOperation("activate", start)
	}()
	log := logger.FromContextOrDefault(ctx, s.logger)

	plan, err := s.plans.Lookup(planID)
	if err != nil {
		return nil, err
	}
	if _, err := method.InitialStatus(); err != nil {
		return nil, err
	}

	var (
		sub     *domain.Subscription
		account *domain.Account
	)
	// Lock order: account, then subscription, then credits.
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		subs := s.subs.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		var err error
		account, err = s.accounts.WithTx(tx).Update(ctx, accountID, func(a *domain.Account) error {
			switch a.State {
			case domain.AccountStatePendingVerification:
				return domain.ErrUnverifiedEmail
			case domain.AccountStateSubscribed:
				return domain.ErrAlreadyActive
			}

			created, err := domain.NewSubscription(a.ID, plan.ID, method)
			if err != nil {
				return err
			}
			if err := subs.Create(ctx, created); err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}

			if created.Active() {
				if _, err := ledger.Grant(ctx, a.ID, plan.Grant); err != nil {
					// A rolled back transaction drops the row by itself.
					if tx == nil {
						s.discardSubscription(ctx, created.ID)
					}
					return fmt.Errorf("failed to grant plan credits: %w", err)
				}
				if err := a.TransitionTo(domain.AccountStateSubscribed); err != nil {
					return err
				}
			}
			sub = created
			return nil
		})
		return err
	})
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "subscription activation failed", err,
			"account_id", accountID,
			"plan_id", planID)
		return nil, err
	}

	s.metrics.Subscriptions.WithLabelValues(plan.ID, string(sub.PaymentStatus)).Inc()
	log.Info("subscription created",
		"account_id", accountID,
		"subscription_id", sub.ID,
		"plan_id", plan.ID,
		"payment_status", sub.PaymentStatus)

	payload := subscriptionPayload(sub)
	s.events.publish(ctx, events.TypeSubscriptionCreated, accountID, payload)
	if sub.Active() {
		s.events.publish(ctx, events.TypeSubscriptionActivated, accountID, payload)
	}

	return &Activation{
		Subscription:        sub,
		Plan:                plan,
		AccountState:        account.State,
		SubscriptionCreated: true,
		SubscriptionActive:  sub.Active(),
	}, nil
}

func (s *subscriptionService) CompletePayment(
	ctx context.Context,
	subscriptionID uuid.UUID,
) (_ *Activation, err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "SubscriptionService.CompletePayment",
		attribute.String("subscription.id", subscriptionID.String()))
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveOperation("complete_payment", start)
	}()
	log := logger.FromContextOrDefault(ctx, s.logger)

	pending, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	plan, err := s.plans.Lookup(pending.PlanID)
	if err != nil {
		return nil, err
	}

	var (
		sub     *domain.Subscription
		account *domain.Account
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		subs := s.subs.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		var err error
		account, err = s.accounts.WithTx(tx).Update(ctx, pending.AccountID, func(a *domain.Account) error {
			completed, err := subs.Update(ctx, subscriptionID, func(sub *domain.Subscription) error {
				if err := sub.Complete(s.now()); err != nil {
					return err
				}
				// Granting inside the subscription lock means a failed grant
				// leaves the subscription pending.
				if _, err := ledger.Grant(ctx, a.ID, plan.Grant); err != nil {
					return fmt.Errorf("failed to grant plan credits: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if a.State == domain.AccountStateEmailVerified {
				if err := a.TransitionTo(domain.AccountStateSubscribed); err != nil {
					return err
				}
			}
			sub = completed
			return nil
		})
		return err
	})
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "payment completion failed", err, "subscription_id", subscriptionID)
		return nil, err
	}

	s.metrics.Subscriptions.WithLabelValues(plan.ID, string(sub.PaymentStatus)).Inc()
	log.Info("subscription payment completed",
		"account_id", sub.AccountID,
		"subscription_id", sub.ID)
	s.events.publish(ctx, events.TypeSubscriptionActivated, sub.AccountID, subscriptionPayload(sub))

	return &Activation{
		Subscription:        sub,
		Plan:                plan,
		AccountState:        account.State,
		SubscriptionCreated: true,
		SubscriptionActive:  sub.Active(),
	}, nil
}

func (s *subscriptionService) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Subscription, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, translateStoreError(err)
	}
	subs, err := s.subs.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *subscriptionService) discardSubscription(ctx context.Context, id uuid.UUID) {
	if err := s.subs.Delete(ctx, id); err != nil && !store.IsNotFoundError(err) {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to discard subscription after failed grant",
			"error", err,
			"subscription_id", id)
	}
}

func subscriptionPayload(sub *domain.Subscription) events.SubscriptionPayload {
	return events.SubscriptionPayload{
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		PaymentMethod:  string(sub.PaymentMethod),
		PaymentStatus:  string(sub.PaymentStatus),
	}
}
