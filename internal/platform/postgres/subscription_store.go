package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/store"
)

const subscriptionColumns = `id, account_id, plan_id, payment_method, payment_status, created_at, activated_at`

// PostgresSubscriptionStore implements store.SubscriptionStore on PostgreSQL.
type PostgresSubscriptionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.SubscriptionStore = (*PostgresSubscriptionStore)(nil)

// NewPostgresSubscriptionStore creates a subscription store.
func NewPostgresSubscriptionStore(db store.DBTX, logger *slog.Logger) *PostgresSubscriptionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSubscriptionStore{
		db:     db,
		logger: logger.With(slog.String("component", "subscription_store")),
	}
}

// WithTx implements store.SubscriptionStore.WithTx.
func (s *PostgresSubscriptionStore) WithTx(tx *sql.Tx) store.SubscriptionStore {
	if tx == nil {
		return s
	}
	return &PostgresSubscriptionStore{db: tx, logger: s.logger}
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	var method, status string
	var activatedAt sql.NullTime
	if err := row.Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.PlanID,
		&method,
		&status,
		&sub.CreatedAt,
		&activatedAt,
	); err != nil {
		return nil, err
	}
	sub.PaymentMethod = domain.PaymentMethod(method)
	sub.PaymentStatus = domain.PaymentStatus(status)
	if activatedAt.Valid {
		at := activatedAt.Time
		sub.ActivatedAt = &at
	}
	return &sub, nil
}

func nullTime(t *domain.Subscription) sql.NullTime {
	if t.ActivatedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t.ActivatedAt, Valid: true}
}

// Create implements store.SubscriptionStore.Create.
func (s *PostgresSubscriptionStore) Create(ctx context.Context, sub *domain.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID,
		sub.AccountID,
		sub.PlanID,
		string(sub.PaymentMethod),
		string(sub.PaymentStatus),
		sub.CreatedAt,
		nullTime(sub),
	)
	if err != nil {
		mapped := MapError(err)
		if !errors.Is(mapped, store.ErrInvalidEntity) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to create subscription",
				slog.String("error", err.Error()),
				slog.String("subscription_id", sub.ID.String()))
		}
		return mapped
	}
	return nil
}

// GetByID implements store.SubscriptionStore.GetByID.
func (s *PostgresSubscriptionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSubscriptionNotFound
		}
		return nil, store.NewStoreError("subscription", "get", "query failed", err)
	}
	return sub, nil
}

// ListByAccount implements store.SubscriptionStore.ListByAccount.
func (s *PostgresSubscriptionStore) ListByAccount(
	ctx context.Context,
	accountID uuid.UUID,
) ([]*domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE account_id = $1
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, store.NewStoreError("subscription", "list", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, store.NewStoreError("subscription", "list", "failed to scan row", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("subscription", "list", "failed to iterate rows", err)
	}
	return subs, nil
}

// Update implements store.SubscriptionStore.Update.
func (s *PostgresSubscriptionStore) Update(
	ctx context.Context,
	id uuid.UUID,
	fn store.SubscriptionMutation,
) (*domain.Subscription, error) {
	var updated *domain.Subscription

	err := inTx(ctx, s.db, func(ctx context.Context, q store.DBTX) error {
		current, err := scanSubscription(q.QueryRowContext(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR NO KEY UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrSubscriptionNotFound
			}
			return store.NewStoreError("subscription", "update", "failed to lock row", err)
		}

		working := *current
		if err := fn(&working); err != nil {
			return err
		}
		if working.ID != current.ID || working.AccountID != current.AccountID {
			return fmt.Errorf("%w: subscription id and owner are immutable", store.ErrInvalidEntity)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE subscriptions
			SET plan_id = $2, payment_method = $3, payment_status = $4, activated_at = $5
			WHERE id = $1`,
			working.ID,
			working.PlanID,
			string(working.PaymentMethod),
			string(working.PaymentStatus),
			nullTime(&working),
		)
		if err != nil {
			return MapError(err)
		}

		updated = &working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements store.SubscriptionStore.Delete.
func (s *PostgresSubscriptionStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrSubscriptionNotFound)
}
