package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/events"
	"github.com/phrazzld/enroll-api/internal/notify"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/platform/metrics"
	"github.com/phrazzld/enroll-api/internal/redact"
	"github.com/phrazzld/enroll-api/internal/store"
)

// VerificationService manages one-time email verification codes.
type VerificationService interface {
	// Issue generates a fresh code for email, replacing any previous one, and
	// dispatches it through the notification sender. If dispatch fails the
	// code is discarded and the error returned.
	Issue(ctx context.Context, email string) (*domain.VerificationCode, error)

	// Redeem consumes the code on file for email.
	// Returns domain.ErrCodeNotFound or domain.ErrCodeMismatch.
	Redeem(ctx context.Context, email, code string) error

	// Resend replaces the code of an account that is still pending verification.
	// The state check and the new code happen under the account's lock.
	// Returns domain.ErrAccountNotFound or domain.ErrAlreadyVerified.
	Resend(ctx context.Context, email string) (*domain.VerificationCode, error)

	// WithTx returns a service whose code and account stores run on tx.
	WithTx(tx *sql.Tx) VerificationService
}

type verificationService struct {
	codes    store.CodeStore
	accounts store.AccountStore
	tx       store.Transactor
	sender   notify.NotificationSender
	ttl      time.Duration
	metrics  *metrics.Metrics
	events   publisher
	logger   *slog.Logger
}

var _ VerificationService = (*verificationService)(nil)

// NewVerificationService creates a VerificationService. A ttl of zero keeps
// codes valid until they are redeemed or replaced. A nil tx means the stores
// need no shared transaction.
func NewVerificationService(
	codes store.CodeStore,
	accounts store.AccountStore,
	tx store.Transactor,
	sender notify.NotificationSender,
	ttl time.Duration,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	log *slog.Logger,
) VerificationService {
	if log == nil {
		log = slog.Default()
	}
	if tx == nil {
		tx = store.NoTx{}
	}
	m = orNewMetrics(m)
	log = log.With("component", "verification_service")
	return &verificationService{
		codes:    codes,
		accounts: accounts,
		tx:       tx,
		sender:   sender,
		ttl:      ttl,
		metrics:  m,
		events:   publisher{emitter: emitter, metrics: m, logger: log},
		logger:   log,
	}
}

func (s *verificationService) WithTx(tx *sql.Tx) VerificationService {
	if tx == nil {
		return s
	}
	bound := *s
	bound.codes = s.codes.WithTx(tx)
	bound.accounts = s.accounts.WithTx(tx)
	return &bound
}

func (s *verificationService) Issue(ctx context.Context, email string) (_ *domain.VerificationCode, err error) {
	ctx, span := startSpan(ctx, "VerificationService.Issue")
	defer func() { endSpan(span, err) }()
	return s.issue(ctx, s.codes, email)
}

func (s *verificationService) issue(
	ctx context.Context,
	codes store.CodeStore,
	email string,
) (*domain.VerificationCode, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	code, err := domain.NewVerificationCode(email)
	if err != nil {
		return nil, err
	}

	if err := codes.Put(ctx, code, s.ttl); err != nil {
		log.Error("failed to store verification code",
			"error", err,
			"email", email)
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.sender.SendVerificationCode(ctx, email, code.Code); err != nil {
		if delErr := codes.Delete(ctx, email); delErr != nil {
			log.Error("failed to discard undelivered verification code",
				"error", delErr,
				"email", email)
		}
		log.Error("failed to dispatch verification code",
			"error", err,
			"email", email)
		return nil, fmt.Errorf("failed to dispatch verification code: %w", err)
	}

	s.metrics.CodesIssued.Inc()
	log.Debug("verification code issued", "email", redact.Email(email))
	return code, nil
}

func (s *verificationService) Redeem(ctx context.Context, email, code string) (err error) {
	ctx, span := startSpan(ctx, "VerificationService.Redeem")
	defer func() { endSpan(span, err) }()

	if err := s.codes.Redeem(ctx, email, code); err != nil {
		err = translateStoreError(err)
		logFailure(logger.FromContextOrDefault(ctx, s.logger), "verification code redemption failed", err,
			"email", email)
		return err
	}
	return nil
}

func (s *verificationService) Resend(ctx context.Context, email string) (_ *domain.VerificationCode, err error) {
	ctx, span := startSpan(ctx, "VerificationService.Resend")
	defer func() { endSpan(span, err) }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "resend rejected", err, "email", email)
		return nil, err
	}

	// VerifyEmail takes the same account lock, so a verified account never
	// gets a fresh code.
	var code *domain.VerificationCode
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		codes := s.codes.WithTx(tx)
		_, err := s.accounts.WithTx(tx).Update(ctx, account.ID, func(a *domain.Account) error {
			if a.State != domain.AccountStatePendingVerification {
				return domain.ErrAlreadyVerified
			}
			if err := codes.Delete(ctx, email); err != nil {
				return fmt.Errorf("failed to discard previous verification code: %w", err)
			}
			issued, err := s.issue(ctx, codes, email)
			if err != nil {
				return err
			}
			code = issued
			return nil
		})
		return err
	})
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "resend rejected", err, "email", email)
		return nil, err
	}

	s.events.publish(ctx, events.TypeVerificationCodeIssued, account.ID, events.AccountPayload{
		Email: account.Email,
		State: string(account.State),
	})
	return code, nil
}
