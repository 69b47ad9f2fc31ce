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
	"github.com/phrazzld/enroll-api/internal/service/auth"
	"github.com/phrazzld/enroll-api/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// AccountService owns account records and their lifecycle state.
type AccountService interface {
	// Register validates r, creates a PENDING_VERIFICATION account and issues
	// its first verification code. Returns a *domain.ValidationError listing
	// every invalid field, or domain.ErrDuplicateEmail.
	Register(ctx context.Context, r domain.Registration) (*domain.Account, error)

	// MarkVerified moves the account from PENDING_VERIFICATION to EMAIL_VERIFIED.
	// Callers must have redeemed the account's code first.
	MarkVerified(ctx context.Context, email string) (*domain.Account, error)

	// VerifyEmail redeems code for email, marks the account verified and
	// issues an access token for it. The code is redeemed under the account's
	// lock and only while the account is pending, so a verified account's
	// replayed code fails with domain.ErrCodeNotFound without touching the
	// code store.
	VerifyEmail(ctx context.Context, email, code string) (*VerifiedAccount, error)

	// Lookup finds an account by its exact email.
	Lookup(ctx context.Context, email string) (*domain.Account, error)

	// LookupByID finds an account by ID.
	LookupByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// VerifiedAccount is the result of a successful email verification.
type VerifiedAccount struct {
	Account *domain.Account
	Token   string
}

type accountService struct {
	accounts   store.AccountStore
	tx         store.Transactor
	verifier   VerificationService
	hasher     auth.PasswordHasher
	tokens     auth.JWTService
	validation domain.ValidationOptions
	metrics    *metrics.Metrics
	events     publisher
	logger     *slog.Logger
}

var _ AccountService = (*accountService)(nil)

// NewAccountService creates an AccountService. A nil tx means the stores
// need no shared transaction.
func NewAccountService(
	accounts store.AccountStore,
	tx store.Transactor,
	verifier VerificationService,
	hasher auth.PasswordHasher,
	tokens auth.JWTService,
	validation domain.ValidationOptions,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	log *slog.Logger,
) AccountService {
	if log == nil {
		log = slog.Default()
	}
	if tx == nil {
		tx = store.NoTx{}
	}
	m = orNewMetrics(m)
	log = log.With("component", "account_service")
	return &accountService{
		accounts:   accounts,
		tx:         tx,
		verifier:   verifier,
		hasher:     hasher,
		tokens:     tokens,
		validation: validation,
		metrics:    m,
		events:     publisher{emitter: emitter, metrics: m, logger: log},
		logger:     log,
	}
}

func (s *accountService) Register(ctx context.Context, r domain.Registration) (_ *domain.Account, err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "AccountService.Register")
	defer func() {
		endSpan(span, err)
		s.metrics.Registrations.WithLabelValues(metrics.Outcome(err)).Inc()
		s.metrics.ObserveOperation("register", start)
	}()
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := r.Validate(s.validation); err != nil {
		log.Debug("registration rejected by validation", "error", err)
		return nil, err
	}

	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		log.Error("failed to hash password", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := domain.NewAccount(r, hash)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		err = translateStoreError(err)
		logFailure(log, "failed to create account", err, "email", r.Email)
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if _, err := s.verifier.Issue(ctx, account.Email); err != nil {
		if delErr := s.accounts.Delete(ctx, account.ID); delErr != nil {
			log.Error("failed to roll back account after code issue failure",
				"error", delErr,
				"account_id", account.ID)
		}
		return nil, fmt.Errorf("failed to issue verification code: %w", err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	log.Info("account registered",
		"account_id", account.ID,
		"email", account.Email)

	payload := events.AccountPayload{Email: account.Email, State: string(account.State)}
	s.events.publish(ctx, events.TypeAccountRegistered, account.ID, payload)
	s.events.publish(ctx, events.TypeVerificationCodeIssued, account.ID, payload)

	return account, nil
}

func (s *accountService) MarkVerified(ctx context.Context, email string) (_ *domain.Account, err error) {
	ctx, span := startSpan(ctx, "AccountService.MarkVerified")
	defer func() { endSpan(span, err) }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "failed to find account to verify", err, "email", email)
		return nil, err
	}

	account, err := s.accounts.Update(ctx, current.ID, func(a *domain.Account) error {
		if a.State != domain.AccountStatePendingVerification {
			return domain.ErrAlreadyVerified
		}
		return a.TransitionTo(domain.AccountStateEmailVerified)
	})
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "failed to mark account verified", err, "account_id", current.ID)
		return nil, err
	}

	s.verified(ctx, account)
	return account, nil
}

func (s *accountService) verified(ctx context.Context, account *domain.Account) {
	logger.FromContextOrDefault(ctx, s.logger).Info("account email verified", "account_id", account.ID)
	s.events.publish(ctx, events.TypeAccountEmailVerified, account.ID, events.AccountPayload{
		Email: account.Email,
		State: string(account.State),
	})
}

func (s *accountService) VerifyEmail(ctx context.Context, email, code string) (_ *VerifiedAccount, err error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "AccountService.VerifyEmail")
	defer func() {
		endSpan(span, err)
		s.metrics.Verifications.WithLabelValues(metrics.Outcome(err)).Inc()
		s.metrics.ObserveOperation("verify_email", start)
	}()
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrAccountNotFound) {
		// Codes are only issued to accounts.
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account to verify: %w", err)
	}

	var account *domain.Account
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		verifier := s.verifier.WithTx(tx)
		var err error
		account, err = s.accounts.WithTx(tx).Update(ctx, current.ID, func(a *domain.Account) error {
			if a.State != domain.AccountStatePendingVerification {
				// Resend refuses verified accounts, so none has a code on file.
				return domain.ErrCodeNotFound
			}
			if err := verifier.Redeem(ctx, email, code); err != nil {
				return err
			}
			return a.TransitionTo(domain.AccountStateEmailVerified)
		})
		return err
	})
	if err != nil {
		err = translateStoreError(err)
		logFailure(log, "email verification failed", err, "account_id", current.ID)
		return nil, err
	}
	s.verified(ctx, account)

	token, err := s.tokens.GenerateToken(ctx, account.ID)
	if err != nil {
		log.Error("failed to generate access token",
			"error", err,
			"account_id", account.ID)
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &VerifiedAccount{Account: account, Token: token}, nil
}

func (s *accountService) Lookup(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return account, nil
}

func (s *accountService) LookupByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return account, nil
}
