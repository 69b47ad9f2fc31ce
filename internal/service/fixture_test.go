package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/events"
	"github.com/phrazzld/enroll-api/internal/mocks"
	"github.com/phrazzld/enroll-api/internal/platform/logger"
	"github.com/phrazzld/enroll-api/internal/platform/memory"
	"github.com/phrazzld/enroll-api/internal/platform/metrics"
	"github.com/phrazzld/enroll-api/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// eventRecorder is an events.EventHandler that keeps every event it sees.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.LifecycleEvent
}

func (r *eventRecorder) HandleEvent(_ context.Context, event *events.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *eventRecorder) count(eventType events.Type) int {
	n := 0
	for _, t := range r.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	repo         *memory.Repository
	sender       *mocks.MockNotificationSender
	tokens       *mocks.MockJWTService
	metrics      *metrics.Metrics
	recorder     *eventRecorder
	logs         *logger.TestLogBuffer
	verification service.VerificationService
	accounts     service.AccountService
	ledger       service.CreditLedger
	subs         service.SubscriptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, logs := logger.GetTestLogger(t)
	repo := memory.New()
	sender := &mocks.MockNotificationSender{}
	tokens := &mocks.MockJWTService{Token: "access-token"}
	m := metrics.New(prometheus.NewRegistry())
	recorder := &eventRecorder{}

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(recorder)

	verification := service.NewVerificationService(
		repo.Codes(), repo.Accounts(), nil, sender, 0, emitter, m, log)
	ledger := service.NewCreditLedger(repo.Credits(), repo.Accounts(), emitter, m, log)

	return &fixture{
		repo:         repo,
		sender:       sender,
		tokens:       tokens,
		metrics:      m,
		recorder:     recorder,
		logs:         logs,
		verification: verification,
		accounts: service.NewAccountService(
			repo.Accounts(), nil, verification, &mocks.MockPasswordHasher{}, tokens,
			domain.ValidationOptions{}, emitter, m, log),
		ledger: ledger,
		subs: service.NewSubscriptionService(
			repo.Accounts(), repo.Subscriptions(), nil, ledger, domain.DefaultPlans(), emitter, m, log),
	}
}

func validRegistration(email string) domain.Registration {
	return domain.Registration{
		FullName:        "Jane Doe",
		Email:           email,
		NationalID:      "11144477735",
		Phone:           "(11) 98888-7777",
		Password:        "Secret1",
		AcceptedTerms:   true,
		AcceptedPrivacy: true,
	}
}

// register creates a PENDING_VERIFICATION account through the service.
func (f *fixture) register(t *testing.T, email string) *domain.Account {
	t.Helper()
	account, err := f.accounts.Register(context.Background(), validRegistration(email))
	require.NoError(t, err)
	return account
}

// registerVerified creates an EMAIL_VERIFIED account through the service.
func (f *fixture) registerVerified(t *testing.T, email string) *domain.Account {
	t.Helper()
	f.register(t, email)
	verified, err := f.accounts.VerifyEmail(context.Background(), email, f.sender.LastCode(email))
	require.NoError(t, err)
	return verified.Account
}
