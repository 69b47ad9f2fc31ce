package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/enroll-api/internal/api"
	"github.com/phrazzld/enroll-api/internal/config"
	"github.com/phrazzld/enroll-api/internal/domain"
	"github.com/phrazzld/enroll-api/internal/events"
	"github.com/phrazzld/enroll-api/internal/notify"
	"github.com/phrazzld/enroll-api/internal/platform/memory"
	"github.com/phrazzld/enroll-api/internal/platform/metrics"
	"github.com/phrazzld/enroll-api/internal/platform/postgres"
	enrollredis "github.com/phrazzld/enroll-api/internal/platform/redis"
	"github.com/phrazzld/enroll-api/internal/service"
	"github.com/phrazzld/enroll-api/internal/service/auth"
	"github.com/phrazzld/enroll-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
)

// stores bundles the persistence adapters selected by configuration.
type stores struct {
	accounts      store.AccountStore
	codes         store.CodeStore
	subscriptions store.SubscriptionStore
	credits       store.CreditStore
	tx            store.Transactor
}

// application holds the shared dependencies and owns their cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger

	db          *sql.DB
	redis       *redis.Client
	kafka       *kgo.Client
	kafkaEvents *events.AsyncHandler

	gatherer   prometheus.Gatherer
	jwtService auth.JWTService
	handlers   api.Handlers
}

// newApplication wires stores, services and handlers from cfg. Metrics are
// registered on reg and served from gatherer.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
) (_ *application, err error) {
	app := &application{config: cfg, logger: log, gatherer: gatherer}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	st, err := app.setupStores(ctx)
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.NewLogHandler(log))
	if len(cfg.Kafka.Brokers) > 0 {
		app.kafka, err = events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		app.kafkaEvents = events.NewAsyncHandler(
			events.NewKafkaPublisher(app.kafka, cfg.Kafka.Topic, log),
			events.AsyncConfig{
				QueueSize: cfg.Kafka.QueueSize,
				Workers:   cfg.Kafka.Workers,
				OnError: func(event *events.LifecycleEvent, _ error) {
					m.EventDeliveryFailure.WithLabelValues(string(event.Type)).Inc()
				},
			},
			log,
		)
		emitter.RegisterHandler(app.kafkaEvents)
		log.Info("publishing lifecycle events to kafka", "topic", cfg.Kafka.Topic)
	}

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	sender := notify.NewLogSender(log, cfg.Verification.RevealCodesInLogs)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	validation := domain.ValidationOptions{StrongPassword: cfg.Auth.StrongPasswords}

	verification := service.NewVerificationService(
		st.codes, st.accounts, st.tx, sender, cfg.Verification.CodeTTL, emitter, m, log)
	accounts := service.NewAccountService(
		st.accounts, st.tx, verification, hasher, app.jwtService, validation, emitter, m, log)
	ledger := service.NewCreditLedger(st.credits, st.accounts, emitter, m, log)
	subscriptions := service.NewSubscriptionService(
		st.accounts, st.subscriptions, st.tx, ledger, domain.DefaultPlans(), emitter, m, log)

	app.handlers = api.Handlers{
		Accounts:      api.NewAccountHandler(accounts, verification, log),
		Subscriptions: api.NewSubscriptionHandler(subscriptions, log),
		Credits:       api.NewCreditHandler(ledger, log),
	}

	log.Info("application initialized")
	return app, nil
}

func (app *application) setupStores(ctx context.Context) (*stores, error) {
	var st stores

	switch app.config.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, app.config.Database)
		if err != nil {
			return nil, err
		}
		app.db = db
		st = stores{
			accounts:      postgres.NewPostgresAccountStore(db, app.logger),
			codes:         postgres.NewPostgresCodeStore(db, app.logger),
			subscriptions: postgres.NewPostgresSubscriptionStore(db, app.logger),
			credits:       postgres.NewPostgresCreditStore(db, app.logger),
			tx:            store.NewSQLTransactor(db),
		}
		app.logger.Info("using postgres storage")
	default:
		repo := memory.New()
		st = stores{
			accounts:      repo.Accounts(),
			codes:         repo.Codes(),
			subscriptions: repo.Subscriptions(),
			credits:       repo.Credits(),
			tx:            store.NoTx{},
		}
		app.logger.Info("using in-memory storage")
	}

	client, err := enrollredis.New(ctx, app.config.Redis)
	if err != nil {
		return nil, err
	}
	if client != nil {
		app.redis = client
		st.codes = enrollredis.NewCodeStore(client)
		app.logger.Info("using redis for verification codes")
	}

	return &st, nil
}

// cleanup releases external connections. It is safe to call on a partially
// initialized application.
func (app *application) cleanup() {
	if app.kafkaEvents != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		if err := app.kafkaEvents.Close(ctx); err != nil {
			app.logger.Error("error draining kafka event queue", "error", err)
		}
		cancel()
	}
	if app.kafka != nil {
		app.kafka.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
