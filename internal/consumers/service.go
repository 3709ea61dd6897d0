package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"fanpass/internal/cache"
	"fanpass/internal/config"
	"fanpass/internal/database"
	"fanpass/internal/external"
	"fanpass/internal/messaging"
	"fanpass/internal/models"
	"fanpass/internal/repository"
	"fanpass/internal/search"
	"fanpass/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	repos    *repository.Repositories
	handlers *Handlers
	subs     []stan.Subscription

	Sweeper *service.Sweeper
}

func NewConsumerService(ctx context.Context, cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)

	var indexer PaymentIndexer
	if cfg.Elasticsearch.Enabled {
		esClient, err := search.NewElasticsearchClient(ctx, cfg.Elasticsearch)
		if err != nil {
			slog.Error("Elasticsearch unavailable, payments will not be indexed", "error", err)
		} else {
			indexer = esClient
		}
	}

	var valkeyClient *cache.ValkeyClient
	var invalidator EarningsInvalidator
	if cfg.Cache.Enabled {
		valkeyClient, err = cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			slog.Error("Valkey unavailable, earnings cache will not be invalidated", "error", err)
		} else {
			invalidator = valkeyClient
		}
	}

	paypal := external.NewPaypalClient(cfg.Paypal)
	reconciler := service.NewReconciler(repos.Payments, repos.Events, repos.Attendance, repos.Earnings, repos.Users, natsClient)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		repos:    repos,
		handlers: NewHandlers(repos.Events, indexer, invalidator),
		Sweeper:  service.NewSweeper(repos.Payments, paypal, reconciler, cfg.Sweep.MinAge, cfg.Sweep.MaxAge, cfg.Sweep.BatchSize),
	}, nil
}

func (cs *ConsumerService) Start() error {
	if !cs.nats.Connected() {
		slog.Warn("NATS Streaming disabled, consumers not started")
		return nil
	}

	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventPaymentCompleted, cs.handlers.HandlePaymentCompleted},
		{models.EventCommissionCredited, cs.handlers.HandleCommissionCredited},
		{models.EventAttendanceAdmitted, cs.handlers.HandleAttendanceAdmitted},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return fmt.Errorf("failed to start consumer for %s: %w", s.subject, err)
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close, not Unsubscribe: durable subscriptions keep their position
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.valkey != nil {
		if err := cs.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
