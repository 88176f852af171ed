package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/seetara/ReconBox/config"
	"github.com/seetara/ReconBox/internal/broker/kafka"
	"github.com/seetara/ReconBox/internal/broker/messages"
	"github.com/seetara/ReconBox/internal/cache/rediscache"
	"github.com/seetara/ReconBox/internal/integrations/courier"
	"github.com/seetara/ReconBox/internal/integrations/courier/fake"
	"github.com/seetara/ReconBox/internal/integrations/courier/gaaubesihttp"
	"github.com/seetara/ReconBox/internal/models"
	"github.com/seetara/ReconBox/internal/services/recon"
	"github.com/seetara/ReconBox/internal/storage/pgorders"
)

// store is everything the worker needs from pgorders in one place.
type store interface {
	recon.OrderStore
	recon.CommentStore
	UpsertSyncedOrder(ctx context.Context, id, externalOrderID, provider string, st models.OrderStatus, syncedAt time.Time) error
}

type ordersConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage       func(cfg *config.Config) (store, func(), error)
	newProducer      func(cfg *config.Config) recon.Producer
	newConsumer      func(cfg *config.Config) ordersConsumer
	newRateLimiter   func(cfg *config.Config) recon.RateLimiter
	newCache         func(cfg *config.Config) recon.BytesCache
	newCourierClient func(cfg *config.Config) courier.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (store, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgorders.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) recon.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newConsumer: func(cfg *config.Config) ordersConsumer {
			topic := cfg.Kafka.OrdersSyncedTopicName
			if topic == "" {
				topic = "orders.synced"
			}
			group := cfg.ReconBox.KafkaConsumerGroup
			if group == "" {
				group = "recon-worker"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topic, group)
		},
		newRateLimiter: func(cfg *config.Config) recon.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCache: func(cfg *config.Config) recon.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newCourierClient: func(cfg *config.Config) courier.Client {
			// No base URL configured means a local/dev run against the fake.
			if cfg.ReconBox.CourierBaseURL == "" {
				return fake.New()
			}
			timeout := time.Duration(cfg.ReconBox.CourierTimeoutSeconds) * time.Second
			return gaaubesihttp.New(cfg.ReconBox.CourierBaseURL, cfg.ReconBox.CourierAPIKey, timeout)
		},
	}
}

func RunReconWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	statusTopic := cfg.Kafka.StatusChangedTopicName
	if statusTopic == "" {
		statusTopic = "order.status.changed"
	}

	passInterval := time.Duration(cfg.ReconBox.WorkerPassIntervalMinutes) * time.Minute
	itemDelay := time.Duration(cfg.ReconBox.WorkerItemDelayMillis) * time.Millisecond
	batchDelay := time.Duration(cfg.ReconBox.WorkerBatchDelayMillis) * time.Millisecond

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	rec := recon.New(st, st, f.newCourierClient(cfg))
	if p := f.newProducer(cfg); p != nil {
		rec = rec.WithProducer(p, statusTopic)
	}

	runner := recon.NewRunner(st, rec, f.newRateLimiter(cfg), f.newCache(cfg), cfg.ReconBox.CourierProviderTags).
		WithSettings(cfg.ReconBox.WorkerBatchSize, itemDelay, batchDelay, passInterval, int64(cfg.ReconBox.WorkerRateLimitPerMinute)).
		WithActiveWindow(cfg.ReconBox.ActiveWindowStartHour, cfg.ReconBox.ActiveWindowEndHour).
		WithLastRunTTL(time.Duration(cfg.ReconBox.LastRunTTLHours) * time.Hour)

	if c := f.newConsumer(cfg); c != nil {
		go func() {
			defer c.Close()
			if err := consumeOrdersSynced(ctx, c, st); err != nil && ctx.Err() == nil {
				slog.Error("orders.synced consumer stopped", "error", err.Error())
			}
		}()
	}

	go func() {
		addr := cfg.ReconBox.HTTPAddr
		if addr == "" {
			addr = ":8082"
		}
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: addr,
			runner:   runner,
			cfg:      cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server stopped", "error", err.Error())
		}
	}()

	return runner.Run(ctx)
}

func consumeOrdersSynced(ctx context.Context, c ordersConsumer, st store) error {
	return c.Consume(ctx, orderSyncedHandler(st))
}

// orderSyncedHandler registers ERP orders into the polling working set.
// Malformed messages are logged and committed; store failures bubble up so the
// message is re-delivered.
func orderSyncedHandler(st store) func(key, value []byte) error {
	return func(key, value []byte) error {
		var msg messages.OrderSynced
		if err := json.Unmarshal(value, &msg); err != nil {
			slog.Warn("malformed orders.synced message", "error", err.Error())
			return nil
		}
		if msg.OrderID == "" || msg.ExternalOrderID == "" {
			slog.Warn("orders.synced message missing ids", "order_id", msg.OrderID)
			return nil
		}
		return st.UpsertSyncedOrder(context.Background(), msg.OrderID, msg.ExternalOrderID, msg.Provider, models.OrderStatus(msg.Status), msg.SyncedAt)
	}
}
