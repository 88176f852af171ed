package main

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/seetara/ReconBox/config"
	"github.com/seetara/ReconBox/internal/integrations/courier"
	"github.com/seetara/ReconBox/internal/integrations/courier/fake"
	"github.com/seetara/ReconBox/internal/integrations/courier/gaaubesihttp"
	"github.com/seetara/ReconBox/internal/models"
	"github.com/seetara/ReconBox/internal/services/recon"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	upserts   []string
	upsertErr error
}

func (s *fakeStore) FindEligibleOrders(ctx context.Context, providers []string) ([]*models.Order, error) {
	return []*models.Order{}, nil
}

func (s *fakeStore) UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) error {
	return nil
}

func (s *fakeStore) AppendTimelineEntry(ctx context.Context, orderID, st, note string) error {
	return nil
}

func (s *fakeStore) FindExistingComment(ctx context.Context, orderID, provider, externalID, text string) (*models.LogisticsComment, error) {
	return nil, nil
}

func (s *fakeStore) InsertComment(ctx context.Context, c *models.LogisticsComment) error { return nil }

func (s *fakeStore) UpsertSyncedOrder(ctx context.Context, id, externalOrderID, provider string, st models.OrderStatus, syncedAt time.Time) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, id)
	return nil
}

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func TestDefaultWorkerFactories_SelectCourierClient(t *testing.T) {
	f := defaultWorkerFactories()

	cfgFake := &config.Config{}
	c1 := f.newCourierClient(cfgFake)
	_, ok := c1.(*fake.FakeClient)
	require.True(t, ok)

	cfgHTTP := &config.Config{
		ReconBox: config.ReconBoxConfig{
			CourierBaseURL:        "http://localhost:9000",
			CourierAPIKey:         "k",
			CourierTimeoutSeconds: 5,
		},
	}
	c2 := f.newCourierClient(cfgHTTP)
	_, ok = c2.(*gaaubesihttp.Client)
	require.True(t, ok)
}

func TestDefaultWorkerFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
	require.NotNil(t, f.newCache(cfg))
}

func TestRunReconWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (store, func(), error) {
			return &fakeStore{}, func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) recon.Producer {
			return noopProducer{}
		},
		newConsumer: func(cfg *config.Config) ordersConsumer {
			return nil
		},
		newRateLimiter: func(cfg *config.Config) recon.RateLimiter {
			return nil
		},
		newCache: func(cfg *config.Config) recon.BytesCache {
			return nil
		},
		newCourierClient: func(cfg *config.Config) courier.Client {
			return fake.New()
		},
	}

	cfg := &config.Config{
		Kafka:    config.KafkaConfig{StatusChangedTopicName: "t"},
		ReconBox: config.ReconBoxConfig{WorkerPassIntervalMinutes: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunReconWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}

func TestOrderSyncedHandler(t *testing.T) {
	st := &fakeStore{}
	h := orderSyncedHandler(st)

	// Malformed payloads are committed, not retried.
	require.NoError(t, h(nil, []byte("{not json")))
	require.NoError(t, h(nil, []byte(`{"order_id":"","external_order_id":"GB-1"}`)))
	require.Empty(t, st.upserts)

	require.NoError(t, h(nil, []byte(`{"order_id":"o1","external_order_id":"GB-1","provider":"gaaubesi","status":"confirmed","synced_at":"2026-08-20T10:00:00Z"}`)))
	require.Equal(t, []string{"o1"}, st.upserts)

	// Store failures bubble so the broker re-delivers.
	st.upsertErr = errors.New("db down")
	require.Error(t, h(nil, []byte(`{"order_id":"o2","external_order_id":"GB-2"}`)))
}
