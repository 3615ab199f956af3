package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/admeshlabs/admesh-backend/internal/analytics/types"
	"github.com/admeshlabs/admesh-backend/internal/clock"
	"github.com/admeshlabs/admesh-backend/pkg/logger"
)

const (
	dedupeKeyPrefix = "ad_event_seen:"
	dedupeTTL       = 24 * time.Hour
)

// RowWriter lands fact rows in the warehouse.
type RowWriter interface {
	InsertAdEvent(ctx context.Context, row types.AdEventRow) error
	Flush(ctx context.Context) error
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Service consumes ad events from Pub/Sub and writes them to BigQuery,
// deduplicating redeliveries through Redis.
type Service struct {
	subscription *gcppubsub.Subscriber
	writer       RowWriter
	dedupe       dedupeStore
	clk          clock.Clock
	logg         *logger.Logger
}

// NewService creates a new analytics worker service.
func NewService(subscription *gcppubsub.Subscriber, rowWriter RowWriter, dedupe dedupeStore, clk clock.Clock, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("ad events subscription is required")
	}
	if rowWriter == nil {
		return nil, errors.New("row writer is required")
	}
	if dedupe == nil {
		return nil, errors.New("dedupe store is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		writer:       rowWriter,
		dedupe:       dedupe,
		clk:          clk,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming ad events until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if flushErr := s.writer.Flush(flushCtx); flushErr != nil {
		s.logg.Error(flushCtx, "flushing buffered rows failed", flushErr)
	}
	return err
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	return s.processData(ctx, msg.Data, msg.ID)
}

func (s *Service) processData(ctx context.Context, data []byte, messageID string) processResult {
	logCtx := s.logg.WithField(ctx, "message_id", messageID)

	env, err := types.Decode(data)
	if err != nil {
		// Malformed payloads never become valid; drop them.
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid ad event envelope")
		return processResult{}
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":   env.EventID,
		"event_type": env.EventType,
	})

	fresh, err := s.dedupe.SetNX(logCtx, dedupeKeyPrefix+env.EventID, 1, dedupeTTL)
	if err != nil {
		s.logg.Error(logCtx, "dedupe check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		s.logg.Info(logCtx, "ad event already processed")
		return processResult{}
	}

	row := types.RowFromEnvelope(env, s.clk.Now())
	if err := s.writer.InsertAdEvent(logCtx, row); err != nil {
		s.logg.Error(logCtx, "writing ad event row failed", err)
		_ = s.dedupe.Del(logCtx, dedupeKeyPrefix+env.EventID)
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "ad event stored")
	return processResult{}
}
