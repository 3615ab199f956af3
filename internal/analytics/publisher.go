package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/admeshlabs/admesh-backend/internal/analytics/types"
	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

// Publisher fans serving events out onto the ad-events topic.
type Publisher struct {
	topic *gcppubsub.Publisher
}

// NewPublisher wraps a Pub/Sub publisher handle for the ad-events topic.
func NewPublisher(topic *gcppubsub.Publisher) (*Publisher, error) {
	if topic == nil {
		return nil, errors.New("ad events topic is required")
	}
	return &Publisher{topic: topic}, nil
}

// PublishAdEvent sends one serving event. The call blocks until the broker
// acknowledges so callers can treat errors as best-effort signals.
func (p *Publisher) PublishAdEvent(ctx context.Context, event *models.AdEvent) error {
	if event == nil {
		return errors.New("event is required")
	}
	env := types.EnvelopeFromEvent(event)
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode ad event envelope: %w", err)
	}

	result := p.topic.Publish(ctx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   env.EventID,
			"event_type": env.EventType,
			"app_id":     env.AppID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish ad event: %w", err)
	}
	return nil
}
