package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Publisher enqueues tasks. *asynq.Client satisfies it.
type Publisher interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier reacts to emitted events in-process.
type Notifier interface {
	Notify(ctx context.Context, event Envelope) error
}

// Envelope wraps a domain event payload.
type Envelope struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// DecodePayload unmarshals the envelope payload into dst.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return errors.New("events: empty payload")
	}
	return json.Unmarshal(e.Payload, dst)
}

// Bus publishes domain events as asynq tasks and fans them out to notifiers.
type Bus struct {
	Publisher Publisher
	Queue     string
	MaxRetry  int
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit wraps the payload in an envelope and enqueues it under the topic task type.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (Envelope, error) {
	if b == nil || b.Publisher == nil {
		return Envelope{}, errors.New("events: publisher not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Envelope{}, errors.New("events: topic is required")
	}
	if aggregateID == uuid.Nil {
		return Envelope{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Envelope{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		OccurredAt:  b.now().UTC(),
		Payload:     encoded,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: encode envelope: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String())}
	if b.Queue != "" {
		opts = append(opts, asynq.Queue(b.Queue))
	}
	if b.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(b.MaxRetry))
	}
	if _, err := b.Publisher.EnqueueContext(ctx, asynq.NewTask(topic, body), opts...); err != nil {
		return Envelope{}, fmt.Errorf("events: enqueue: %w", err)
	}

	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Decode extracts the envelope carried by a task.
func Decode(task *asynq.Task) (Envelope, error) {
	if task == nil {
		return Envelope{}, errors.New("events: nil task")
	}
	var ev Envelope
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return Envelope{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	if ev.Topic == "" {
		ev.Topic = task.Type()
	}
	return ev, nil
}

// LogNotifier writes every emitted event to the logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Envelope) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID.String()).
		Msg("domain event emitted")
	return nil
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		return validJSON(v)
	case json.RawMessage:
		return validJSON(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		return validJSON([]byte(v))
	default:
		return json.Marshal(v)
	}
}

func validJSON(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), data...), nil
}
