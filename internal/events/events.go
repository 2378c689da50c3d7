package events

import (
	"context"
	"time"

	"resource-tracker/internal/metrics"

	"go.uber.org/zap"
)

// Event types published after a transaction commits.
const (
	RequestCreated         = "request.created"
	RequestManagerApproved = "request.manager_approved"
	RequestApproved        = "request.approved"
	RequestRejected        = "request.rejected"
	StockReceived          = "stock.received"
)

// Event is the envelope delivered to every sink.
type Event struct {
	Type       string                 `json:"event"`
	Key        string                 `json:"key"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New stamps an event of the given type keyed by the entity id.
func New(eventType, key string, data map[string]interface{}) Event {
	return Event{Type: eventType, Key: key, Data: data, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type sink struct {
	name string
	pub  Publisher
}

// Fanout delivers each event to every registered sink. A failing sink is
// logged and counted; it never stops delivery to the others.
type Fanout struct {
	sinks []sink
	log   *zap.Logger
}

func NewFanout(log *zap.Logger) *Fanout {
	return &Fanout{log: log}
}

// Add registers a named sink. Nil publishers are ignored.
func (f *Fanout) Add(name string, pub Publisher) *Fanout {
	if pub != nil {
		f.sinks = append(f.sinks, sink{name: name, pub: pub})
	}
	return f
}

// Publish always returns nil; errors are reported per sink.
func (f *Fanout) Publish(ctx context.Context, evt Event) error {
	for _, s := range f.sinks {
		if err := s.pub.Publish(ctx, evt); err != nil {
			metrics.EventsPublishFailed.WithLabelValues(s.name).Inc()
			f.log.Warn("event publish failed",
				zap.String("sink", s.name),
				zap.String("event", evt.Type),
				zap.String("key", evt.Key),
				zap.Error(err),
			)
		}
	}
	return nil
}
