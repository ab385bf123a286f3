package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher forwards applied events to NATS for downstream consumers.
// Subjects follow the pattern arena.events.{event_type}.{competition_id}.
// Publishing is best-effort: the event log in Postgres is the source of
// truth, and consumers that miss a message replay from there.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan Event
}

// Event is an applied event ready for outbound publishing.
type Event struct {
	Sequence      int64           `json:"sequence"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	CompetitionID uint64          `json:"competition_id"`
	Caller        string          `json:"caller"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

func New(js jetstream.JetStream, inputChan <-chan Event) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run drains the publish channel until ctx is cancelled or the channel
// closes. Publish failures are logged and dropped.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, evt); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", evt.Sequence, err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("arena.events.%s.%d", evt.EventType, evt.CompetitionID)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// Connect opens a NATS connection with a JetStream context.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream context: %w", err)
	}
	return nc, js, nil
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "ARENA_EVENTS",
		Subjects:  []string{"arena.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream ARENA_EVENTS")
	return nil
}
