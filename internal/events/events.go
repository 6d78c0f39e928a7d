// Package events publishes session analytics (logins, submissions, exports) to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
)

type Type string

const (
	Login       Type = "login"
	LoginFailed Type = "login_failed"
	Logout      Type = "logout"
	Submit      Type = "submit"
	Export      Type = "export"
)

type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Session string    `json:"session,omitempty"`
	Dataset string    `json:"dataset,omitempty"`
	Country string    `json:"country,omitempty"`
	Rows    int       `json:"rows,omitempty"`
	Filter  string    `json:"filter,omitempty"`
	TS      time.Time `json:"ts"`
}

// Publisher never blocks the request path.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

// Nop is used when publishing is disabled.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close() error { return nil }

type Kafka struct {
	topic    string
	// mu guards closed; Publish holds it for reading so Close never closes
	// events under a sender
	mu       sync.RWMutex
	closed   bool
	events   chan Event
	prod     sarama.AsyncProducer
	log      *slog.Logger
	stopped  chan struct{}
	errsDone chan struct{}
}

func NewKafka(brokers []string, topic string, queueSize int, log *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: no kafka brokers configured")
	}
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return newKafka(prod, topic, queueSize, log), nil
}

// ProducerConfig is fire-and-forget: only errors are returned.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "gapminder-dash"
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	return cfg
}

func newKafka(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Kafka {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	k := &Kafka{
		topic:    topic,
		events:   make(chan Event, queueSize),
		prod:     prod,
		log:      log,
		stopped:  make(chan struct{}),
		errsDone: make(chan struct{}),
	}

	go func() {
		defer close(k.stopped)
		for ev := range k.events {
			b, err := json.Marshal(ev)
			if err != nil {
				k.log.Warn("events: marshal", "type", ev.Type, "err", err)
				continue
			}
			k.prod.Input() <- &sarama.ProducerMessage{
				Topic: k.topic,
				Key:   sarama.StringEncoder(ev.Session),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(k.errsDone)
		for perr := range k.prod.Errors() {
			if perr != nil {
				observability.IncEvent("unknown", "failed")
				k.log.Warn("events: producer error", "err", perr.Err)
			}
		}
	}()

	return k
}

// Publish fills in ID and TS when unset and enqueues; a full queue drops the event.
func (k *Kafka) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		observability.IncEvent(string(ev.Type), "dropped")
		return
	}
	select {
	case k.events <- ev:
		observability.IncEvent(string(ev.Type), "queued")
	default:
		observability.IncEvent(string(ev.Type), "dropped")
	}
}

// Close drains queued events into the producer and closes it. Events
// published afterwards are dropped; a second Close is a no-op.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.events)
	k.mu.Unlock()
	<-k.stopped

	err := k.prod.Close()
	<-k.errsDone
	if err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
