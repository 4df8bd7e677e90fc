package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ndrandal/marketsim/internal/engine"
	"github.com/ndrandal/marketsim/internal/wire"
)

// Config selects the brokers and topics the publisher writes to.
type Config struct {
	Brokers      []string
	QuoteTopic   string
	EventTopic   string
	QueueSize    int
	BatchTimeout time.Duration
	Compression  string
}

// Observer is told about every write and every dropped message.
type Observer interface {
	Published(topic string, err error)
	PublishDropped(topic string)
}

type nopObserver struct{}

func (nopObserver) Published(string, error) {}
func (nopObserver) PublishDropped(string)   {}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// maxBatch caps the messages handed to one WriteMessages call.
const maxBatch = 256

// Publisher forwards quotes and regime events to Kafka without blocking
// the engine: messages go through a bounded queue and are dropped when
// it is full.
type Publisher struct {
	w     messageWriter
	cfg   Config
	queue chan kafka.Message
	obs   Observer
	log   zerolog.Logger
}

// New creates a publisher writing to the configured brokers. obs may be nil.
func New(cfg Config, obs Observer, log zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  parseCompression(cfg.Compression),
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  3,
	}
	return newPublisher(w, cfg, obs, log), nil
}

func newPublisher(w messageWriter, cfg Config, obs Observer, log zerolog.Logger) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Publisher{
		w:     w,
		cfg:   cfg,
		queue: make(chan kafka.Message, cfg.QueueSize),
		obs:   obs,
		log:   log.With().Str("component", "publish").Logger(),
	}
}

// PublishSnapshot queues one quote per instrument, keyed by symbol.
func (p *Publisher) PublishSnapshot(s engine.Snapshot) {
	for _, in := range s.Instruments {
		msg := wire.Quote(in, s.Time, s.Reason)
		p.enqueue(p.cfg.QuoteTopic, in.Symbol, &msg, s.Time)
	}
}

// PublishEvent queues a regime event, keyed by kind.
func (p *Publisher) PublishEvent(e engine.Event) {
	msg := wire.Regime(e)
	p.enqueue(p.cfg.EventTopic, string(e.Kind), &msg, e.Time)
}

func (p *Publisher) enqueue(topic, key string, m *wire.Message, at time.Time) {
	value, err := wire.EncodeJSON(m)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("encode message")
		return
	}
	select {
	case p.queue <- kafka.Message{Topic: topic, Key: []byte(key), Value: value, Time: at}:
	default:
		p.obs.PublishDropped(topic)
	}
}

// Run writes queued messages until ctx is cancelled, then flushes what is
// still queued and closes the writer. Whatever is queued when a write
// starts goes out in one batch, so a tick's quotes share a round trip.
func (p *Publisher) Run(ctx context.Context) error {
	p.log.Info().
		Strs("brokers", p.cfg.Brokers).
		Str("quotes", p.cfg.QuoteTopic).
		Str("events", p.cfg.EventTopic).
		Msg("publisher started")

	for {
		select {
		case <-ctx.Done():
			p.flush()
			if err := p.w.Close(); err != nil {
				return fmt.Errorf("close kafka writer: %w", err)
			}
			return nil
		case msg := <-p.queue:
			p.write(ctx, p.drain(msg))
		}
	}
}

// drain appends queued messages to first without blocking.
func (p *Publisher) drain(first kafka.Message) []kafka.Message {
	batch := []kafka.Message{first}
	for len(batch) < maxBatch {
		select {
		case msg := <-p.queue:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, p.drain(msg))
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, batch []kafka.Message) {
	err := p.w.WriteMessages(ctx, batch...)
	for _, msg := range batch {
		p.obs.Published(msg.Topic, err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn().Err(err).Int("messages", len(batch)).Msg("publish failed")
	}
}

// Pending reports the number of queued messages.
func (p *Publisher) Pending() int {
	return len(p.queue)
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
