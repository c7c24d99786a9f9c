package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"insights-filter/internal/logger"
)

// TableLoaded is published after an upload is normalized into a session.
type TableLoaded struct {
	SessionID   string    `json:"session_id"`
	ContentHash string    `json:"content_hash"`
	Variant     string    `json:"variant"`
	Rows        int       `json:"rows"`
	Advisories  int       `json:"advisories"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// ViewExported is published whenever a filtered view is downloaded.
type ViewExported struct {
	SessionID  string    `json:"session_id"`
	Format     string    `json:"format"`
	Scope      string    `json:"scope"`
	Rows       int       `json:"rows"`
	ExportedAt time.Time `json:"exported_at"`
}

// Publisher streams session lifecycle events. Implementations must be safe
// for concurrent use.
type Publisher interface {
	PublishTableLoaded(ctx context.Context, evt TableLoaded) error
	PublishViewExported(ctx context.Context, evt ViewExported) error
	Close() error
}

type Topics struct {
	TableLoaded  string
	ViewExported string
}

type Producer struct {
	Writer *kafka.Writer
	Topics Topics
	Logger *logger.Logger
}

// NewProducer builds a writer without a fixed topic; each message names its own.
func NewProducer(brokers []string, topics Topics, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) PublishTableLoaded(ctx context.Context, evt TableLoaded) error {
	return p.publish(ctx, p.Topics.TableLoaded, evt.SessionID, evt)
}

func (p *Producer) PublishViewExported(ctx context.Context, evt ViewExported) error {
	return p.publish(ctx, p.Topics.ViewExported, evt.SessionID, evt)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, string(msgBytes))
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// MockProducer logs events instead of sending them. It is used when
// KAFKA_MOCK_MODE is set and in tests.
type MockProducer struct {
	Topics Topics
	Logger *logger.Logger

	mu       sync.Mutex
	loaded   []TableLoaded
	exported []ViewExported
}

func NewMockProducer(topics Topics, log *logger.Logger) *MockProducer {
	return &MockProducer{Topics: topics, Logger: log}
}

func (m *MockProducer) PublishTableLoaded(_ context.Context, evt TableLoaded) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, evt)
	m.log(m.Topics.TableLoaded, evt)
	return nil
}

func (m *MockProducer) PublishViewExported(_ context.Context, evt ViewExported) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exported = append(m.exported, evt)
	m.log(m.Topics.ViewExported, evt)
	return nil
}

func (m *MockProducer) log(topic string, payload interface{}) {
	if m.Logger == nil {
		return
	}
	b, _ := json.Marshal(payload)
	m.Logger.LogKafka("MOCK", topic, string(b))
}

// Loaded returns the TableLoaded events published so far.
func (m *MockProducer) Loaded() []TableLoaded {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TableLoaded(nil), m.loaded...)
}

// Exported returns the ViewExported events published so far.
func (m *MockProducer) Exported() []ViewExported {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ViewExported(nil), m.exported...)
}

func (m *MockProducer) Close() error { return nil }

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishTableLoaded(context.Context, TableLoaded) error { return nil }

func (NoopPublisher) PublishViewExported(context.Context, ViewExported) error { return nil }

func (NoopPublisher) Close() error { return nil }
