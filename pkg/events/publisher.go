package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/pkg/resilience"
)

// Event types published by the service.
const (
	TypeToast        = "id.dokumen.toast"
	TypeNotification = "id.dokumen.notification"
)

// Publisher emits domain events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, subject string, data interface{}) error
	Close()
}

// NATSOptions configures the NATS connection.
type NATSOptions struct {
	URL           string
	SubjectPrefix string
	Source        string
	Executor      *resilience.Executor
	Logger        *zap.Logger
}

// NATSPublisher encodes events as structured CloudEvents JSON and publishes them on
// "<prefix>.<topic>".
type NATSPublisher struct {
	conn     *nats.Conn
	prefix   string
	source   string
	executor *resilience.Executor
	logger   *zap.Logger
}

// NewNATSPublisher dials NATS with reconnect enabled.
func NewNATSPublisher(opts NATSOptions) (*NATSPublisher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(
		opts.URL,
		nats.Name("dokumen-api"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{
		conn:     conn,
		prefix:   strings.Trim(opts.SubjectPrefix, "."),
		source:   opts.Source,
		executor: opts.Executor,
		logger:   logger,
	}, nil
}

// Publish sends one event. Failures are returned to the caller, which decides whether they matter.
func (p *NATSPublisher) Publish(ctx context.Context, topic, eventType, subject string, data interface{}) error {
	payload, err := Encode(p.source, eventType, subject, data, time.Now().UTC())
	if err != nil {
		return err
	}
	natsSubject := SubjectFor(p.prefix, topic)

	call := func(context.Context) error {
		if err := p.conn.Publish(natsSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor == nil {
		return call(ctx)
	}
	return p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// Encode renders a CloudEvent in structured JSON mode.
func Encode(source, eventType, subject string, data interface{}, at time.Time) ([]byte, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(at)
	if subject != "" {
		event.SetSubject(subject)
	}
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return json.Marshal(event)
}

// SubjectFor joins the configured prefix and a topic into a NATS subject.
func SubjectFor(prefix, topic string) string {
	topic = strings.Trim(topic, ".")
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

func classifyNATSError(err error) resilience.Classification {
	switch {
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubject):
		return resilience.Classification{Retryable: false, RecordFailure: false}
	default:
		return resilience.TransientClassifier(err)
	}
}

// NopPublisher discards events. Used when event fan-out is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, string, interface{}) error { return nil }
func (NopPublisher) Close() {}
