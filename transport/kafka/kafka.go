// Package kafka publishes error notifications and metrics pings to Kafka
// topics as JSON, for collectors that consume reports asynchronously.
package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/code19m/errx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/rise-and-shine/errnotify/meta"
	"github.com/rise-and-shine/errnotify/payload"
	"github.com/rise-and-shine/errnotify/transport"
)

const (
	headerContentType = "content-type"
	headerKind        = "errnotify-kind"
	headerAPIKey      = "errnotify-api-key"
)

// Transport implements notifier.Transport with a sarama SyncProducer.
type Transport struct {
	cfg      Config
	producer sarama.SyncProducer
}

// New connects a sync producer to cfg.Brokers. The client id is the service
// name registered with meta.SetServiceInfo.
func New(cfg Config) (*Transport, error) {
	cfg = cfg.withDefaults()

	saramaCfg, err := cfg.getSaramaConfig(meta.ServiceName())
	if err != nil {
		return nil, errx.Wrap(err)
	}

	producer, err := sarama.NewSyncProducer(strings.Split(cfg.Brokers, ","), saramaCfg)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"brokers": cfg.Brokers}))
	}

	return &Transport{cfg: cfg, producer: producer}, nil
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(cfg Config, producer sarama.SyncProducer) *Transport {
	return &Transport{cfg: cfg.withDefaults(), producer: producer}
}

// Deliver publishes p to the topic for its kind.
func (t *Transport) Deliver(ctx context.Context, p payload.Payload) error {
	var topic, key, apiKey string
	switch v := p.(type) {
	case *payload.Notification:
		topic, key, apiKey = t.cfg.NotificationTopic, uuid.NewString(), v.APIKey
	case *payload.Metrics:
		topic, key, apiKey = t.cfg.MetricsTopic, v.User.ID, v.APIKey
	default:
		return errx.New(
			"[transport.kafka]: unsupported payload",
			errx.WithCode(transport.CodeUnsupportedPayload),
			errx.WithDetails(errx.D{"type": fmt.Sprintf("%T", p)}),
		)
	}

	value, err := payload.Encode(p)
	if err != nil {
		return errx.Wrap(err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerContentType), Value: []byte("application/json")},
			{Key: []byte(headerKind), Value: []byte(p.Kind().String())},
			{Key: []byte(headerAPIKey), Value: []byte(apiKey)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg})

	partition, offset, err := t.producer.SendMessage(msg)
	if err != nil {
		return errx.Wrap(err,
			errx.WithCode(transport.CodeDeliveryFailed),
			errx.WithDetails(errx.D{
				"topic":     topic,
				"partition": partition,
				"offset":    offset,
			}),
		)
	}

	return nil
}

// Close closes the producer.
func (t *Transport) Close() error {
	return errx.Wrap(t.producer.Close())
}

// headerCarrier adapts sarama record headers to propagation.TextMapCarrier.
type headerCarrier struct {
	msg *sarama.ProducerMessage
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if string(h.Key) == key {
			c.msg.Headers = append(c.msg.Headers[:i], c.msg.Headers[i+1:]...)
			break
		}
	}
	c.msg.Headers = append(c.msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	out := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		out = append(out, string(h.Key))
	}
	return out
}
