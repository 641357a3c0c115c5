package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rise-and-shine/errnotify/payload"
	"github.com/rise-and-shine/errnotify/transport"
	"github.com/rise-and-shine/errnotify/transport/kafka"
)

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func newProducer(t *testing.T) *mocks.SyncProducer {
	t.Helper()
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, cfg)
}

func TestDeliverNotification(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	producer := newProducer(t)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "errors" {
			return errors.New("wrong topic: " + msg.Topic)
		}
		if header(msg, "errnotify-kind") != "notification" {
			return errors.New("missing kind header")
		}
		if header(msg, "traceparent") == "" {
			return errors.New("missing traceparent header")
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var body map[string]any
		if err = json.Unmarshal(raw, &body); err != nil {
			return err
		}
		if body["apiKey"] != "key" {
			return errors.New("wrong api key in body")
		}
		return nil
	})

	tr := kafka.NewWithProducer(kafka.Config{NotificationTopic: "errors"}, producer)
	err := tr.Deliver(ctx, &payload.Notification{APIKey: "key", Events: []payload.Event{{Severity: "error"}}})
	require.NoError(t, err)
	require.NoError(t, tr.Close())
}

func TestDeliverMetricsDefaultTopic(t *testing.T) {
	producer := newProducer(t)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "errnotify.metrics" {
			return errors.New("wrong topic: " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "user-1" {
			return errors.New("wrong key: " + string(key))
		}
		return nil
	})

	tr := kafka.NewWithProducer(kafka.Config{}, producer)
	err := tr.Deliver(context.Background(), &payload.Metrics{APIKey: "key", User: payload.User{ID: "user-1"}})
	require.NoError(t, err)
	require.NoError(t, tr.Close())
}

func TestDeliverFailure(t *testing.T) {
	producer := newProducer(t)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	tr := kafka.NewWithProducer(kafka.Config{}, producer)
	err := tr.Deliver(context.Background(), &payload.Notification{APIKey: "key"})
	require.Error(t, err)
	assert.Equal(t, transport.CodeDeliveryFailed, errx.AsErrorX(err).Code())
	require.NoError(t, tr.Close())
}

type bogusPayload struct{}

func (bogusPayload) Kind() payload.Kind { return payload.Kind(3) }

func TestDeliverUnsupported(t *testing.T) {
	producer := newProducer(t)
	tr := kafka.NewWithProducer(kafka.Config{}, producer)

	err := tr.Deliver(context.Background(), bogusPayload{})
	require.Error(t, err)
	assert.Equal(t, transport.CodeUnsupportedPayload, errx.AsErrorX(err).Code())
	require.NoError(t, tr.Close())
}
