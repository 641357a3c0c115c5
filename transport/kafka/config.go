package kafka

import (
	"github.com/IBM/sarama"
	"github.com/code19m/errx"
	"github.com/samber/lo"
)

const (
	defaultNotificationTopic = "errnotify.notifications"
	defaultMetricsTopic      = "errnotify.metrics"
	defaultClientID          = "errnotify"
)

// Config holds configuration for the Kafka transport.
type Config struct {
	Brokers      string `yaml:"brokers"       validate:"required"`
	SaslUsername string `yaml:"sasl_username"`
	SaslPassword string `yaml:"sasl_password"                     mask:"true"`

	KafkaVersion string `yaml:"kafka_version" default:"3.6.0"`

	NotificationTopic string `yaml:"notification_topic" default:"errnotify.notifications"`
	MetricsTopic      string `yaml:"metrics_topic"      default:"errnotify.metrics"`
}

func (c *Config) withDefaults() Config {
	out := *c
	out.NotificationTopic = lo.CoalesceOrEmpty(c.NotificationTopic, defaultNotificationTopic)
	out.MetricsTopic = lo.CoalesceOrEmpty(c.MetricsTopic, defaultMetricsTopic)
	out.KafkaVersion = lo.CoalesceOrEmpty(c.KafkaVersion, sarama.DefaultVersion.String())
	return out
}

func (c *Config) getSaramaConfig(clientID string) (*sarama.Config, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = lo.CoalesceOrEmpty(clientID, defaultClientID)
	version, err := sarama.ParseKafkaVersion(c.KafkaVersion)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"kafka_version": c.KafkaVersion}))
	}
	saramaCfg.Version = version

	// Currently support only SASL_PLAINTEXT authentication.
	if c.SaslUsername != "" && c.SaslPassword != "" {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = c.SaslUsername
		saramaCfg.Net.SASL.Password = c.SaslPassword
		saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}

	// sync producer requires both
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true

	return saramaCfg, nil
}
