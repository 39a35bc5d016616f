// Package config loads service settings from the environment and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Notifier backends.
const (
	BackendSQS   = "sqs"
	BackendSNS   = "sns"
	BackendKafka = "kafka"
	BackendNone  = "none"
)

// FileEnv names the environment variable pointing at an optional YAML config file.
const FileEnv = "PAYSIM_CONFIG"

type Config struct {
	ServiceName         string `mapstructure:"service_name"`
	AWSRegion           string `mapstructure:"aws_region"`
	AWSEndpointOverride string `mapstructure:"aws_endpoint_override"`

	PaymentsTable    string        `mapstructure:"payments_table"`
	IdempotencyTable string        `mapstructure:"idempotency_table"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
	ClaimLease       time.Duration `mapstructure:"claim_lease"`

	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	AuthLookupAttempts int           `mapstructure:"auth_lookup_attempts"`
	AuthLookupBackoff  time.Duration `mapstructure:"auth_lookup_backoff"`

	NotifierBackend    string        `mapstructure:"notifier_backend"`
	NotifyTimeout      time.Duration `mapstructure:"notify_timeout"`
	WebhookSecret      string        `mapstructure:"webhook_secret"`
	WebhookQueueURL    string        `mapstructure:"webhook_queue_url"`
	WebhookTopicARN    string        `mapstructure:"webhook_topic_arn"`
	KafkaBrokers       []string      `mapstructure:"kafka_brokers"`
	KafkaTopic         string        `mapstructure:"kafka_topic"`
	WebhookEndpointURL string        `mapstructure:"webhook_endpoint_url"`
	DeliveryTimeout    time.Duration `mapstructure:"delivery_timeout"`

	CloudWatchNamespace string `mapstructure:"cloudwatch_namespace"`
	LogLevel            string `mapstructure:"log_level"`
	RunLocal            bool   `mapstructure:"run_local"`
	HTTPAddr            string `mapstructure:"http_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "payments-api")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_endpoint_override", "")
	v.SetDefault("payments_table", "payments-ledger")
	v.SetDefault("idempotency_table", "payments-idempotency")
	v.SetDefault("idempotency_ttl", 24*time.Hour)
	v.SetDefault("claim_lease", 30*time.Second)
	v.SetDefault("store_timeout", 3*time.Second)
	v.SetDefault("auth_lookup_attempts", 3)
	v.SetDefault("auth_lookup_backoff", 100*time.Millisecond)
	v.SetDefault("notifier_backend", BackendSNS)
	v.SetDefault("notify_timeout", 2*time.Second)
	v.SetDefault("webhook_secret", "")
	v.SetDefault("webhook_queue_url", "")
	v.SetDefault("webhook_topic_arn", "")
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "payments-webhooks")
	v.SetDefault("webhook_endpoint_url", "")
	v.SetDefault("delivery_timeout", 5*time.Second)
	v.SetDefault("cloudwatch_namespace", "")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("run_local", false)
	v.SetDefault("http_addr", ":8080")
}

// Load reads defaults, then the file named by PAYSIM_CONFIG (if any), then
// environment variables (upper-cased keys, e.g. PAYMENTS_TABLE).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.NotifierBackend = strings.ToLower(cfg.NotifierBackend)
	return &cfg, nil
}

// Validate checks the settings the API needs before it can serve requests.
func (c *Config) Validate() error {
	if c.PaymentsTable == "" {
		return fmt.Errorf("payments_table is required")
	}
	if c.IdempotencyTable == "" {
		return fmt.Errorf("idempotency_table is required")
	}
	if c.StoreTimeout <= 0 || c.NotifyTimeout <= 0 {
		return fmt.Errorf("store_timeout and notify_timeout must be positive")
	}
	// A lease that can expire during a write lets a second request take over
	// the key while the first Put is still in flight.
	if c.ClaimLease <= c.StoreTimeout {
		return fmt.Errorf("claim_lease (%s) must exceed store_timeout (%s)", c.ClaimLease, c.StoreTimeout)
	}
	if c.AuthLookupAttempts < 1 {
		return fmt.Errorf("auth_lookup_attempts must be at least 1")
	}

	switch c.NotifierBackend {
	case BackendNone:
		return nil
	case BackendSQS:
		if c.WebhookQueueURL == "" {
			return fmt.Errorf("webhook_queue_url is required for the sqs notifier")
		}
	case BackendSNS:
		if c.WebhookTopicARN == "" {
			return fmt.Errorf("webhook_topic_arn is required for the sns notifier")
		}
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("kafka_brokers and kafka_topic are required for the kafka notifier")
		}
	default:
		return fmt.Errorf("unknown notifier_backend %q", c.NotifierBackend)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("webhook_secret is required when notifications are enabled")
	}
	return nil
}
