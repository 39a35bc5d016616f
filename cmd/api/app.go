package main

import (
	"context"
	"fmt"
	"time"

	"github.com/apsdehal/go-logger"
	"github.com/gin-gonic/gin"
	"github.com/kareem-ic/paysim-sandbox/internal/aws"
	"github.com/kareem-ic/paysim-sandbox/internal/config"
	"github.com/kareem-ic/paysim-sandbox/internal/handlers"
	"github.com/kareem-ic/paysim-sandbox/internal/idempotency"
	"github.com/kareem-ic/paysim-sandbox/internal/ledger"
	"github.com/kareem-ic/paysim-sandbox/internal/logging"
	"github.com/kareem-ic/paysim-sandbox/internal/metrics"
	"github.com/kareem-ic/paysim-sandbox/internal/notify"
	"github.com/kareem-ic/paysim-sandbox/internal/payments"
)

// cloudWatchFlushInterval applies to the long-running server; Lambda flushes per invocation.
const cloudWatchFlushInterval = 30 * time.Second

// app holds everything main needs to serve and shut down.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	router     *gin.Engine
	notifier   *notify.Notifier
	cloudWatch *metrics.CloudWatch // nil when no namespace is configured
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	var rec metrics.Recorder = metrics.Prometheus{}
	if cfg.CloudWatchNamespace != "" {
		a.cloudWatch = metrics.NewCloudWatch(clients.CloudWatch, cfg.CloudWatchNamespace, log)
		rec = metrics.Multi(rec, a.cloudWatch)
	}

	sink, err := newSink(cfg, clients)
	if err != nil {
		return nil, err
	}
	a.notifier = notify.New(sink, cfg.WebhookSecret, cfg.NotifyTimeout, log, rec)

	engine := payments.New(
		ledger.NewStore(clients.DynamoDB, cfg.PaymentsTable),
		idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL, cfg.ClaimLease),
		a.notifier,
		log,
		rec,
		payments.Options{
			StoreTimeout:       cfg.StoreTimeout,
			AuthLookupAttempts: cfg.AuthLookupAttempts,
			AuthLookupBackoff:  cfg.AuthLookupBackoff,
		},
	)

	a.router = handlers.NewRouter(handlers.RouterConfig{
		Service:     engine,
		Logger:      log,
		ServiceName: cfg.ServiceName,
	})
	return a, nil
}

func newSink(cfg *config.Config, clients *aws.AWSClients) (notify.Sink, error) {
	switch cfg.NotifierBackend {
	case config.BackendSQS:
		return notify.NewQueueSink(aws.NewQueuePublisher(clients.SQS, cfg.WebhookQueueURL)), nil
	case config.BackendSNS:
		return notify.NewTopicSink(aws.NewTopicPublisher(clients.SNS, cfg.WebhookTopicARN)), nil
	case config.BackendKafka:
		return notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.BackendNone:
		return notify.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier backend %q", cfg.NotifierBackend)
	}
}

// drain waits for in-flight notifications and pushes buffered metrics.
func (a *app) drain(ctx context.Context) {
	a.notifier.Wait()
	if a.cloudWatch == nil {
		return
	}
	if err := a.cloudWatch.Flush(ctx); err != nil {
		a.log.Warningf("flush cloudwatch metrics: %v", err)
	}
}

func (a *app) close(ctx context.Context) {
	a.drain(ctx)
	if err := a.notifier.Close(); err != nil {
		a.log.Warningf("close notifier: %v", err)
	}
}
