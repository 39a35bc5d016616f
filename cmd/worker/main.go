package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/kareem-ic/paysim-sandbox/internal/config"
	"github.com/kareem-ic/paysim-sandbox/internal/logging"
	"github.com/kareem-ic/paysim-sandbox/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log, err := logging.New("webhook-relay", cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("webhook_secret is required")
	}

	p := NewProcessor(cfg.WebhookSecret, cfg.WebhookEndpointURL, cfg.DeliveryTimeout, log)

	// If RUN_LOCAL=true, relay a single message for local testing.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body, err = sampleMessage(cfg.WebhookSecret)
			if err != nil {
				log.Fatalf("build sample message: %v", err)
			}
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.Fatalf("local handler failed: err=%v failures=%d", err, len(resp.BatchItemFailures))
		}
		return
	}

	lambda.Start(p.Handle)
}

func sampleMessage(secret string) (string, error) {
	msg, err := notify.Seal([]byte(secret), notify.Envelope{
		EventType: notify.EventAuthorized,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      []byte(`{"transaction_id":"auth_local0000000001","status":"approved","amount":1000,"currency":"USD"}`),
	})
	return string(msg), err
}
