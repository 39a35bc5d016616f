package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apsdehal/go-logger"
	"github.com/aws/aws-lambda-go/events"

	"github.com/kareem-ic/paysim-sandbox/internal/notify"
)

// errPermanent marks failures that a redelivery cannot fix; such messages are dropped.
var errPermanent = errors.New("permanent delivery failure")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Processor verifies notifications from the webhook queue and forwards them
// to the merchant endpoint.
type Processor struct {
	secret   []byte
	endpoint string // empty: verify and log only
	client   httpDoer
	timeout  time.Duration
	log      *logger.Logger
}

// NewProcessor creates a webhook relay processor.
func NewProcessor(secret, endpoint string, timeout time.Duration, log *logger.Logger) *Processor {
	return &Processor{
		secret:   []byte(secret),
		endpoint: endpoint,
		client:   &http.Client{},
		timeout:  timeout,
		log:      log,
	}
}

// Handle processes an SQS batch and reports the messages worth retrying.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	p.log.Debugf("received %d SQS messages", len(ev.Records))
	for _, rec := range ev.Records {
		err := p.processMessage(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, errPermanent):
			p.log.Errorf("dropping message %s: %v", rec.MessageId, err)
		default:
			p.log.Warningf("message %s will be retried: %v", rec.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	raw := unwrapBody(rec.Body)

	msg, env, err := notify.Verify(p.secret, raw)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	if p.endpoint == "" {
		p.log.Infof("verified %s event (no endpoint configured): %s", env.EventType, env.Data)
		return nil
	}
	return p.deliver(ctx, env.EventType, msg)
}

func (p *Processor) deliver(ctx context.Context, eventType string, msg *notify.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(msg.Payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, msg.Signature)
	req.Header.Set(HeaderEvent, eventType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p.log.Infof("delivered %s event to %s", eventType, p.endpoint)
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: endpoint returned %d", errPermanent, resp.StatusCode)
	}
}
