package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/apsdehal/go-logger"

	"github.com/kareem-ic/paysim-sandbox/internal/metrics"
)

// Sink delivers one sealed message. Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, eventType string, message []byte) error
}

// Notifier publishes signed events on a Sink in the background. Each event
// gets one attempt bounded by timeout; failures are logged and counted.
type Notifier struct {
	sink    Sink
	secret  []byte
	timeout time.Duration
	log     *logger.Logger
	metrics metrics.Recorder
	nowFunc func() time.Time
	wg      sync.WaitGroup
}

// New returns a Notifier. A nil recorder disables metrics.
func New(sink Sink, secret string, timeout time.Duration, log *logger.Logger, rec metrics.Recorder) *Notifier {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Notifier{
		sink:    sink,
		secret:  []byte(secret),
		timeout: timeout,
		log:     log,
		metrics: rec,
		nowFunc: time.Now,
	}
}

// Publish seals data under eventType and sends it asynchronously. It never
// blocks on the sink and never reports failure to the caller. Cancelling ctx
// after Publish returns does not abort the send.
func (n *Notifier) Publish(ctx context.Context, eventType string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		n.fail(eventType, "marshal data", err)
		return
	}
	msg, err := Seal(n.secret, Envelope{
		EventType: eventType,
		Timestamp: n.nowFunc().UTC().Format(time.RFC3339Nano),
		Data:      body,
	})
	if err != nil {
		n.fail(eventType, "seal", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := n.sink.Send(sendCtx, eventType, msg); err != nil {
			n.fail(eventType, "send", err)
			return
		}
		n.metrics.ObserveNotification(eventType, metrics.OutcomeSuccess)
		n.log.Debugf("notify: published %s", eventType)
	}()
}

func (n *Notifier) fail(eventType, stage string, err error) {
	n.metrics.ObserveNotification(eventType, metrics.OutcomeFailure)
	n.log.Errorf("notify: %s %s failed: %v", eventType, stage, err)
}

// Wait blocks until every in-flight publish has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close waits for in-flight publishes and closes the sink if it holds resources.
func (n *Notifier) Close() error {
	n.Wait()
	if c, ok := n.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
