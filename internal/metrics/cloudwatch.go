package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/apsdehal/go-logger"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/kareem-ic/paysim-sandbox/internal/aws"
)

// maxBatch is the number of datums sent per PutMetricData call.
const maxBatch = 20

// CloudWatch buffers observations and ships them as custom metrics.
// Call Flush at the end of a Lambda invocation or periodically from a server.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *logger.Logger
	nowFunc   func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewCloudWatch returns a recorder publishing into namespace.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log *logger.Logger) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		log:       log,
		nowFunc:   time.Now,
	}
}

func (c *CloudWatch) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	now := c.nowFunc()
	dims := []cwtypes.Dimension{
		{Name: sdkaws.String("Operation"), Value: sdkaws.String(operation)},
		{Name: sdkaws.String("Outcome"), Value: sdkaws.String(outcome)},
	}
	c.add(
		cwtypes.MetricDatum{
			MetricName: sdkaws.String("Operations"),
			Dimensions: dims,
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		},
		cwtypes.MetricDatum{
			MetricName: sdkaws.String("OperationLatency"),
			Dimensions: dims[:1],
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      sdkaws.Float64(float64(elapsed) / float64(time.Millisecond)),
		},
	)
}

func (c *CloudWatch) ObserveNotification(eventType, outcome string) {
	now := c.nowFunc()
	c.add(cwtypes.MetricDatum{
		MetricName: sdkaws.String("Notifications"),
		Dimensions: []cwtypes.Dimension{
			{Name: sdkaws.String("EventType"), Value: sdkaws.String(eventType)},
			{Name: sdkaws.String("Outcome"), Value: sdkaws.String(outcome)},
		},
		Timestamp: &now,
		Unit:      cwtypes.StandardUnitCount,
		Value:     sdkaws.Float64(1),
	})
}

func (c *CloudWatch) add(datums ...cwtypes.MetricDatum) {
	c.mu.Lock()
	c.pending = append(c.pending, datums...)
	c.mu.Unlock()
}

// Flush sends every buffered datum. Datums of a failed batch are dropped.
func (c *CloudWatch) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	var firstErr error
	for start := 0; start < len(pending); start += maxBatch {
		end := start + maxBatch
		if end > len(pending) {
			end = len(pending)
		}
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  &c.namespace,
			MetricData: pending[start:end],
		})
		if err != nil {
			c.log.Errorf("cloudwatch: put %d datums: %v", end-start, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run flushes every interval until ctx is done, then flushes once more.
func (c *CloudWatch) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = c.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Flush(flushCtx)
			cancel()
			return
		}
	}
}
