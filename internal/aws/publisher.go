package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// QueuePublisher wraps an SQS client and a queue URL.
type QueuePublisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewQueuePublisher returns a QueuePublisher bound to a queue URL.
func NewQueuePublisher(sqsClient SQSAPI, queueURL string) *QueuePublisher {
	return &QueuePublisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// SendMessage sends a message to SQS. messageBody should be a JSON string.
// attributes are sent as String MessageAttributes.
func (p *QueuePublisher) SendMessage(ctx context.Context, messageBody string, attributes map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// TopicPublisher wraps an SNS client and a topic ARN.
type TopicPublisher struct {
	SNS      SNSAPI
	TopicARN string
}

// NewTopicPublisher returns a TopicPublisher bound to a topic ARN.
func NewTopicPublisher(snsClient SNSAPI, topicARN string) *TopicPublisher {
	return &TopicPublisher{
		SNS:      snsClient,
		TopicARN: topicARN,
	}
}

// Publish sends a message to the SNS topic with String message attributes.
func (p *TopicPublisher) Publish(ctx context.Context, message string, attributes map[string]string) error {
	input := &sns.PublishInput{
		TopicArn: &p.TopicARN,
		Message:  &message,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]snstypes.MessageAttributeValue{}
		for k, v := range attributes {
			msgAttrs[k] = snstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	if _, err := p.SNS.Publish(ctx, input); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// awsString helper
func awsString(s string) *string { return &s }
