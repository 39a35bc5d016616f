package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/kareem-ic/paysim-sandbox/internal/aws"
)

const (
	// DefaultTTL is how long a stored result is replayed.
	DefaultTTL = 24 * time.Hour
	// DefaultLease bounds how long an unfinished claim blocks other requests.
	DefaultLease = 30 * time.Second
)

// ErrConditionFailed indicates a conditional write failed (e.g. the claim is owned by another request)
var ErrConditionFailed = errors.New("conditional check failed")

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	lease     time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: how long records are kept (24h by default).
// lease: how long an IN_PROGRESS claim is honoured before it can be taken over.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow, lease time.Duration) *Store {
	if ttlWindow <= 0 {
		ttlWindow = DefaultTTL
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		lease:     lease,
		nowFunc:   time.Now,
	}
}

// Key builds the partition key for an (operation, client key) pair.
func Key(operation, clientKey string) string {
	return operation + "#" + clientKey
}

// Get retrieves an idempotency record. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, operation, clientKey string) (*IdempotencyRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(operation, clientKey)},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// Claim writes an IN_PROGRESS record for c.
// With an empty prevOwner the write only succeeds if no record exists; otherwise
// it replaces the IN_PROGRESS claim held by prevOwner (a stale claim takeover).
// Returns (true, nil) when the claim is held, (false, nil) when another request
// holds or has finished the key, (false, err) on other errors.
func (s *Store) Claim(ctx context.Context, c Claim, prevOwner string) (bool, error) {
	now := s.nowFunc()
	rec := IdempotencyRecord{
		IdempotencyKey:       Key(c.Operation, c.ClientKey),
		Operation:            c.Operation,
		ClientKey:            c.ClientKey,
		Status:               StatusInProgress,
		Owner:                c.Owner,
		TransactionID:        c.TransactionID,
		TransactionCreatedAt: c.TransactionCreatedAt,
		ResponseBody:         c.ResponseBody,
		CreatedAt:            now,
		UpdatedAt:            now,
		LeaseExpiresAt:       now.Add(s.lease).UnixMilli(),
		ExpiresAt:            now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
	}
	if prevOwner != "" {
		input.ConditionExpression = awsString("#s = :in_progress AND #o = :prev")
		input.ExpressionAttributeNames = map[string]string{"#s": "status", "#o": "owner"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":in_progress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":prev":        &types.AttributeValueMemberS{Value: prevOwner},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// MarkDone flips the claim held by owner to DONE. The response stored at claim
// time becomes the replayed result.
func (s *Store) MarkDone(ctx context.Context, operation, clientKey, owner string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(operation, clientKey)},
		},
		UpdateExpression:    awsString("SET #s = :done, updated_at = :ua"),
		ConditionExpression: awsString("#o = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
			"#o": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done":  &types.AttributeValueMemberS{Value: StatusDone},
			":owner": &types.AttributeValueMemberS{Value: owner},
			":ua":    &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// Release deletes an IN_PROGRESS claim held by owner so the key can be retried.
func (s *Store) Release(ctx context.Context, operation, clientKey, owner string) error {
	input := &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"idempotency_key": &types.AttributeValueMemberS{Value: Key(operation, clientKey)},
		},
		ConditionExpression: awsString("#s = :in_progress AND #o = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
			"#o": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":in_progress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":owner":       &types.AttributeValueMemberS{Value: owner},
		},
	}
	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("delete item (release): %w", err)
	}
	return nil
}

// detect conditional check failure
func isConditionFailed(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

// Helpers
func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
