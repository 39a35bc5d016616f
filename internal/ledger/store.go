package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/kareem-ic/paysim-sandbox/internal/aws"
)

// AuthIDIndex is the GSI keyed by auth_id + created_at.
const AuthIDIndex = "auth_id_index"

// DefaultRetention is how long a transaction lives before DynamoDB TTL purges it.
const DefaultRetention = 30 * 24 * time.Hour

// ErrAlreadyExists is returned by Put when a record with the same key is already stored.
var ErrAlreadyExists = errors.New("transaction already exists")

// Store encapsulates operations on the payments ledger table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	retention time.Duration
	nowFunc   func() time.Time
}

// NewStore creates a new ledger Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		retention: DefaultRetention,
		nowFunc:   time.Now,
	}
}

// Put appends tx to the ledger. The write is conditional on the key being
// absent, so an existing record is never overwritten.
func (s *Store) Put(ctx context.Context, tx Transaction) error {
	if tx.TransactionID == "" || tx.CreatedAt == "" {
		return fmt.Errorf("put transaction: missing key")
	}
	if tx.TTL == 0 {
		tx.TTL = s.nowFunc().Add(s.retention).Unix()
	}

	item, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(transaction_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get is a strongly consistent point lookup. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, transactionID, createdAt string) (*Transaction, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"transaction_id": &types.AttributeValueMemberS{Value: transactionID},
			"created_at":     &types.AttributeValueMemberS{Value: createdAt},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var tx Transaction
	if err := attributevalue.UnmarshalMap(out.Item, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// FindByID returns the newest record stored under transactionID without
// knowing its sort key. Returns (nil, nil) if not found.
func (s *Store) FindByID(ctx context.Context, transactionID string) (*Transaction, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("transaction_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: transactionID},
		},
		ScanIndexForward: awsBool(false),
		Limit:            awsInt32(1),
		ConsistentRead:   awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var tx Transaction
	if err := attributevalue.UnmarshalMap(out.Items[0], &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// FindAuthorization resolves the authorization record carrying authID through
// the auth_id index. Captures share the index key, so the query filters on type.
// The index is eventually consistent: a just-written authorization may be missing.
// Returns (nil, nil) if not found.
func (s *Store) FindAuthorization(ctx context.Context, authID string) (*Transaction, error) {
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(AuthIDIndex),
		KeyConditionExpression: awsString("auth_id = :auth_id"),
		FilterExpression:       awsString("#type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#type": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":auth_id": &types.AttributeValueMemberS{Value: authID},
			":type":    &types.AttributeValueMemberS{Value: string(KindAuthorization)},
		},
	}

	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query auth index: %w", err)
		}
		if len(out.Items) > 0 {
			var tx Transaction
			if err := attributevalue.UnmarshalMap(out.Items[0], &tx); err != nil {
				return nil, fmt.Errorf("unmarshal authorization: %w", err)
			}
			return &tx, nil
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
func awsInt32(i int32) *int32    { return &i }
