package idempotency

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a very small in-memory mock for the idempotency table. It
// evaluates only the condition expressions the Store issues.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
	deleteCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func sval(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func keyOf(attrs map[string]types.AttributeValue) (string, error) {
	k := sval(attrs, "idempotency_key")
	if k == "" {
		return "", errors.New("missing key")
	}
	return k, nil
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	existing, exists := m.table[k]
	if params.ConditionExpression != nil {
		switch *params.ConditionExpression {
		case "attribute_not_exists(idempotency_key)":
			if exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case "#s = :in_progress AND #o = :prev":
			if !exists ||
				sval(existing, "status") != StatusInProgress ||
				sval(existing, "owner") != sval(params.ExpressionAttributeValues, ":prev") {
				return nil, &types.ConditionalCheckFailedException{}
			}
		default:
			return nil, errors.New("unsupported condition: " + *params.ConditionExpression)
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok || sval(item, "owner") != sval(params.ExpressionAttributeValues, ":owner") {
		return nil, &types.ConditionalCheckFailedException{}
	}
	// supports: SET #s = :done, updated_at = :ua
	updated := map[string]types.AttributeValue{}
	for name, v := range item {
		updated[name] = v
	}
	updated["status"] = params.ExpressionAttributeValues[":done"]
	updated["updated_at"] = params.ExpressionAttributeValues[":ua"]
	m.table[k] = updated
	return &dyn.UpdateItemOutput{Attributes: updated}, nil
}

func (m *simpleMock) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok ||
		sval(item, "status") != StatusInProgress ||
		sval(item, "owner") != sval(params.ExpressionAttributeValues, ":owner") {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(m.table, k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *simpleMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("query not supported on idempotency table")
}
