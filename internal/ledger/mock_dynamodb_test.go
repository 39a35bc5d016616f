package ledger

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory table keyed by (transaction_id, created_at).
// Query supports the base-table key condition and the auth_id index with its
// type filter; pageSize > 0 splits index results into pages.
type mockDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	queries  int
	putErr   error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return nil, m.putErr
	}
	k := strAttr(params.Item, "transaction_id") + "|" + strAttr(params.Item, "created_at")
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(transaction_id)" {
		if _, ok := m.items[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := strAttr(params.Key, "transaction_id") + "|" + strAttr(params.Key, "created_at")
	item, ok := m.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("ledger records are immutable")
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	return nil, errors.New("ledger records are immutable")
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	var keyAttr, keyVal string
	if params.IndexName != nil {
		keyAttr, keyVal = "auth_id", strAttr(params.ExpressionAttributeValues, ":auth_id")
	} else {
		keyAttr, keyVal = "transaction_id", strAttr(params.ExpressionAttributeValues, ":id")
	}

	var matched []map[string]types.AttributeValue
	for _, item := range m.items {
		if strAttr(item, keyAttr) == keyVal {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return strAttr(matched[i], "created_at") < strAttr(matched[j], "created_at")
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		start, _ = strconv.Atoi(params.ExclusiveStartKey["offset"].(*types.AttributeValueMemberN).Value)
	}
	end := len(matched)
	if params.Limit != nil && start+int(*params.Limit) < end {
		end = start + int(*params.Limit)
	}
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}
	page := matched[start:end]

	out := &dyn.QueryOutput{}
	if end < len(matched) && m.pageSize > 0 {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"offset": &types.AttributeValueMemberN{Value: strconv.Itoa(end)},
		}
	}
	for _, item := range page {
		if params.FilterExpression != nil {
			if strAttr(item, "type") != strAttr(params.ExpressionAttributeValues, ":type") {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
