package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func authorization(id, authID, createdAt string, amount int64) Transaction {
	return Transaction{
		TransactionID: id,
		CreatedAt:     createdAt,
		Type:          KindAuthorization,
		Status:        StatusApproved,
		Amount:        amount,
		Currency:      "USD",
		MerchantID:    "merchant_123",
		CardLast4:     "4242",
		AuthID:        authID,
	}
}

func TestPut_SetsTTLAndRejectsDuplicates(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "payments-ledger")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.nowFunc = func() time.Time { return now }

	tx := authorization("auth_1", "auth_a1", "2025-01-01T00:00:00Z", 5000)
	if err := store.Put(context.Background(), tx); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	item := mock.items["auth_1|2025-01-01T00:00:00Z"]
	if item == nil {
		t.Fatalf("item not stored")
	}
	var got Transaction
	if err := attributevalue.UnmarshalMap(item, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TTL != now.Add(DefaultRetention).Unix() {
		t.Fatalf("ttl = %d, want %d", got.TTL, now.Add(DefaultRetention).Unix())
	}

	err := store.Put(context.Background(), tx)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPut_MissingKey(t *testing.T) {
	store := NewStore(newMockDynamo(), "payments-ledger")
	if err := store.Put(context.Background(), Transaction{TransactionID: "x"}); err == nil {
		t.Fatal("expected error for missing created_at")
	}
}

func TestPut_StorageError(t *testing.T) {
	mock := newMockDynamo()
	mock.putErr = &types.ProvisionedThroughputExceededException{}
	store := NewStore(mock, "payments-ledger")

	err := store.Put(context.Background(), authorization("auth_1", "auth_a1", "t1", 1))
	if err == nil || errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "payments-ledger")
	ctx := context.Background()

	if err := store.Put(ctx, authorization("auth_1", "auth_a1", "t1", 5000)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "auth_1", "t1")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Amount != 5000 || got.AuthID != "auth_a1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	missing, err := store.Get(ctx, "auth_1", "other")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", missing, err)
	}
}

func TestFindByID_ReturnsNewest(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "payments-ledger")
	ctx := context.Background()

	older := Transaction{TransactionID: "capture_1", CreatedAt: "2025-01-01T00:00:00Z", Type: KindCapture, Status: StatusCompleted, Amount: 10}
	newer := older
	newer.CreatedAt = "2025-01-02T00:00:00Z"
	newer.Amount = 20
	for _, tx := range []Transaction{older, newer} {
		if err := store.Put(ctx, tx); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	got, err := store.FindByID(ctx, "capture_1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got == nil || got.Amount != 20 {
		t.Fatalf("expected newest record, got %+v", got)
	}

	none, err := store.FindByID(ctx, "capture_missing")
	if err != nil || none != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", none, err)
	}
}

func TestFindAuthorization_FiltersCaptures(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "payments-ledger")
	ctx := context.Background()

	// capture sorts before the authorization in the index and must be skipped
	capture := Transaction{
		TransactionID: "capture_1",
		CreatedAt:     "2025-01-01T00:00:00Z",
		Type:          KindCapture,
		Status:        StatusCompleted,
		Amount:        100,
		AuthID:        "auth_a1",
		LinkedID:      "auth_a1",
	}
	if err := store.Put(ctx, capture); err != nil {
		t.Fatalf("Put capture: %v", err)
	}
	if err := store.Put(ctx, authorization("auth_1", "auth_a1", "2025-01-02T00:00:00Z", 5000)); err != nil {
		t.Fatalf("Put auth: %v", err)
	}

	mock.pageSize = 1
	got, err := store.FindAuthorization(ctx, "auth_a1")
	if err != nil {
		t.Fatalf("FindAuthorization: %v", err)
	}
	if got == nil || got.Type != KindAuthorization || got.TransactionID != "auth_1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if mock.queries != 2 {
		t.Fatalf("expected pagination across 2 pages, got %d queries", mock.queries)
	}
}

func TestFindAuthorization_NotFound(t *testing.T) {
	store := NewStore(newMockDynamo(), "payments-ledger")
	got, err := store.FindAuthorization(context.Background(), "auth_nope")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", got, err)
	}
}
