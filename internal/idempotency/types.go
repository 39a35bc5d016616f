package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
// An IN_PROGRESS record is a claim: it already carries the ledger key and the
// response the owning request will produce, so a later request can tell
// whether that work committed.
type IdempotencyRecord struct {
	IdempotencyKey       string    `dynamodbav:"idempotency_key"` // PK: operation#client key
	Operation            string    `dynamodbav:"operation"`
	ClientKey            string    `dynamodbav:"client_key"`
	Status               string    `dynamodbav:"status"`
	Owner                string    `dynamodbav:"owner"`
	TransactionID        string    `dynamodbav:"transaction_id,omitempty"`
	TransactionCreatedAt string    `dynamodbav:"transaction_created_at,omitempty"`
	ResponseBody         string    `dynamodbav:"response_body,omitempty"`
	CreatedAt            time.Time `dynamodbav:"created_at"`
	UpdatedAt            time.Time `dynamodbav:"updated_at"`
	LeaseExpiresAt       int64     `dynamodbav:"lease_expires_at"` // epoch millis
	ExpiresAt            int64     `dynamodbav:"expires_at"`       // TTL epoch seconds
}

// LeaseExpired reports whether an IN_PROGRESS claim may be taken over.
func (r *IdempotencyRecord) LeaseExpired(now time.Time) bool {
	return r.Status == StatusInProgress && now.UnixMilli() >= r.LeaseExpiresAt
}

// Claim describes the work a request is about to perform under a key.
type Claim struct {
	Operation            string
	ClientKey            string
	Owner                string
	TransactionID        string
	TransactionCreatedAt string
	ResponseBody         string
}
