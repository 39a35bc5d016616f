package ledger

// Kind is the transaction type stored in the "type" attribute.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindCapture       Kind = "capture"
	KindRefund        Kind = "refund"
)

// Status values for ledger records.
type Status string

const (
	StatusApproved  Status = "approved"  // authorization only
	StatusDeclined  Status = "declined"  // authorization only
	StatusCompleted Status = "completed" // capture and refund
)

// Transaction is one immutable row of the payments ledger. A state change is
// always a new row pointing at its parent through LinkedID.
type Transaction struct {
	TransactionID string `dynamodbav:"transaction_id" json:"transaction_id"` // PK
	CreatedAt     string `dynamodbav:"created_at" json:"created_at"`         // SK, fixed-width UTC timestamp
	Type          Kind   `dynamodbav:"type" json:"type"`
	Status        Status `dynamodbav:"status" json:"status"`
	Amount        int64  `dynamodbav:"amount" json:"amount"` // minor units
	Currency      string `dynamodbav:"currency" json:"currency"`
	MerchantID    string `dynamodbav:"merchant_id" json:"merchant_id"`
	Description   string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Reason        string `dynamodbav:"reason,omitempty" json:"reason,omitempty"`
	CardLast4     string `dynamodbav:"card_last4,omitempty" json:"card_last4,omitempty"`
	CardHolder    string `dynamodbav:"card_holder,omitempty" json:"card_holder,omitempty"`
	AuthID        string `dynamodbav:"auth_id,omitempty" json:"auth_id,omitempty"` // GSI auth_id_index
	LinkedID      string `dynamodbav:"linked_id,omitempty" json:"linked_id,omitempty"`
	TTL           int64  `dynamodbav:"ttl" json:"-"` // epoch seconds
}
