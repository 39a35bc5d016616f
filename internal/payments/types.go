package payments

// Operation names; also the idempotency scope and the metrics label.
const (
	OpAuthorize = "authorize"
	OpCapture   = "capture"
	OpRefund    = "refund"
)

const (
	// DefaultCurrency applies when a request leaves currency empty.
	DefaultCurrency = "USD"
	// AuthorizationLimit is the simulated decline ceiling, in minor units ($10,000.00).
	AuthorizationLimit int64 = 1_000_000

	// CreatedAtLayout is fixed width so created_at sorts lexicographically.
	CreatedAtLayout = "2006-01-02T15:04:05.000000Z"
)

// Response messages.
const (
	MsgAuthorized = "Authorization successful"
	MsgDeclined   = "Amount exceeds limit"
	MsgCaptured   = "Payment captured successfully"
	MsgRefunded   = "Refund processed successfully"
)

type AuthorizeRequest struct {
	Amount      int64
	Currency    string
	CardNumber  string
	CardHolder  string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
	MerchantID  string
	Description string
}

type CaptureRequest struct {
	AuthID      string
	Amount      int64
	Currency    string
	MerchantID  string
	Description string
}

type RefundRequest struct {
	TransactionID string // the capture being refunded
	Amount        int64
	Currency      string
	MerchantID    string
	Reason        string
}

// Payment is the response payload of every operation. It is stored verbatim
// as the idempotent result and published as the event data.
type Payment struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
	AuthID        string `json:"auth_id,omitempty"`
	LinkedID      string `json:"linked_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Result wraps a Payment with whether it was replayed from an earlier request.
type Result struct {
	Payment  Payment
	Replayed bool
}
