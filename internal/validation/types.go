package validation

import "github.com/kareem-ic/paysim-sandbox/internal/payments"

// AuthorizeRequest is the payload for POST /payments/authorize
type AuthorizeRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`                     // minor units
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`           // defaults to USD
	CardNumber  string `json:"card_number" validate:"required,min=13,max=19,luhn"` // digits only
	CardHolder  string `json:"card_holder" validate:"required,min=1,max=100"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,gte=2024"`
	CVV         string `json:"cvv" validate:"required,min=3,max=4,numeric"`
	MerchantID  string `json:"merchant_id" validate:"required,min=1,max=50"`
	Description string `json:"description,omitempty" validate:"max=200"`
}

// CaptureRequest is the payload for POST /payments/capture
type CaptureRequest struct {
	AuthID      string `json:"auth_id" validate:"required,min=1,max=50"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	MerchantID  string `json:"merchant_id" validate:"required,min=1,max=50"`
	Description string `json:"description,omitempty" validate:"max=200"`
}

// RefundRequest is the payload for POST /payments/refund
type RefundRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,min=1,max=50"` // a capture id
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"omitempty,len=3,alpha"`
	MerchantID    string `json:"merchant_id" validate:"required,min=1,max=50"`
	Reason        string `json:"reason,omitempty" validate:"max=200"`
}

func (r AuthorizeRequest) Engine() payments.AuthorizeRequest {
	return payments.AuthorizeRequest{
		Amount:      r.Amount,
		Currency:    r.Currency,
		CardNumber:  r.CardNumber,
		CardHolder:  r.CardHolder,
		ExpiryMonth: r.ExpiryMonth,
		ExpiryYear:  r.ExpiryYear,
		CVV:         r.CVV,
		MerchantID:  r.MerchantID,
		Description: r.Description,
	}
}

func (r CaptureRequest) Engine() payments.CaptureRequest {
	return payments.CaptureRequest{
		AuthID:      r.AuthID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		MerchantID:  r.MerchantID,
		Description: r.Description,
	}
}

func (r RefundRequest) Engine() payments.RefundRequest {
	return payments.RefundRequest{
		TransactionID: r.TransactionID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		MerchantID:    r.MerchantID,
		Reason:        r.Reason,
	}
}
