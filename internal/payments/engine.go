// Package payments implements the authorization, capture and refund state
// machine on top of the ledger and idempotency stores.
package payments

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apsdehal/go-logger"
	"github.com/google/uuid"
	"github.com/kareem-ic/paysim-sandbox/internal/card"
	"github.com/kareem-ic/paysim-sandbox/internal/idempotency"
	"github.com/kareem-ic/paysim-sandbox/internal/ledger"
	"github.com/kareem-ic/paysim-sandbox/internal/metrics"
	"github.com/kareem-ic/paysim-sandbox/internal/notify"
)

// Ledger is the subset of *ledger.Store the engine needs.
type Ledger interface {
	Put(ctx context.Context, tx ledger.Transaction) error
	Get(ctx context.Context, transactionID, createdAt string) (*ledger.Transaction, error)
	FindByID(ctx context.Context, transactionID string) (*ledger.Transaction, error)
	FindAuthorization(ctx context.Context, authID string) (*ledger.Transaction, error)
}

// IdempotencyStore is the subset of *idempotency.Store the engine needs.
type IdempotencyStore interface {
	Get(ctx context.Context, operation, clientKey string) (*idempotency.IdempotencyRecord, error)
	Claim(ctx context.Context, c idempotency.Claim, prevOwner string) (bool, error)
	MarkDone(ctx context.Context, operation, clientKey, owner string) error
	Release(ctx context.Context, operation, clientKey, owner string) error
}

// Notifier publishes state changes. Publish must not block on delivery.
type Notifier interface {
	Publish(ctx context.Context, eventType string, data any)
}

// Options tunes store timeouts and the authorization lookup retry.
type Options struct {
	StoreTimeout       time.Duration
	AuthLookupAttempts int
	AuthLookupBackoff  time.Duration
}

// DefaultOptions mirror the config defaults.
var DefaultOptions = Options{
	StoreTimeout:       3 * time.Second,
	AuthLookupAttempts: 3,
	AuthLookupBackoff:  100 * time.Millisecond,
}

// Engine processes payment operations. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	ledger   Ledger
	idem     IdempotencyStore
	notifier Notifier
	log      *logger.Logger
	metrics  metrics.Recorder
	opts     Options
	nowFunc  func() time.Time
}

// New wires an Engine. A nil recorder disables metrics.
func New(l Ledger, idem IdempotencyStore, n Notifier, log *logger.Logger, rec metrics.Recorder, opts Options) *Engine {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultOptions.StoreTimeout
	}
	if opts.AuthLookupAttempts <= 0 {
		opts.AuthLookupAttempts = 1
	}
	return &Engine{
		ledger:   l,
		idem:     idem,
		notifier: n,
		log:      log,
		metrics:  rec,
		opts:     opts,
		nowFunc:  time.Now,
	}
}

// Authorize places a simulated hold on a card.
func (e *Engine) Authorize(ctx context.Context, idempotencyKey string, req AuthorizeRequest) (*Result, error) {
	return e.run(ctx, OpAuthorize, idempotencyKey, func(ctx context.Context) (*plan, error) {
		if !card.Valid(req.CardNumber) {
			return nil, newError(KindValidation, "invalid card number")
		}
		if req.Amount <= 0 {
			return nil, newError(KindValidation, "amount must be positive")
		}

		status, message := ledger.StatusApproved, MsgAuthorized
		if req.Amount > AuthorizationLimit {
			status, message = ledger.StatusDeclined, MsgDeclined
		}

		authID := newID("auth_", 24)
		tx := ledger.Transaction{
			TransactionID: newID("auth_", 16),
			CreatedAt:     e.timestamp(),
			Type:          ledger.KindAuthorization,
			Status:        status,
			Amount:        req.Amount,
			Currency:      currencyOrDefault(req.Currency),
			MerchantID:    req.MerchantID,
			Description:   req.Description,
			CardLast4:     card.Last4(req.CardNumber),
			CardHolder:    req.CardHolder,
			AuthID:        authID,
		}
		return &plan{tx: tx, event: notify.EventAuthorized, payment: paymentFor(tx, message)}, nil
	})
}

// Capture settles part or all of an approved authorization.
func (e *Engine) Capture(ctx context.Context, idempotencyKey string, req CaptureRequest) (*Result, error) {
	return e.run(ctx, OpCapture, idempotencyKey, func(ctx context.Context) (*plan, error) {
		if strings.TrimSpace(req.AuthID) == "" {
			return nil, newError(KindValidation, "auth_id is required")
		}
		if req.Amount <= 0 {
			return nil, newError(KindValidation, "amount must be positive")
		}

		auth, err := e.findAuthorization(ctx, req.AuthID)
		if err != nil {
			return nil, err
		}
		if auth.Status != ledger.StatusApproved {
			return nil, newError(KindConflict, fmt.Sprintf("authorization %s is %s", req.AuthID, auth.Status))
		}
		if req.Amount > auth.Amount {
			return nil, newError(KindInvalidAmount, fmt.Sprintf("capture amount %d exceeds authorized amount %d", req.Amount, auth.Amount))
		}

		tx := ledger.Transaction{
			TransactionID: newID("capture_", 16),
			CreatedAt:     e.timestamp(),
			Type:          ledger.KindCapture,
			Status:        ledger.StatusCompleted,
			Amount:        req.Amount,
			Currency:      currencyOrDefault(req.Currency),
			MerchantID:    req.MerchantID,
			Description:   req.Description,
			AuthID:        req.AuthID,
			LinkedID:      req.AuthID,
		}
		return &plan{tx: tx, event: notify.EventCaptured, payment: paymentFor(tx, MsgCaptured)}, nil
	})
}

// Refund returns part or all of a captured amount.
func (e *Engine) Refund(ctx context.Context, idempotencyKey string, req RefundRequest) (*Result, error) {
	return e.run(ctx, OpRefund, idempotencyKey, func(ctx context.Context) (*plan, error) {
		if strings.TrimSpace(req.TransactionID) == "" {
			return nil, newError(KindValidation, "transaction_id is required")
		}
		if req.Amount <= 0 {
			return nil, newError(KindValidation, "amount must be positive")
		}

		lookupCtx, cancel := e.storeContext(ctx)
		target, err := e.ledger.FindByID(lookupCtx, req.TransactionID)
		cancel()
		if err != nil {
			return nil, storageError("load transaction", err)
		}
		if target == nil {
			return nil, newError(KindNotFound, fmt.Sprintf("transaction %s not found", req.TransactionID))
		}
		if target.Type != ledger.KindCapture {
			return nil, newError(KindInvalidState, fmt.Sprintf("transaction %s is a %s, only captures can be refunded", req.TransactionID, target.Type))
		}
		if req.Amount > target.Amount {
			return nil, newError(KindInvalidAmount, fmt.Sprintf("refund amount %d exceeds captured amount %d", req.Amount, target.Amount))
		}

		tx := ledger.Transaction{
			TransactionID: newID("refund_", 16),
			CreatedAt:     e.timestamp(),
			Type:          ledger.KindRefund,
			Status:        ledger.StatusCompleted,
			Amount:        req.Amount,
			Currency:      currencyOrDefault(req.Currency),
			MerchantID:    req.MerchantID,
			Reason:        req.Reason,
			LinkedID:      target.TransactionID,
		}
		p := paymentFor(tx, MsgRefunded)
		return &plan{tx: tx, event: notify.EventRefunded, payment: p}, nil
	})
}

// Transaction returns the newest ledger record for transactionID.
func (e *Engine) Transaction(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	tx, err := e.ledger.FindByID(ctx, transactionID)
	if err != nil {
		return nil, storageError("load transaction", err)
	}
	if tx == nil {
		return nil, newError(KindNotFound, fmt.Sprintf("transaction %s not found", transactionID))
	}
	return tx, nil
}

// findAuthorization queries the auth_id index. The index is eventually
// consistent, so a miss is retried a bounded number of times.
func (e *Engine) findAuthorization(ctx context.Context, authID string) (*ledger.Transaction, error) {
	for attempt := 1; ; attempt++ {
		lookupCtx, cancel := e.storeContext(ctx)
		auth, err := e.ledger.FindAuthorization(lookupCtx, authID)
		cancel()
		if err != nil {
			return nil, storageError("load authorization", err)
		}
		if auth != nil {
			return auth, nil
		}
		if attempt >= e.opts.AuthLookupAttempts {
			return nil, newError(KindNotFound, fmt.Sprintf("authorization %s not found", authID))
		}

		select {
		case <-ctx.Done():
			return nil, storageError("load authorization", ctx.Err())
		case <-time.After(e.opts.AuthLookupBackoff * time.Duration(attempt)):
		}
	}
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

func (e *Engine) timestamp() string {
	return e.nowFunc().UTC().Format(CreatedAtLayout)
}

func paymentFor(tx ledger.Transaction, message string) Payment {
	p := Payment{
		TransactionID: tx.TransactionID,
		Status:        string(tx.Status),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		CreatedAt:     tx.CreatedAt,
		AuthID:        tx.AuthID,
		LinkedID:      tx.LinkedID,
		Message:       message,
	}
	return p
}

func currencyOrDefault(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

// newID returns prefix followed by n hex characters of a random UUID.
func newID(prefix string, n int) string {
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:])[:n]
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
