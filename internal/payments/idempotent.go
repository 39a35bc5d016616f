package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kareem-ic/paysim-sandbox/internal/idempotency"
	"github.com/kareem-ic/paysim-sandbox/internal/ledger"
	"github.com/kareem-ic/paysim-sandbox/internal/metrics"
)

// plan is the fully decided outcome of an operation before anything is written.
type plan struct {
	tx      ledger.Transaction
	payment Payment
	event   string
}

type prepareFunc func(ctx context.Context) (*plan, error)

func (e *Engine) run(ctx context.Context, op, key string, prepare prepareFunc) (*Result, error) {
	start := e.nowFunc()
	res, err := e.execute(ctx, op, key, prepare)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = KindOf(err).String()
		if KindOf(err) == KindStorage {
			e.log.Errorf("%s key=%s: %v", op, key, err)
		} else {
			e.log.Infof("%s key=%s rejected: %v", op, key, err)
		}
	case res.Replayed:
		outcome = metrics.OutcomeReplay
	}
	e.metrics.ObserveOperation(op, outcome, e.nowFunc().Sub(start))
	return res, err
}

// execute runs one operation under the idempotency protocol:
//
//  1. a DONE record, or an IN_PROGRESS record whose ledger write is visible,
//     is replayed;
//  2. a live IN_PROGRESS claim yields InProgress, an expired one may be taken over;
//  3. the claim is written conditionally before the ledger record, and
//     released only if a failed ledger write provably did not land;
//  4. only the request that committed publishes.
func (e *Engine) execute(ctx context.Context, op, key string, prepare prepareFunc) (*Result, error) {
	if strings.TrimSpace(key) == "" {
		return nil, newError(KindValidation, "idempotency key is required")
	}

	prev, err := e.lookup(ctx, op, key)
	if err != nil {
		return nil, err
	}
	var prevOwner string
	if prev != nil {
		if prev.Status == idempotency.StatusDone {
			return replay(prev)
		}
		committed, err := e.committed(ctx, prev)
		if err != nil {
			return nil, err
		}
		if committed {
			e.finish(ctx, op, key, prev.Owner)
			return replay(prev)
		}
		if !prev.LeaseExpired(e.nowFunc()) {
			return nil, inProgress(op, key)
		}
		e.log.Warningf("%s key=%s: taking over expired claim of %s", op, key, prev.Owner)
		prevOwner = prev.Owner
	}

	p, err := prepare(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(p.payment)
	if err != nil {
		return nil, storageError("encode response", err)
	}

	owner := uuid.NewString()
	claimCtx, cancel := e.storeContext(ctx)
	won, err := e.idem.Claim(claimCtx, idempotency.Claim{
		Operation:            op,
		ClientKey:            key,
		Owner:                owner,
		TransactionID:        p.tx.TransactionID,
		TransactionCreatedAt: p.tx.CreatedAt,
		ResponseBody:         string(body),
	}, prevOwner)
	cancel()
	if err != nil {
		return nil, storageError("claim idempotency key", err)
	}
	if !won {
		// Another request got there first; replay it if it already finished.
		cur, err := e.lookup(ctx, op, key)
		if err != nil {
			return nil, err
		}
		if cur != nil && cur.Status == idempotency.StatusDone {
			return replay(cur)
		}
		return nil, inProgress(op, key)
	}

	putCtx, cancel := e.storeContext(ctx)
	err = e.ledger.Put(putCtx, p.tx)
	cancel()
	if err != nil {
		if ferr := e.resolveFailedWrite(ctx, op, key, owner, p.tx, err); ferr != nil {
			return nil, ferr
		}
	}

	e.finish(ctx, op, key, owner)
	e.log.Infof("%s key=%s: %s %s amount=%d", op, key, p.tx.TransactionID, p.tx.Status, p.tx.Amount)

	e.notifier.Publish(ctx, p.event, p.payment)
	return &Result{Payment: p.payment}, nil
}

// resolveFailedWrite decides the outcome of a Put that returned err. A timed
// out or dropped PutItem may still have committed, so the row is read back
// before the claim is released. A nil return means the row exists and the
// request carries on as committed.
func (e *Engine) resolveFailedWrite(ctx context.Context, op, key, owner string, tx ledger.Transaction, err error) error {
	msg := "write transaction"
	if isTimeout(err) {
		msg = "write transaction timed out"
	}

	checkCtx, cancel := e.storeContext(context.WithoutCancel(ctx))
	row, gerr := e.ledger.Get(checkCtx, tx.TransactionID, tx.CreatedAt)
	cancel()
	switch {
	case gerr != nil:
		// Unknown outcome: keep the claim so a retry resolves it through committed().
		e.log.Warningf("%s key=%s: read back %s: %v", op, key, tx.TransactionID, gerr)
		return storageError(msg, err)
	case row != nil:
		e.log.Warningf("%s key=%s: %s committed despite error: %v", op, key, tx.TransactionID, err)
		return nil
	}

	releaseCtx, cancel := e.storeContext(context.WithoutCancel(ctx))
	defer cancel()
	if rerr := e.idem.Release(releaseCtx, op, key, owner); rerr != nil {
		e.log.Warningf("%s key=%s: release claim: %v", op, key, rerr)
	}
	return storageError(msg, err)
}

func (e *Engine) lookup(ctx context.Context, op, key string) (*idempotency.IdempotencyRecord, error) {
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	rec, err := e.idem.Get(ctx, op, key)
	if err != nil {
		return nil, storageError("load idempotency record", err)
	}
	return rec, nil
}

// committed reports whether the ledger record named by an IN_PROGRESS claim exists.
func (e *Engine) committed(ctx context.Context, rec *idempotency.IdempotencyRecord) (bool, error) {
	if rec.TransactionID == "" || rec.TransactionCreatedAt == "" {
		return false, nil
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	tx, err := e.ledger.Get(ctx, rec.TransactionID, rec.TransactionCreatedAt)
	if err != nil {
		return false, storageError("load transaction", err)
	}
	return tx != nil, nil
}

// finish marks a committed claim DONE. The ledger record is already durable,
// so a failure only costs a ledger read on the next replay.
func (e *Engine) finish(ctx context.Context, op, key, owner string) {
	ctx, cancel := e.storeContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := e.idem.MarkDone(ctx, op, key, owner); err != nil {
		e.log.Warningf("%s key=%s: mark done: %v", op, key, err)
	}
}

func replay(rec *idempotency.IdempotencyRecord) (*Result, error) {
	var p Payment
	if err := json.Unmarshal([]byte(rec.ResponseBody), &p); err != nil {
		return nil, storageError("decode stored response", err)
	}
	return &Result{Payment: p, Replayed: true}, nil
}

func inProgress(op, key string) *Error {
	return newError(KindInProgress, fmt.Sprintf("%s with idempotency key %q is already in progress", op, key))
}
