package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kareem-ic/paysim-sandbox/internal/idempotency"
	"github.com/kareem-ic/paysim-sandbox/internal/ledger"
)

// memLedger is an in-memory Ledger. authMisses makes the next N
// FindAuthorization calls miss, like a lagging GSI. lostAck stores the row
// and then returns the error, like a PutItem whose response never arrived.
type memLedger struct {
	mu          sync.Mutex
	rows        []ledger.Transaction
	putErr      error
	lostAck     error
	getErr      error
	putBlocks   bool
	authMisses  int
	authLookups int
}

func (m *memLedger) Put(ctx context.Context, tx ledger.Transaction) error {
	if m.putBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	for _, r := range m.rows {
		if r.TransactionID == tx.TransactionID && r.CreatedAt == tx.CreatedAt {
			return ledger.ErrAlreadyExists
		}
	}
	m.rows = append(m.rows, tx)
	return m.lostAck
}

func (m *memLedger) Get(_ context.Context, id, createdAt string) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, r := range m.rows {
		if r.TransactionID == id && r.CreatedAt == createdAt {
			tx := r
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *memLedger) FindByID(_ context.Context, id string) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []ledger.Transaction
	for _, r := range m.rows {
		if r.TransactionID == id {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt > found[j].CreatedAt })
	return &found[0], nil
}

func (m *memLedger) FindAuthorization(_ context.Context, authID string) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authLookups++
	if m.authMisses > 0 {
		m.authMisses--
		return nil, nil
	}
	for _, r := range m.rows {
		if r.AuthID == authID && r.Type == ledger.KindAuthorization {
			tx := r
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *memLedger) setGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memIdem follows the conditional-write rules of idempotency.Store.
type memIdem struct {
	mu      sync.Mutex
	records map[string]idempotency.IdempotencyRecord
	lease   time.Duration
}

func newMemIdem() *memIdem {
	return &memIdem{records: map[string]idempotency.IdempotencyRecord{}, lease: 30 * time.Second}
}

func (m *memIdem) Get(_ context.Context, op, key string) (*idempotency.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[idempotency.Key(op, key)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memIdem) Claim(_ context.Context, c idempotency.Claim, prevOwner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idempotency.Key(c.Operation, c.ClientKey)
	cur, ok := m.records[k]
	if prevOwner == "" && ok {
		return false, nil
	}
	if prevOwner != "" && (!ok || cur.Status != idempotency.StatusInProgress || cur.Owner != prevOwner) {
		return false, nil
	}
	now := time.Now()
	m.records[k] = idempotency.IdempotencyRecord{
		IdempotencyKey:       k,
		Operation:            c.Operation,
		ClientKey:            c.ClientKey,
		Status:               idempotency.StatusInProgress,
		Owner:                c.Owner,
		TransactionID:        c.TransactionID,
		TransactionCreatedAt: c.TransactionCreatedAt,
		ResponseBody:         c.ResponseBody,
		CreatedAt:            now,
		UpdatedAt:            now,
		LeaseExpiresAt:       now.Add(m.lease).UnixMilli(),
	}
	return true, nil
}

func (m *memIdem) MarkDone(_ context.Context, op, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idempotency.Key(op, key)
	cur, ok := m.records[k]
	if !ok || cur.Owner != owner {
		return idempotency.ErrConditionFailed
	}
	cur.Status = idempotency.StatusDone
	m.records[k] = cur
	return nil
}

func (m *memIdem) Release(_ context.Context, op, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idempotency.Key(op, key)
	cur, ok := m.records[k]
	if !ok || cur.Status != idempotency.StatusInProgress || cur.Owner != owner {
		return idempotency.ErrConditionFailed
	}
	delete(m.records, k)
	return nil
}

func (m *memIdem) put(rec idempotency.IdempotencyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.IdempotencyKey = idempotency.Key(rec.Operation, rec.ClientKey)
	m.records[rec.IdempotencyKey] = rec
}

type published struct {
	eventType string
	payment   Payment
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Publish(_ context.Context, eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _ := data.(Payment)
	r.events = append(r.events, published{eventType: eventType, payment: p})
}

func (r *recordingNotifier) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *outcomeRecorder) ObserveOperation(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[op+"/"+outcome]++
}

func (o *outcomeRecorder) ObserveNotification(string, string) {}
