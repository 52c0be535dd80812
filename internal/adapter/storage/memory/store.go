// Package memory is a process-local storage driver used when no database is
// configured. Transactions are serialized by a single store-wide lock and
// write to a private copy of the data that replaces the committed state on
// Commit. Reads outside a transaction only ever see committed data, as they
// would under READ COMMITTED in PostgreSQL.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"engagement-rewards/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

type state struct {
	submissions map[uuid.UUID]domain.Submission
	order       map[uuid.UUID]int64
	accounts    map[uuid.UUID]domain.EarningsAccount
	withdrawals map[uuid.UUID]domain.WithdrawalTransaction
	idempotency map[string]domain.IdempotencyLog
	seq         int64
}

func newState() *state {
	return &state{
		submissions: make(map[uuid.UUID]domain.Submission),
		order:       make(map[uuid.UUID]int64),
		accounts:    make(map[uuid.UUID]domain.EarningsAccount),
		withdrawals: make(map[uuid.UUID]domain.WithdrawalTransaction),
		idempotency: make(map[string]domain.IdempotencyLog),
	}
}

func (s *state) clone() *state {
	c := &state{
		submissions: make(map[uuid.UUID]domain.Submission, len(s.submissions)),
		order:       make(map[uuid.UUID]int64, len(s.order)),
		accounts:    make(map[uuid.UUID]domain.EarningsAccount, len(s.accounts)),
		withdrawals: make(map[uuid.UUID]domain.WithdrawalTransaction, len(s.withdrawals)),
		idempotency: make(map[string]domain.IdempotencyLog, len(s.idempotency)),
		seq:         s.seq,
	}
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// Store holds every table of the memory driver.
type Store struct {
	txMu sync.Mutex   // held for the lifetime of an open transaction
	mu   sync.RWMutex // guards data and audit
	data *state       // last committed state

	// audit is written outside transactions and survives rollbacks.
	audit []domain.AuditLog
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// Begin implements ports.DBTransactor. It blocks until no other transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin memory transaction: %w", err)
	}
	s.txMu.Lock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	return &memTx{store: s, work: work}, nil
}

// LockUser implements ports.UserLocker. The store-wide transaction lock
// already serializes every user, so only ownership is checked.
func (s *Store) LockUser(_ context.Context, tx pgx.Tx, _ uuid.UUID) error {
	_, err := s.own(tx)
	return err
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (s *Store) Name() string { return "memory" }

func (s *Store) own(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// write runs fn against the transaction's working copy. Only the goroutine
// holding txMu reaches it, so no further locking is needed.
func (s *Store) write(tx pgx.Tx, fn func(d *state) error) error {
	mt, err := s.own(tx)
	if err != nil {
		return err
	}
	return fn(mt.work)
}

// read runs fn against the last committed state.
func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// memTx is the memory driver's pgx.Tx. Only Commit and Rollback are
// meaningful; the embedded interface is nil, so SQL methods panic.
type memTx struct {
	pgx.Tx
	store *Store
	work  *state
	done  bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.data = t.work
	t.store.mu.Unlock()
	t.work = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.work = nil
	t.store.txMu.Unlock()
	return nil
}
