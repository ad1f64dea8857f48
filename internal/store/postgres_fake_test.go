package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slotpost/credit-service/internal/domain"
)

// fakeLedgerDB is an in-memory stand-in for the connection pool. It speaks
// just enough of the repository's SQL to drive the transactional paths:
// account row locks, ledger inserts with their projection update, and the
// sticky-request state machine. Writes are buffered per transaction and only
// land on commit, like the real thing.
type fakeLedgerDB struct {
	credits map[uuid.UUID]int64
	sticky  map[uuid.UUID]domain.StickyPostRequest
	entries []fakeLedgerEntry
}

type fakeLedgerEntry struct {
	accountID uuid.UUID
	amount    int64
	kind      domain.LedgerKind
}

func newFakeLedgerDB() *fakeLedgerDB {
	return &fakeLedgerDB{
		credits: map[uuid.UUID]int64{},
		sticky:  map[uuid.UUID]domain.StickyPostRequest{},
	}
}

func (db *fakeLedgerDB) entriesFor(accountID uuid.UUID) []fakeLedgerEntry {
	var out []fakeLedgerEntry
	for _, e := range db.entries {
		if e.accountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

func (db *fakeLedgerDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeLedgerTx{
		db:            db,
		creditsDelta:  map[uuid.UUID]int64{},
		pendingSticky: map[uuid.UUID]domain.StickyPostRequest{},
	}, nil
}

func (db *fakeLedgerDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("query outside a transaction is not supported by the fake")
}

func (db *fakeLedgerDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{err: errors.New("query outside a transaction is not supported by the fake")}
}

func (db *fakeLedgerDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("exec outside a transaction is not supported by the fake")
}

// fakeLedgerTx buffers writes until Commit.
type fakeLedgerTx struct {
	db             *fakeLedgerDB
	creditsDelta   map[uuid.UUID]int64
	pendingSticky  map[uuid.UUID]domain.StickyPostRequest
	pendingEntries []fakeLedgerEntry
	done           bool
}

func (t *fakeLedgerTx) currentCredits(accountID uuid.UUID) (int64, bool) {
	base, ok := t.db.credits[accountID]
	if !ok {
		return 0, false
	}
	return base + t.creditsDelta[accountID], true
}

func (t *fakeLedgerTx) currentSticky(requestID uuid.UUID) (domain.StickyPostRequest, bool) {
	if req, ok := t.pendingSticky[requestID]; ok {
		return req, true
	}
	req, ok := t.db.sticky[requestID]
	return req, ok
}

func stickyRowValues(req domain.StickyPostRequest) []any {
	return []any{
		req.ID, req.RequesterID, req.GroupID, req.GroupOwnerID, req.PostID,
		req.PeriodDays, req.CreditsPaid, req.Status, req.ProcessedAt,
		req.FulfilledAt, req.Notes, req.CreatedAt,
	}
}

func (t *fakeLedgerTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM sticky_post_requests") && strings.Contains(sql, "FOR UPDATE"):
		req, ok := t.currentSticky(args[0].(uuid.UUID))
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: stickyRowValues(req)}

	case strings.Contains(sql, "SELECT credits FROM accounts"):
		credits, ok := t.currentCredits(args[0].(uuid.UUID))
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: []any{credits}}

	case strings.Contains(sql, "INSERT INTO ledger_entries"):
		t.pendingEntries = append(t.pendingEntries, fakeLedgerEntry{
			accountID: args[1].(uuid.UUID),
			amount:    args[2].(int64),
			kind:      args[3].(domain.LedgerKind),
		})
		return fakeRow{values: []any{time.Now().UTC()}}

	case strings.Contains(sql, "UPDATE sticky_post_requests"):
		requestID := args[2].(uuid.UUID)
		req, ok := t.currentSticky(requestID)
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		req.Status = args[0].(domain.StickyRequestStatus)
		if notes, _ := args[1].(*string); notes != nil {
			req.Notes = notes
		}
		now := time.Now().UTC()
		if req.Status == domain.StickyRequestFulfilled {
			req.FulfilledAt = &now
		} else {
			req.ProcessedAt = &now
		}
		t.pendingSticky[requestID] = req
		return fakeRow{values: stickyRowValues(req)}
	}
	return fakeRow{err: fmt.Errorf("unexpected query: %s", sql)}
}

func (t *fakeLedgerTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "UPDATE accounts SET credits") {
		accountID := arguments[1].(uuid.UUID)
		if _, ok := t.currentCredits(accountID); !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		t.creditsDelta[accountID] += arguments[0].(int64)
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeLedgerTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for accountID, delta := range t.creditsDelta {
		t.db.credits[accountID] += delta
	}
	for requestID, req := range t.pendingSticky {
		t.db.sticky[requestID] = req
	}
	t.db.entries = append(t.db.entries, t.pendingEntries...)
	return nil
}

func (t *fakeLedgerTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	return nil
}

func (t *fakeLedgerTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeLedgerTx) Conn() *pgx.Conn { return nil }

func (t *fakeLedgerTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeLedgerTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}
func (t *fakeLedgerTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("copy is not supported by the fake")
}
func (t *fakeLedgerTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("prepare is not supported by the fake")
}
func (t *fakeLedgerTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("row sets are not supported by the fake")
}

// fakeRow assigns pre-baked values positionally; a nil value leaves the
// destination at its zero value, matching a SQL NULL into a pointer.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		dv.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}
