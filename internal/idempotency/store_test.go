package idempotency

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger/shared"
)

func TestValidateKey(t *testing.T) {
	require.ErrorIs(t, ValidateKey(""), shared.ErrIdempotencyKeyRequired)
	require.NoError(t, ValidateKey("k1"))

	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	require.ErrorIs(t, ValidateKey(string(long)), shared.ErrIdempotencyKeyRequired)
}

func TestFingerprintStableUnderFieldOrder(t *testing.T) {
	a, err := Fingerprint(map[string]any{"date": "2025-03-01", "lines": []int{1, 2}})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"lines": []int{1, 2}, "date": "2025-03-01"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFingerprintDiffersOnBody(t *testing.T) {
	a, err := Fingerprint(map[string]any{"amount": 10000})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"amount": 9999})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

type memRow struct {
	scopeID     uuid.UUID
	op          string
	key         string
	fingerprint string
	state       string
	status      *int
	body        []byte
	createdAt   time.Time
	expiresAt   time.Time
}

// memDB backs the store with a map, dispatching on the statement verb.
type memDB struct {
	mu   sync.Mutex
	rows map[string]*memRow
}

func newMemDB() *memDB { return &memDB{rows: make(map[string]*memRow)} }

func rowKey(scopeID uuid.UUID, op, key string) string {
	return scopeID.String() + "|" + op + "|" + key
}

func (m *memDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case strings.HasPrefix(sql, "INSERT"):
		k := rowKey(args[0].(uuid.UUID), args[1].(string), args[2].(string))
		if _, exists := m.rows[k]; exists {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		m.rows[k] = &memRow{
			scopeID:     args[0].(uuid.UUID),
			op:          args[1].(string),
			key:         args[2].(string),
			fingerprint: args[3].(string),
			state:       args[4].(string),
			createdAt:   args[5].(time.Time),
			expiresAt:   args[6].(time.Time),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "UPDATE"):
		row, exists := m.rows[rowKey(args[0].(uuid.UUID), args[1].(string), args[2].(string))]
		if !exists {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		row.state = args[3].(string)
		status := args[4].(int)
		row.status = &status
		row.body = args[5].([]byte)
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.Contains(sql, "expires_at <"):
		cutoff := args[0].(time.Time)
		n := 0
		for k, row := range m.rows {
			if row.expiresAt.Before(cutoff) {
				delete(m.rows, k)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	default:
		k := rowKey(args[0].(uuid.UUID), args[1].(string), args[2].(string))
		if row, exists := m.rows[k]; exists && row.state == args[3].(string) {
			delete(m.rows, k)
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil
	}
}

func (m *memDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, exists := m.rows[rowKey(args[0].(uuid.UUID), args[1].(string), args[2].(string))]
	if !exists {
		return errRow{pgx.ErrNoRows}
	}
	return memRowResult{row: *row}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type memRowResult struct{ row memRow }

func (r memRowResult) Scan(dest ...any) error {
	*dest[0].(*uuid.UUID) = r.row.scopeID
	*dest[1].(*Operation) = Operation(r.row.op)
	*dest[2].(*string) = r.row.key
	*dest[3].(*string) = r.row.fingerprint
	*dest[4].(*string) = r.row.state
	*dest[5].(**int) = r.row.status
	*dest[6].(*[]byte) = r.row.body
	*dest[7].(*time.Time) = r.row.createdAt
	*dest[8].(*time.Time) = r.row.expiresAt
	return nil
}

func memBackedStore(db *memDB) *Store {
	return &Store{
		db:           db,
		ttl:          time.Hour,
		waitDeadline: 25 * time.Millisecond,
		pollEvery:    5 * time.Millisecond,
		now:          time.Now,
	}
}

func TestBeginFinishReplaysStoredResponse(t *testing.T) {
	ctx := context.Background()
	s := memBackedStore(newMemDB())
	scopeID := uuid.New()

	rec, err := s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec, "first caller must win the key")

	require.NoError(t, s.Finish(ctx, scopeID, OpPostJournal, "k1", 201, []byte(`{"id":"t1"}`)))

	rec, err = s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 201, rec.ResponseStatus)
	require.JSONEq(t, `{"id":"t1"}`, string(rec.ResponseBody))
	require.Equal(t, "fp1", rec.Fingerprint)
}

func TestBeginRejectsReusedKeyWithDifferentBody(t *testing.T) {
	ctx := context.Background()
	s := memBackedStore(newMemDB())
	scopeID := uuid.New()

	rec, err := s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, s.Finish(ctx, scopeID, OpPostJournal, "k1", 201, []byte(`{}`)))

	_, err = s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp2")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	// Conflicts surface even while the winner is still in flight.
	rec, err = s.Begin(ctx, scopeID, OpVoidTransaction, "k2", "fpA")
	require.NoError(t, err)
	require.Nil(t, rec)
	_, err = s.Begin(ctx, scopeID, OpVoidTransaction, "k2", "fpB")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestBeginInflightKeyReportsBusy(t *testing.T) {
	ctx := context.Background()
	s := memBackedStore(newMemDB())
	scopeID := uuid.New()

	rec, err := s.Begin(ctx, scopeID, OpApplyPayment, "k1", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec)

	_, err = s.Begin(ctx, scopeID, OpApplyPayment, "k1", "fp1")
	require.ErrorIs(t, err, shared.ErrBusy)
}

func TestAbortReleasesKey(t *testing.T) {
	ctx := context.Background()
	s := memBackedStore(newMemDB())
	scopeID := uuid.New()

	rec, err := s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, s.Abort(ctx, scopeID, OpPostJournal, "k1"))

	rec, err = s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp2")
	require.NoError(t, err)
	require.Nil(t, rec, "aborted key must be claimable again")
}

func TestKeysAreScopedPerCompany(t *testing.T) {
	ctx := context.Background()
	s := memBackedStore(newMemDB())

	rec, err := s.Begin(ctx, uuid.New(), OpPostJournal, "shared-key", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = s.Begin(ctx, uuid.New(), OpPostJournal, "shared-key", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec, "same key under another company is independent")
}

func TestPurgeRemovesExpiredRows(t *testing.T) {
	ctx := context.Background()
	s := memBackedStore(newMemDB())
	scopeID := uuid.New()

	rec, err := s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp1")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, s.Finish(ctx, scopeID, OpPostJournal, "k1", 201, []byte(`{}`)))

	s.WithNow(func() time.Time { return time.Now().Add(2 * time.Hour) })
	n, err := s.Purge(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	s.WithNow(time.Now)
	rec, err = s.Begin(ctx, scopeID, OpPostJournal, "k1", "fp-new")
	require.NoError(t, err)
	require.Nil(t, rec, "purged key must be claimable again")
}
