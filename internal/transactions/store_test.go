package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/botcharts/internal/model"
)

// fakeDB records batches and queries.
type fakeDB struct {
	batch    *pgx.Batch
	nextID   int64
	failAt   int
	query    string
	args     []any
	rows     [][]any
	queryErr error
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batch = b
	return &fakeBatchResults{db: f}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.query = sql
	f.args = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.query = sql
	f.args = args
	if f.queryErr != nil {
		return fakeRow{err: f.queryErr}
	}
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return &fakeRows{rows: f.rows[:1], pos: 0}
}

type fakeBatchResults struct {
	db *fakeDB
	n  int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (r *fakeBatchResults) Query() (pgx.Rows, error)         { return nil, errors.New("not used") }
func (r *fakeBatchResults) Close() error                     { return nil }

func (r *fakeBatchResults) QueryRow() pgx.Row {
	r.n++
	if r.db.failAt == r.n {
		return fakeRow{err: errors.New("unique violation")}
	}
	r.db.nextID++
	return fakeRow{id: r.db.nextID}
}

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	return nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d columns", len(dest), len(row))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *float64:
			*d = v.(float64)
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

func TestPGStore_Upsert(t *testing.T) {
	db := &fakeDB{nextID: 40}
	store := NewPGStore(db, nil, nil)

	txs := []model.Transaction{
		{UserID: "CR1", ContractID: "100", RunID: "run-1", StrategyIntent: json.RawMessage(`{"a":1}`)},
		{UserID: "CR1", ContractID: "101"},
	}

	ids, err := store.Upsert(context.Background(), txs)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(ids) != 2 || ids[0] != 41 || ids[1] != 42 {
		t.Errorf("ids = %v, want [41 42]", ids)
	}

	if db.batch.Len() != 2 {
		t.Fatalf("batch len = %d, want 2", db.batch.Len())
	}
	q := db.batch.QueuedQueries[1]
	if !strings.Contains(q.SQL, "ON CONFLICT (user_id, contract_id)") {
		t.Error("upsert should resolve conflicts on (user_id, contract_id)")
	}
	if q.Arguments[13] != nil || q.Arguments[14] != nil {
		t.Errorf("absent JSON should bind NULL, got %v %v", q.Arguments[13], q.Arguments[14])
	}
	if q.Arguments[15] != nil {
		t.Errorf("absent chart image should bind NULL, got %v", q.Arguments[15])
	}
	if db.batch.QueuedQueries[0].Arguments[13] != `{"a":1}` {
		t.Errorf("strategy_intent arg = %v", db.batch.QueuedQueries[0].Arguments[13])
	}
}

func TestPGStore_UpsertError(t *testing.T) {
	db := &fakeDB{failAt: 2}
	store := NewPGStore(db, nil, nil)

	_, err := store.Upsert(context.Background(), []model.Transaction{
		{UserID: "CR1", ContractID: "1"},
		{UserID: "CR1", ContractID: "2"},
	})
	if err == nil || !strings.Contains(err.Error(), "contract 2") {
		t.Errorf("err = %v, want failure on contract 2", err)
	}
}

func TestPGStore_UpsertEmpty(t *testing.T) {
	db := &fakeDB{}
	ids, err := NewPGStore(db, nil, nil).Upsert(context.Background(), nil)
	if err != nil || ids != nil {
		t.Errorf("Upsert(nil) = %v, %v", ids, err)
	}
	if db.batch != nil {
		t.Error("empty upsert should not send a batch")
	}
}

func TestPGStore_List(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{int64(7), "CR1", "100", "run-1", 10.0, 19.5, 9.5, "USD", "CALL", "S0P", "1741000000",
			"1741000060", "1.1", "1.2", []byte(`{"a":1}`), nil, created, created},
	}}
	store := NewPGStore(db, nil, nil)

	txs, err := store.List(context.Background(), ListOptions{UserID: "CR1", RunID: "run-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("len = %d, want 1", len(txs))
	}
	tx := txs[0]
	if tx.ID != 7 || tx.Profit != 9.5 || string(tx.StrategyIntent) != `{"a":1}` || tx.BehavioralSummary != nil {
		t.Errorf("tx = %+v", tx)
	}
	if !strings.Contains(db.query, "run_id = $2") {
		t.Errorf("query = %s", db.query)
	}
}

func TestPGStore_ListRequiresUser(t *testing.T) {
	_, err := NewPGStore(&fakeDB{}, nil, nil).List(context.Background(), ListOptions{})
	if !errors.Is(err, ErrMissingUser) {
		t.Errorf("err = %v, want ErrMissingUser", err)
	}
}

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{1, 1},
		{250, 250},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		opts     ListOptions
		wantTail string
		wantArgs []any
	}{
		{
			name:     "user only",
			opts:     ListOptions{UserID: "CR1"},
			wantTail: "WHERE user_id = $1 ORDER BY id DESC LIMIT $2",
			wantArgs: []any{"CR1", DefaultLimit},
		},
		{
			name:     "run and since",
			opts:     ListOptions{UserID: "CR1", RunID: "r", SinceID: 10, Limit: 20},
			wantTail: "WHERE user_id = $1 AND run_id = $2 AND id > $3 ORDER BY id DESC LIMIT $4",
			wantArgs: []any{"CR1", "r", int64(10), 20},
		},
		{
			name:     "since only",
			opts:     ListOptions{UserID: "CR1", SinceID: 5, Limit: 9000},
			wantTail: "WHERE user_id = $1 AND id > $2 ORDER BY id DESC LIMIT $3",
			wantArgs: []any{"CR1", int64(5), MaxLimit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.opts)
			if !strings.HasSuffix(query, tt.wantTail) {
				t.Errorf("query = %q, want suffix %q", query, tt.wantTail)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}
