package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	stmts  []string
	failAt int
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	if r.failAt > 0 && len(r.stmts) == r.failAt {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestMigrate(t *testing.T) {
	db := &recordingExecer{}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if len(db.stmts) != len(schema) {
		t.Fatalf("ran %d statements, want %d", len(db.stmts), len(schema))
	}
	if !strings.Contains(db.stmts[0], "UNIQUE (user_id, contract_id)") {
		t.Error("transactions table should be unique on (user_id, contract_id)")
	}
	if !strings.Contains(strings.Join(db.stmts, "\n"), "REFERENCES transactions (id) ON DELETE CASCADE") {
		t.Error("analysis results should cascade with their transaction")
	}
	for i, stmt := range db.stmts {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("statement %d is not idempotent", i+1)
		}
	}
}

func TestMigrate_StopsOnError(t *testing.T) {
	db := &recordingExecer{failAt: 2}

	err := Migrate(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "migration 2") {
		t.Fatalf("err = %v, want migration 2 failure", err)
	}
	if len(db.stmts) != 2 {
		t.Errorf("ran %d statements after failure, want 2", len(db.stmts))
	}
}
