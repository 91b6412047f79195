package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// fakeTxState drives an in-memory sql driver whose transactions count
// commits and rollbacks and can fail the first N commits with a given
// Postgres error code.
type fakeTxState struct {
	commits     int64
	rollbacks   int64
	commitCalls int64
	failCommits int64
	failCode    string
}

type fakeTxDriver struct {
	state *fakeTxState
}

func (d *fakeTxDriver) Open(name string) (driver.Conn, error) {
	return &fakeTxConn{state: d.state}, nil
}

type fakeTxConn struct {
	state *fakeTxState
}

func (c *fakeTxConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{}, nil
}

func (c *fakeTxConn) Close() error {
	return nil
}

func (c *fakeTxConn) Begin() (driver.Tx, error) {
	return &fakeTx{state: c.state}, nil
}

func (c *fakeTxConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return &fakeTx{state: c.state}, nil
}

type fakeTx struct {
	state *fakeTxState
}

func (t *fakeTx) Commit() error {
	call := atomic.AddInt64(&t.state.commitCalls, 1)
	if call <= t.state.failCommits {
		return &pq.Error{Code: pq.ErrorCode(t.state.failCode)}
	}
	atomic.AddInt64(&t.state.commits, 1)
	return nil
}

func (t *fakeTx) Rollback() error {
	atomic.AddInt64(&t.state.rollbacks, 1)
	return nil
}

type fakeStmt struct{}

func (s *fakeStmt) Close() error {
	return nil
}

func (s *fakeStmt) NumInput() int {
	return -1
}

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, nil
}

var fakeDriverCounter uint64

func newFakeDB(t *testing.T, state *fakeTxState) *sqlx.DB {
	t.Helper()
	name := fmt.Sprintf("faketx-%d", atomic.AddUint64(&fakeDriverCounter, 1))
	sql.Register(name, &fakeTxDriver{state: state})
	sqlDB, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlx.NewDb(sqlDB, name)
}

func TestWithTxCommitsOnce(t *testing.T) {
	state := &fakeTxState{}
	runner := NewTxRunner(newFakeDB(t, state))
	if err := runner.WithTx(context.Background(), func(*sqlx.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.commits != 1 || state.rollbacks != 0 {
		t.Fatalf("expected commit=1 rollback=0, got %d/%d", state.commits, state.rollbacks)
	}
}

func TestWithTxRollsBackOnFnError(t *testing.T) {
	state := &fakeTxState{}
	xdb := newFakeDB(t, state)
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return errors.New("boom") })
	if err == nil {
		t.Fatal("expected error")
	}
	if state.rollbacks != 1 || state.commitCalls != 0 {
		t.Fatalf("expected rollback=1 commits=0, got %d/%d", state.rollbacks, state.commitCalls)
	}
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	state := &fakeTxState{failCommits: 1, failCode: "40001"}
	xdb := newFakeDB(t, state)
	if err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.commitCalls != 2 || state.commits != 1 {
		t.Fatalf("expected 2 attempts and 1 commit, got %d/%d", state.commitCalls, state.commits)
	}
}

func TestWithTxRetriesWhenFnConflicts(t *testing.T) {
	state := &fakeTxState{}
	xdb := newFakeDB(t, state)
	var calls int
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fn to run twice, ran %d times", calls)
	}
	if state.rollbacks != 1 || state.commits != 1 {
		t.Fatalf("expected rollback=1 commit=1, got %d/%d", state.rollbacks, state.commits)
	}
}

func TestWithTxDoesNotRetryOtherPGErrors(t *testing.T) {
	state := &fakeTxState{}
	xdb := newFakeDB(t, state)
	var calls int
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error {
		calls++
		return &pq.Error{Code: "23505"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if state.rollbacks != 1 {
		t.Fatalf("expected rollback=1, got %d", state.rollbacks)
	}
}

func TestWithTxDeadlockRetryCap(t *testing.T) {
	state := &fakeTxState{failCommits: 10, failCode: "40P01"}
	xdb := newFakeDB(t, state)
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil })
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if state.commitCalls != 5 {
		t.Fatalf("expected 5 commit attempts, got %d", state.commitCalls)
	}
	if state.commits != 0 {
		t.Fatalf("no commit should have succeeded, got %d", state.commits)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatal("expected unique violation")
	}
	wrapped := fmt.Errorf("insert call log: %w", &pq.Error{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Fatal("expected wrapped unique violation to match")
	}
	if IsUniqueViolation(&pq.Error{Code: "40001"}) {
		t.Fatal("serialization failure is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Fatal("plain error is not a unique violation")
	}
}
