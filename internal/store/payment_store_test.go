package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestRecordEventDuplicate(t *testing.T) {
	execer := stubExecer{
		execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
			return nil, &pq.Error{Code: "23505"}
		},
	}
	store := NewPaymentStore(stubDB{})
	err := store.RecordEvent(context.Background(), execer, "evt_1", "user-1", "payment_succeeded", 3000)
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent on unique conflict, got %v", err)
	}
}

func TestRecordEventFirstDelivery(t *testing.T) {
	var capturedArgs []any
	execer := stubExecer{
		execFn: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
			capturedArgs = args
			return stubResult{rows: 1}, nil
		},
	}
	store := NewPaymentStore(stubDB{})
	if err := store.RecordEvent(context.Background(), execer, "evt_1", "user-1", "payment_succeeded", 3000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(capturedArgs) != 4 || capturedArgs[0] != "evt_1" {
		t.Fatalf("unexpected args: %v", capturedArgs)
	}
}
