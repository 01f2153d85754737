package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type lockRow struct {
	token   string
	expires time.Time
}

// fakeDB emulates the app_locks statements.
type fakeDB struct {
	mu    sync.Mutex
	locks map[string]lockRow
}

func newFakeDB() *fakeDB {
	return &fakeDB{locks: map[string]lockRow{}}
}

type row struct {
	key string
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token, ttl := args[0].(string), args[1].(string), args[2].(int64)
	expires := time.Now().Add(time.Duration(ttl) * time.Millisecond)
	cur, held := f.locks[key]

	switch sql {
	case tryAcquireSQL:
		if held && cur.token != token && cur.expires.After(time.Now()) {
			return row{err: pgx.ErrNoRows}
		}
		f.locks[key] = lockRow{token: token, expires: expires}
		return row{key: key}
	case renewSQL:
		if !held || cur.token != token {
			return row{err: pgx.ErrNoRows}
		}
		f.locks[key] = lockRow{token: token, expires: expires}
		return row{key: key}
	}
	return row{err: errors.New("unexpected query")}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if cur, ok := f.locks[key]; ok && cur.token == token {
		delete(f.locks, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (f *fakeDB) steal(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[key] = lockRow{token: "someone-else", expires: time.Now().Add(time.Hour)}
}

var fastWait = util.Backoff{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

func TestAcquire_Busy(t *testing.T) {
	c := New(newFakeDB())
	ctx := context.Background()
	key := BatchKey("b1")

	lease, err := c.Acquire(ctx, key, Options{TokenPrefix: "w1/"})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if lease.Key != "batch:b1" || len(lease.Token) <= len("w1/") {
		t.Fatalf("unexpected lease %+v", lease)
	}
	if _, err := c.Acquire(ctx, key, Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := c.Acquire(ctx, key, Options{Wait: true, MaxWait: 20 * time.Millisecond, WaitBackoff: fastWait}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy after MaxWait, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if lease.Err() != nil {
		t.Fatalf("released lease reports %v", lease.Err())
	}
	again, err := c.Acquire(ctx, key, Options{})
	if err != nil {
		t.Fatalf("Acquire() after release error: %v", err)
	}
	_ = again.Release(ctx)
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	c := New(newFakeDB())
	ctx := context.Background()
	first, err := c.Acquire(ctx, "k", Options{})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = first.Release(ctx)
	}()

	second, err := c.Acquire(ctx, "k", Options{Wait: true, WaitBackoff: fastWait})
	if err != nil {
		t.Fatalf("waiting Acquire() error: %v", err)
	}
	_ = second.Release(ctx)
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New(newFakeDB()).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestWithLease_Lost(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	opts := Options{TTL: time.Second, RenewEvery: 10 * time.Millisecond}

	err := c.WithLease(context.Background(), "k", opts, func(ctx context.Context) error {
		db.steal("k")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
			t.Error("lease context was not cancelled")
			return nil
		}
	})
	if !errors.Is(err, ErrLost) {
		t.Fatalf("expected ErrLost, got %v", err)
	}
}

func TestWithLease_ReleasesOnReturn(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	want := errors.New("batch failed")
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(db.locks) != 0 {
		t.Fatalf("lock not released: %+v", db.locks)
	}
}
