// Package leaselock serialises work on one key across workers with an
// expiring row in app_locks. A lease is renewed in the background and its
// context is cancelled when the lease is lost.
package leaselock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

// DB is the subset of a pgx pool or connection the lock needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db DB
}

type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait polls until the lock is free, ctx is done or MaxWait passed.
	Wait    bool
	MaxWait time.Duration
	// WaitBackoff schedules the polls. MaxTries is ignored.
	WaitBackoff util.Backoff

	TokenPrefix string
}

var defaultWaitBackoff = util.Backoff{
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   1.5,
	Jitter:       0.3,
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitBackoff.InitialDelay <= 0 {
		o.WaitBackoff = defaultWaitBackoff
	}
	return o
}

type Lease struct {
	Key   string
	Token string

	// Context is cancelled when the lease is released or lost.
	Context context.Context

	client *Client
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(db DB) *Client {
	return &Client{db: db}
}

// BatchKey is the lock key of a batch id.
func BatchKey(batchID string) string {
	return "batch:" + batchID
}

// WithLease runs fn while holding the lease on key. fn receives the lease
// context and should stop when it is cancelled. A lost lease is reported
// as ErrLost when fn returns without error.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("[Lock] Failed to release lease", "key", key, "err", err)
		}
	}()
	if err := fn(lease.Context); err != nil {
		return err
	}
	return lease.Err()
}

func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.withDefaults()
	ttlMs := opts.TTL.Milliseconds()

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := opts.TokenPrefix + tok

	var deadline time.Time
	if opts.MaxWait > 0 {
		deadline = time.Now().Add(opts.MaxWait)
	}
	for attempt := 0; ; attempt++ {
		ok, err := c.tryAcquire(ctx, key, token, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait || (!deadline.IsZero() && time.Now().After(deadline)) {
			return nil, ErrBusy
		}
		if attempt == 0 {
			logger.Debug("[Lock] Waiting for lease", "key", key)
		}
		if err := sleep(ctx, opts.WaitBackoff.Delay(attempt+1)); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	go l.renewLoop(opts, ttlMs)

	return l, nil
}

func (c *Client) tryAcquire(ctx context.Context, key, token string, ttlMs int64) (bool, error) {
	var returnedKey string
	err := c.db.QueryRow(ctx, tryAcquireSQL, key, token, ttlMs).Scan(&returnedKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return returnedKey != "", nil
}

// Err returns ErrLost (or the renewal error) once the lease was lost and
// nil while it is held or after a regular release.
func (l *Lease) Err() error {
	cause := context.Cause(l.Context)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}

func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) renewLoop(opts Options, ttlMs int64) {
	t := time.NewTicker(opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ttlMs); err != nil {
				logger.Error("[Lock] Lease lost", "key", l.Key, "err", err)
				l.cancel(err)
				return
			}
		}
	}
}

var renewBackoff = util.Backoff{
	MaxTries:     3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2,
}

func (l *Lease) renewOnce(ttlMs int64) error {
	return util.RetryErrWithBackoff(l.Context, renewBackoff, func(ctx context.Context) error {
		renewCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		var returnedKey string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.Key, l.Token, ttlMs).Scan(&returnedKey)
		if errors.Is(err, pgx.ErrNoRows) {
			return util.Permanent(ErrLost)
		}
		return err
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
