package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransient marks an error as safe to retry
var ErrTransient = errors.New("store: transient failure")

var transientMessages = []string{
	"connection refused",
	"connection reset by peer",
	"connection terminated unexpectedly",
	"can't reach database server",
	"server closed the connection unexpectedly",
}

// IsTransient reports whether err is a connectivity failure worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exception, 57P0x is server shutdown
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RetryPolicy bounds how store calls are retried
type RetryPolicy struct {
	// Attempts is the total number of tries, the first one included
	Attempts int
	// Delay is multiplied by the attempt number before each retry
	Delay time.Duration
	// OnRetry, when set, is called before every retry
	OnRetry func(op string, attempt int, err error)
}

// DefaultRetryPolicy is three attempts with 300ms linear backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 300 * time.Millisecond}
}

// linearBackOff waits n*step before the n-th retry
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Retrying decorates a DataStore so every call is retried on transient failures
type Retrying struct {
	inner  planner.DataStore
	policy RetryPolicy
}

var (
	_ planner.DataStore  = (*Retrying)(nil)
	_ planner.Transactor = (*Retrying)(nil)
)

// WithRetry wraps inner with policy
func WithRetry(inner planner.DataStore, policy RetryPolicy) *Retrying {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Retrying{inner: inner, policy: policy}
}

func retry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(&linearBackOff{step: p.Delay}),
		backoff.WithMaxTries(uint(p.Attempts)),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			p.OnRetry(op, attempt, err)
		}))
	}

	v, err := backoff.Retry(ctx, operation, opts...)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return v, err
}

func retryErr(ctx context.Context, p RetryPolicy, op string, fn func() error) error {
	_, err := retry(ctx, p, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// WithinTx retries the whole transaction. Calls inside it are not retried
// individually since a broken connection aborts the transaction anyway.
func (r *Retrying) WithinTx(ctx context.Context, fn func(tx planner.DataStore) error) error {
	tx, ok := r.inner.(planner.Transactor)
	if !ok {
		return fn(r)
	}
	return retryErr(ctx, r.policy, "WithinTx", func() error {
		return tx.WithinTx(ctx, fn)
	})
}

func (r *Retrying) ListScreenings(ctx context.Context, start, end time.Time) ([]models.Screening, error) {
	return retry(ctx, r.policy, "ListScreenings", func() ([]models.Screening, error) {
		return r.inner.ListScreenings(ctx, start, end)
	})
}

func (r *Retrying) ListScreeningAssignments(ctx context.Context, screeningID string) ([]models.Assignment, error) {
	return retry(ctx, r.policy, "ListScreeningAssignments", func() ([]models.Assignment, error) {
		return r.inner.ListScreeningAssignments(ctx, screeningID)
	})
}

func (r *Retrying) ListAvailability(ctx context.Context, screeningID string, role models.Role, status models.AvailabilityStatus) ([]string, error) {
	return retry(ctx, r.policy, "ListAvailability", func() ([]string, error) {
		return r.inner.ListAvailability(ctx, screeningID, role, status)
	})
}

func (r *Retrying) ListActiveVolunteersWithRole(ctx context.Context, role models.Role, excludeUserIDs []string) ([]models.Volunteer, error) {
	return retry(ctx, r.policy, "ListActiveVolunteersWithRole", func() ([]models.Volunteer, error) {
		return r.inner.ListActiveVolunteersWithRole(ctx, role, excludeUserIDs)
	})
}

func (r *Retrying) ListAssignmentsInWindow(ctx context.Context, w models.Window) ([]models.AssignmentRecord, error) {
	return retry(ctx, r.policy, "ListAssignmentsInWindow", func() ([]models.AssignmentRecord, error) {
		return r.inner.ListAssignmentsInWindow(ctx, w)
	})
}

func (r *Retrying) CountAssignments(ctx context.Context, userID string, w models.Window) (int, error) {
	return retry(ctx, r.policy, "CountAssignments", func() (int, error) {
		return r.inner.CountAssignments(ctx, userID, w)
	})
}

func (r *Retrying) CountAssignmentsForTitle(ctx context.Context, userID, filmID string, w models.Window) (int, error) {
	return retry(ctx, r.policy, "CountAssignmentsForTitle", func() (int, error) {
		return r.inner.CountAssignmentsForTitle(ctx, userID, filmID, w)
	})
}

func (r *Retrying) LastAssignedAt(ctx context.Context, userIDs []string) (map[string]time.Time, error) {
	return retry(ctx, r.policy, "LastAssignedAt", func() (map[string]time.Time, error) {
		return r.inner.LastAssignedAt(ctx, userIDs)
	})
}

func (r *Retrying) SkillTags(ctx context.Context, userIDs []string) (map[string][]string, error) {
	return retry(ctx, r.policy, "SkillTags", func() (map[string][]string, error) {
		return r.inner.SkillTags(ctx, userIDs)
	})
}

func (r *Retrying) GetConstraint(ctx context.Context, key string) (string, bool, error) {
	type found struct {
		value string
		ok    bool
	}
	f, err := retry(ctx, r.policy, "GetConstraint", func() (found, error) {
		v, ok, err := r.inner.GetConstraint(ctx, key)
		return found{v, ok}, err
	})
	return f.value, f.ok, err
}

func (r *Retrying) BulkInsertAssignments(ctx context.Context, rows []models.Assignment) (int, error) {
	return retry(ctx, r.policy, "BulkInsertAssignments", func() (int, error) {
		return r.inner.BulkInsertAssignments(ctx, rows)
	})
}

func (r *Retrying) AppendAuditLog(ctx context.Context, entry models.AuditEntry) error {
	return retryErr(ctx, r.policy, "AppendAuditLog", func() error {
		return r.inner.AppendAuditLog(ctx, entry)
	})
}
