package fxmq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakoblilliemarck/fxmq/internal/observability"
	"github.com/jakoblilliemarck/fxmq/query"
	"github.com/jakoblilliemarck/fxmq/schemaname"
)

// Queries is the schema-scoped facade over the query package: every method
// opens its own transaction, pins it to this queue's schema with
// SET LOCAL search_path, runs exactly one of the atomic D/E operations, and
// commits. Callers never see a bare connection or a cross-schema query.
type Queries struct {
	pool         *pgxpool.Pool
	schema       string
	quotedSchema string
}

// NewQueries validates schema and returns a facade scoped to it. It does not
// create or migrate the schema; use migrator.Run for that first.
func NewQueries(pool *pgxpool.Pool, schema string) (*Queries, error) {
	quoted, err := schemaname.Quote(schema)
	if err != nil {
		return nil, err
	}
	return &Queries{pool: pool, schema: schema, quotedSchema: quoted}, nil
}

// Schema returns the unquoted schema name this facade is scoped to.
func (q *Queries) Schema() string { return q.schema }

func withTx[T any](ctx context.Context, q *Queries, op string, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T

	ctx, span := observability.StartSpan(ctx, "fxmq."+op, observability.AttrSchema.String(q.schema))
	defer span.End()

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		observability.SetSpanError(span, err)
		return zero, &DatabaseError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SET LOCAL search_path TO `+q.quotedSchema); err != nil {
		observability.SetSpanError(span, err)
		return zero, &DatabaseError{Op: "set_search_path", Err: err}
	}

	result, err := fn(tx)
	if err != nil {
		observability.SetSpanError(span, err)
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		observability.SetSpanError(span, err)
		return zero, &DatabaseError{Op: "commit", Err: err}
	}
	observability.SetSpanOK(span)
	return result, nil
}

func withTxErr(ctx context.Context, q *Queries, op string, fn func(tx pgx.Tx) error) error {
	_, err := withTx(ctx, q, op, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// Publish builds a RawMessage from msg and payload, assigns it a fresh
// UUIDv7, and inserts it as pending.
func (q *Queries) Publish(ctx context.Context, msg Message, payload json.RawMessage) (*RawMessage, error) {
	raw, err := NewRawMessage(msg, payload)
	if err != nil {
		return nil, err
	}
	return withTx(ctx, q, "Publish", func(tx pgx.Tx) (*RawMessage, error) {
		return query.PublishMessage(ctx, tx, raw)
	})
}

// DispatchUnattempted claims the oldest unattempted message for hostID,
// leasing it for holdFor. Returns nil, nil if none are available.
func (q *Queries) DispatchUnattempted(ctx context.Context, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*RawMessage, error) {
	return withTx(ctx, q, "DispatchUnattempted", func(tx pgx.Tx) (*RawMessage, error) {
		return query.GetNextUnattempted(ctx, tx, now, hostID, holdFor)
	})
}

// DispatchRetryable claims the oldest eligible failed message for hostID.
// Returns nil, nil if none are ready to retry.
func (q *Queries) DispatchRetryable(ctx context.Context, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*RawMessage, error) {
	return withTx(ctx, q, "DispatchRetryable", func(tx pgx.Tx) (*RawMessage, error) {
		return query.GetNextRetryable(ctx, tx, now, hostID, holdFor)
	})
}

// DispatchMissing rescues a message whose lease expired without a
// resolution, reassigning it to hostID. Returns nil, nil if none are
// missing.
func (q *Queries) DispatchMissing(ctx context.Context, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*RawMessage, error) {
	return withTx(ctx, q, "DispatchMissing", func(tx pgx.Tx) (*RawMessage, error) {
		return query.GetNextMissing(ctx, tx, now, hostID, holdFor)
	})
}

// ReportSuccess marks messageID succeeded, clearing its lease and any prior
// failed attempts.
func (q *Queries) ReportSuccess(ctx context.Context, messageID uuid.UUID, now time.Time) error {
	return withTxErr(ctx, q, "ReportSuccess", func(tx pgx.Tx) error {
		return query.ReportSuccess(ctx, tx, messageID, now)
	})
}

// ReportRetryable records a failed attempt for messageID, eligible for
// retry starting at retryEarliestAt, clearing its lease.
func (q *Queries) ReportRetryable(ctx context.Context, messageID uuid.UUID, failedAt time.Time, attempted int32, retryEarliestAt time.Time, errStr string) error {
	return withTxErr(ctx, q, "ReportRetryable", func(tx pgx.Tx) error {
		return query.ReportRetryable(ctx, tx, messageID, failedAt, attempted, retryEarliestAt, errStr)
	})
}

// ReportDead marks messageID dead, clearing its lease and prior failed
// attempts.
func (q *Queries) ReportDead(ctx context.Context, messageID uuid.UUID, now time.Time, errStr string) error {
	return withTxErr(ctx, q, "ReportDead", func(tx pgx.Tx) error {
		return query.ReportDead(ctx, tx, messageID, now, errStr)
	})
}

// RequestLease acquires or renews a lease for messageID on behalf of
// hostID, unless another host already holds an active one. Returns nil,
// nil if denied.
func (q *Queries) RequestLease(ctx context.Context, messageID uuid.UUID, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*time.Time, error) {
	return withTx(ctx, q, "RequestLease", func(tx pgx.Tx) (*time.Time, error) {
		return query.RequestLease(ctx, tx, messageID, now, hostID, holdFor)
	})
}

// IsPending reports whether messageID is awaiting its first dispatch.
func (q *Queries) IsPending(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "IsPending", func(tx pgx.Tx) (bool, error) {
		return query.IsPending(ctx, tx, messageID, now)
	})
}

// IsInProgress reports whether messageID is currently leased and attempted.
func (q *Queries) IsInProgress(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "IsInProgress", func(tx pgx.Tx) (bool, error) {
		return query.IsInProgress(ctx, tx, messageID, now)
	})
}

// IsMissing reports whether messageID's lease has expired without a
// resolution.
func (q *Queries) IsMissing(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "IsMissing", func(tx pgx.Tx) (bool, error) {
		return query.IsMissing(ctx, tx, messageID, now)
	})
}

// IsFailed reports whether messageID has a failed attempt awaiting retry.
func (q *Queries) IsFailed(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "IsFailed", func(tx pgx.Tx) (bool, error) {
		return query.IsFailed(ctx, tx, messageID, now)
	})
}

// IsSucceeded reports whether messageID completed successfully.
func (q *Queries) IsSucceeded(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "IsSucceeded", func(tx pgx.Tx) (bool, error) {
		return query.IsSucceeded(ctx, tx, messageID, now)
	})
}

// IsDead reports whether messageID was given up on permanently.
func (q *Queries) IsDead(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "IsDead", func(tx pgx.Tx) (bool, error) {
		return query.IsDead(ctx, tx, messageID, now)
	})
}

// HasActiveLease reports whether messageID currently has a live lease,
// independent of its broader lifecycle state.
func (q *Queries) HasActiveLease(ctx context.Context, messageID uuid.UUID, now time.Time) (bool, error) {
	return withTx(ctx, q, "HasActiveLease", func(tx pgx.Tx) (bool, error) {
		return query.HasActiveLease(ctx, tx, messageID, now)
	})
}
