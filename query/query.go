// Package query implements the atomic dispatch operations (component D)
// and the derived state predicates (component E) of the queue. Every
// mutating operation here is a single round trip: one multi-CTE SQL
// statement relying on PostgreSQL's FOR UPDATE SKIP LOCKED for
// contention-free dispatch, so that no two operations ever hold an
// in-process lock across a suspension point — all mutual exclusion is
// delegated to the database.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jakoblilliemarck/fxmq"
)

// Executor is the subset of pgx's connection-like types this package
// needs. Both pgx.Tx and *pgxpool.Pool satisfy it; in practice every
// operation here is called through a transaction scoped by the
// schema-scoped facade, but tests may exercise it directly against a pool.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &fxmq.DatabaseError{Op: op, Err: err}
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanMessage(row pgx.Row) (*fxmq.RawMessage, error) {
	var m fxmq.RawMessage
	var payload []byte
	if err := row.Scan(&m.ID, &m.Name, &m.Hash, &payload, &m.Attempted); err != nil {
		return nil, err
	}
	m.Payload = json.RawMessage(payload)
	return &m, nil
}

// PublishMessage inserts a new row in messages_unattempted with
// published_at = now(). Returns the stored row with Attempted synthesized
// as 0. Errors if the id collides with an existing row.
func PublishMessage(ctx context.Context, db Executor, msg fxmq.RawMessage) (*fxmq.RawMessage, error) {
	const sql = `
		INSERT INTO messages_unattempted (id, name, hash, payload, published_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, name, hash, payload, 0
	`
	row := db.QueryRow(ctx, sql, msg.ID, msg.Name, msg.Hash, []byte(msg.Payload))
	m, err := scanMessage(row)
	if err != nil {
		return nil, wrapErr("publish_message", err)
	}
	return m, nil
}

// GetNextUnattempted atomically takes the oldest unattempted message
// (published_at ASC, id ASC), acquires a lease for host_id, and moves it
// into messages_attempted. Returns nil, nil if no candidate is available.
func GetNextUnattempted(ctx context.Context, db Executor, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*fxmq.RawMessage, error) {
	const sql = `
		WITH next_message AS (
			DELETE FROM messages_unattempted
			WHERE id = (
				SELECT id
				FROM messages_unattempted
				ORDER BY published_at ASC, id ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING *
		),
		leased AS (
			INSERT INTO leases (message_id, acquired_at, acquired_by, expires_at)
			SELECT id, $1, $2, $3
			FROM next_message
			RETURNING message_id
		),
		attempted AS (
			INSERT INTO messages_attempted (id, name, hash, payload, published_at)
			SELECT id, name, hash, payload, published_at
			FROM next_message
			RETURNING id, name, hash, payload
		)
		SELECT id, name, hash, payload, 0
		FROM attempted
	`
	row := db.QueryRow(ctx, sql, now, hostID, now.Add(holdFor))
	m, err := scanMessage(row)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrapErr("get_next_unattempted", err)
	}
	return m, nil
}

// GetNextRetryable selects the message whose most recent failed attempt
// is eligible for retry (retry_earliest_at <= now) and has no active
// lease, preferring the oldest such attempt, acquires a fresh lease, and
// returns the message together with the attempt counter from the chosen
// failed row.
//
// Tied failed_at timestamps are disambiguated only by the
// "ORDER BY ... , message_id ASC LIMIT 1" clause; this tiebreak is carried
// over from the original implementation unmodified and is best-effort, not
// a guaranteed total order (see design notes).
func GetNextRetryable(ctx context.Context, db Executor, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*fxmq.RawMessage, error) {
	const sql = `
		WITH next_retryable AS (
			SELECT fa.message_id, fa.attempted
			FROM attempts_failed fa
			WHERE fa.retry_earliest_at <= $1
			  AND NOT EXISTS (
				  SELECT 1 FROM leases l
				  WHERE l.message_id = fa.message_id AND l.expires_at > $1
			  )
			  AND fa.failed_at = (
				  SELECT MAX(fa2.failed_at)
				  FROM attempts_failed fa2
				  WHERE fa2.message_id = fa.message_id
			  )
			ORDER BY fa.failed_at ASC, fa.message_id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		),
		leased AS (
			INSERT INTO leases (message_id, acquired_at, acquired_by, expires_at)
			SELECT nr.message_id, $1, $2, $3
			FROM next_retryable nr
			RETURNING message_id
		)
		SELECT id, name, hash, payload, (SELECT attempted FROM next_retryable)
		FROM messages_attempted
		WHERE id = (SELECT message_id FROM leased)
	`
	row := db.QueryRow(ctx, sql, now, hostID, now.Add(holdFor))
	m, err := scanMessage(row)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrapErr("get_next_retryable", err)
	}
	return m, nil
}

// GetNextMissing selects a message with an expired lease that is neither
// succeeded nor dead, updates that lease in place for host_id, and returns
// the message. The returned Attempted is always reported as 0: a rescue is
// not a fresh failure, so callers that need attempt history must read
// attempts_failed directly (carried over from the original implementation
// unmodified; see design notes).
func GetNextMissing(ctx context.Context, db Executor, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*fxmq.RawMessage, error) {
	const sql = `
		WITH candidate AS (
			SELECT ma.*
			FROM leases l
			JOIN messages_attempted ma ON ma.id = l.message_id
			WHERE l.expires_at < $1
			  AND NOT EXISTS (SELECT 1 FROM attempts_succeeded s WHERE s.message_id = ma.id)
			  AND NOT EXISTS (SELECT 1 FROM attempts_dead d WHERE d.message_id = ma.id)
			ORDER BY ma.published_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE leases le
		SET acquired_at = $1, acquired_by = $2, expires_at = $3
		FROM candidate c
		WHERE le.message_id = c.id
		RETURNING c.id, c.name, c.hash, c.payload, 0
	`
	row := db.QueryRow(ctx, sql, now, hostID, now.Add(holdFor))
	m, err := scanMessage(row)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrapErr("get_next_missing", err)
	}
	return m, nil
}

// ReportSuccess atomically deletes the message's lease and failed
// attempts, and records it as succeeded. Errors if the message was never
// attempted (foreign-key violation on attempts_succeeded.message_id),
// surfaced unchanged as a DatabaseError.
func ReportSuccess(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) error {
	const sql = `
		WITH del_leases AS (
			DELETE FROM leases WHERE message_id = $1
		),
		del_failed AS (
			DELETE FROM attempts_failed WHERE message_id = $1
		)
		INSERT INTO attempts_succeeded (message_id, succeeded_at)
		VALUES ($1, $2)
	`
	_, err := db.Exec(ctx, sql, messageID, now)
	return wrapErr("report_success", err)
}

// ReportRetryable atomically deletes the message's lease, appends a
// failed-attempt row and an error row. attempted must already be
// incremented by the caller before this call. Errors if the message was
// never attempted.
func ReportRetryable(ctx context.Context, db Executor, messageID uuid.UUID, failedAt time.Time, attempted int32, retryEarliestAt time.Time, errStr string) error {
	failedID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate failed-attempt id: %w", err)
	}
	errorID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate error id: %w", err)
	}

	const sql = `
		WITH del_leases AS (
			DELETE FROM leases WHERE message_id = $1
		),
		ins_failed AS (
			INSERT INTO attempts_failed (id, message_id, failed_at, attempted, retry_earliest_at)
			VALUES ($2, $1, $3, $4, $5)
		)
		INSERT INTO errors (id, message_id, reported_at, error)
		VALUES ($6, $1, $3, $7)
	`
	_, err = db.Exec(ctx, sql, messageID, failedID, failedAt, attempted, retryEarliestAt, errorID, errStr)
	return wrapErr("report_retryable", err)
}

// ReportDead atomically deletes the message's lease and failed attempts,
// records it as dead, and appends an error row. Errors if the message was
// never attempted.
func ReportDead(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time, errStr string) error {
	deadID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate error id: %w", err)
	}

	const sql = `
		WITH del_leases AS (
			DELETE FROM leases WHERE message_id = $2
		),
		del_failed AS (
			DELETE FROM attempts_failed WHERE message_id = $2
		),
		ins_dead AS (
			INSERT INTO attempts_dead (message_id, dead_at) VALUES ($2, $3)
		)
		INSERT INTO errors (id, message_id, reported_at, error)
		VALUES ($1, $2, $3, $4)
	`
	_, err = db.Exec(ctx, sql, deadID, messageID, now, errStr)
	return wrapErr("report_dead", err)
}

// RequestLease inserts a lease row for host_id iff no other host currently
// holds an active lease for the message. The same host may always renew:
// only an alien-owned active lease blocks acquisition. Returns the new
// expiry, or nil if denied.
//
// Every successful call inserts a new row rather than updating an
// existing one in place; this grows the lease table without a visible GC
// path, carried over unmodified from the original implementation (see
// design notes) — the "alien active lease blocks" semantics must be, and
// are, preserved regardless of row-count growth.
func RequestLease(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time, hostID uuid.UUID, holdFor time.Duration) (*time.Time, error) {
	const sql = `
		INSERT INTO leases (message_id, acquired_at, acquired_by, expires_at)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM leases
			WHERE message_id = $1 AND acquired_by != $3 AND expires_at > $2
		)
		RETURNING expires_at
	`
	row := db.QueryRow(ctx, sql, messageID, now, hostID, now.Add(holdFor))
	var expiresAt time.Time
	if err := row.Scan(&expiresAt); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, wrapErr("request_lease", err)
	}
	return &expiresAt, nil
}
