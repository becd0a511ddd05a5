package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// state is the derived lifecycle state of a message, per the eight-boolean
// vector in the data model.
type state int

const (
	statePending state = iota
	stateInProgress
	stateMissing
	stateFailed
	stateSucceeded
	stateDead
)

// rawState is the eight-boolean vector read in a single query; any
// combination not matched by classify is an invariant violation.
type rawState struct {
	isPending         bool
	isAttempted       bool
	hasAnyLease       bool
	hasActiveLease    bool
	hasFailedAttempts bool
	hasErrors         bool
	isSucceeded       bool
	isDead            bool
}

// classify matches the raw vector against the lifecycle state table.
// Any combination that matches none of the rows below indicates a broken
// core invariant and is a hard failure, not a recoverable error — it is
// never reachable through the D operations if they are implemented
// correctly, so a panic here signals a bug in the queue itself rather than
// bad caller input.
func (r rawState) classify() state {
	switch {
	case r.isPending && !r.isAttempted && !r.hasAnyLease && !r.hasActiveLease &&
		!r.hasFailedAttempts && !r.hasErrors && !r.isSucceeded && !r.isDead:
		return statePending
	case !r.isPending && r.isAttempted && r.hasAnyLease && r.hasActiveLease &&
		!r.isSucceeded && !r.isDead:
		return stateInProgress
	case !r.isPending && r.isAttempted && r.hasAnyLease && !r.hasActiveLease &&
		!r.isSucceeded && !r.isDead:
		return stateMissing
	case !r.isPending && r.isAttempted && !r.hasAnyLease && !r.hasActiveLease &&
		r.hasFailedAttempts && r.hasErrors && !r.isSucceeded && !r.isDead:
		return stateFailed
	case !r.isPending && r.isAttempted && !r.hasAnyLease && !r.hasActiveLease &&
		!r.hasFailedAttempts && r.isSucceeded && !r.isDead:
		return stateSucceeded
	case !r.isPending && r.isAttempted && !r.hasAnyLease && !r.hasActiveLease &&
		!r.hasFailedAttempts && r.hasErrors && !r.isSucceeded && r.isDead:
		return stateDead
	default:
		panic(fmt.Sprintf("fxmq: undefined message state %+v", r))
	}
}

func getRawState(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (rawState, error) {
	const sql = `
		SELECT
			EXISTS (SELECT 1 FROM messages_unattempted mu WHERE mu.id = $1),
			EXISTS (SELECT 1 FROM messages_attempted ma WHERE ma.id = $1),
			EXISTS (SELECT 1 FROM leases l WHERE l.message_id = $1),
			EXISTS (SELECT 1 FROM leases l WHERE l.message_id = $1 AND l.expires_at > $2),
			EXISTS (SELECT 1 FROM attempts_failed af WHERE af.message_id = $1),
			EXISTS (SELECT 1 FROM errors e WHERE e.message_id = $1),
			EXISTS (SELECT 1 FROM attempts_succeeded s WHERE s.message_id = $1),
			EXISTS (SELECT 1 FROM attempts_dead d WHERE d.message_id = $1)
	`
	row := db.QueryRow(ctx, sql, messageID, now)
	var r rawState
	err := row.Scan(&r.isPending, &r.isAttempted, &r.hasAnyLease, &r.hasActiveLease,
		&r.hasFailedAttempts, &r.hasErrors, &r.isSucceeded, &r.isDead)
	if err != nil {
		return rawState{}, wrapErr("get_raw_state", err)
	}
	return r, nil
}

func isOfState(ctx context.Context, db Executor, want state, messageID uuid.UUID, now time.Time) (bool, error) {
	r, err := getRawState(ctx, db, messageID, now)
	if err != nil {
		return false, err
	}
	return r.classify() == want, nil
}

func IsPending(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	return isOfState(ctx, db, statePending, messageID, now)
}

func IsInProgress(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	return isOfState(ctx, db, stateInProgress, messageID, now)
}

func IsMissing(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	return isOfState(ctx, db, stateMissing, messageID, now)
}

func IsFailed(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	return isOfState(ctx, db, stateFailed, messageID, now)
}

func IsSucceeded(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	return isOfState(ctx, db, stateSucceeded, messageID, now)
}

func IsDead(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	return isOfState(ctx, db, stateDead, messageID, now)
}

// HasActiveLease reports whether the message currently has a lease with
// expires_at > now, independent of its broader lifecycle state.
func HasActiveLease(ctx context.Context, db Executor, messageID uuid.UUID, now time.Time) (bool, error) {
	const sql = `SELECT EXISTS (SELECT 1 FROM leases WHERE message_id = $1 AND expires_at > $2)`
	row := db.QueryRow(ctx, sql, messageID, now)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, wrapErr("has_active_lease", err)
	}
	return exists, nil
}
