// Package fxmq is a PostgreSQL-backed durable message queue. Producers
// publish messages that are delivered at least once to competing workers
// ("hosts"). The queue guarantees exclusive-while-leased dispatch, recovery
// from worker crashes, retry with backoff, and dead-lettering after a
// configurable retry budget.
package fxmq

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// Message is implemented by user-defined message payload types. NAME must
// be a stable identifier; Hash is a deterministic fingerprint over Name
// used as an O(1) consumer-routing key.
type Message interface {
	Name() string
	Hash() int32
}

// RawMessage is the persisted representation of a message, independent of
// its payload type.
type RawMessage struct {
	ID        uuid.UUID
	Name      string
	Hash      int32
	Payload   json.RawMessage
	Attempted int32
}

// HashName computes the FNV-1a 32-bit hash of name, the convention used
// by every Message implementation in this repo for Hash(). Two messages
// with the same Name() must return the same Hash(), since workers route
// dispatched messages to handlers by this value.
func HashName(name string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int32(h.Sum32())
}

// NewRawMessage builds the row that publish_message will insert: a fresh
// UUIDv7 id and Attempted synthesized as 0, matching what publish_message,
// get_next_unattempted and get_next_missing report (get_next_retryable
// instead reports the counter from the chosen failed attempt).
func NewRawMessage(msg Message, payload json.RawMessage) (RawMessage, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return RawMessage{}, fmt.Errorf("generate message id: %w", err)
	}
	return RawMessage{
		ID:      id,
		Name:    msg.Name(),
		Hash:    msg.Hash(),
		Payload: payload,
	}, nil
}

// DatabaseError wraps any transport or constraint failure from the
// relational backend. Foreign-key violations on report operations (for
// example reporting success on a message that was never attempted) are
// wrapped here unchanged — callers that need to distinguish them inspect
// the wrapped *pgconn.PgError via errors.As.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("fxmq: %s: %v", e.Op, e.Err) }
func (e *DatabaseError) Unwrap() error { return e.Err }

// IdentifierErrorKind enumerates why a schema name failed validation.
type IdentifierErrorKind int

const (
	IdentifierEmpty IdentifierErrorKind = iota
	IdentifierTooLarge
	IdentifierInvalidFirstChar
)

func (k IdentifierErrorKind) String() string {
	switch k {
	case IdentifierEmpty:
		return "empty"
	case IdentifierTooLarge:
		return "too large"
	case IdentifierInvalidFirstChar:
		return "invalid first character"
	default:
		return "unknown"
	}
}

// IdentifierError reports why a schema name was rejected by the identifier
// validator (component B).
type IdentifierError struct {
	Kind IdentifierErrorKind
	Raw  string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("fxmq: invalid identifier %q: %s", e.Raw, e.Kind)
}

// MigrateError wraps a failure to apply the embedded migration set.
type MigrateError struct {
	Err error
}

func (e *MigrateError) Error() string { return fmt.Sprintf("fxmq: migrate: %v", e.Err) }
func (e *MigrateError) Unwrap() error  { return e.Err }
