package query_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/internal/testutil"
	"github.com/jakoblilliemarck/fxmq/query"
)

// testMessage mirrors the original implementation's TestMessage fixture:
// the same name, payload shape, and default values.
type testMessage struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

func (testMessage) Name() string { return "TestMessage" }
func (testMessage) Hash() int32  { return fxmq.HashName("TestMessage") }

func defaultTestMessage() testMessage {
	return testMessage{Message: "whats the meaning of life, the universe and everything?", Value: 42}
}

func rawOf(t *testing.T, m testMessage) fxmq.RawMessage {
	t.Helper()
	payload, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := fxmq.NewRawMessage(m, payload)
	if err != nil {
		t.Fatalf("build raw message: %v", err)
	}
	return raw
}

// attemptedMessageID publishes a message and dispatches it for hostID, so
// that it sits in messages_attempted as the leases foreign key requires.
func attemptedMessageID(ctx context.Context, t *testing.T, db query.Executor, now time.Time, hostID uuid.UUID, holdFor time.Duration) uuid.UUID {
	t.Helper()
	published, err := query.PublishMessage(ctx, db, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	polled, err := query.GetNextUnattempted(ctx, db, now, hostID, holdFor)
	if err != nil || polled == nil || polled.ID != published.ID {
		t.Fatalf("dispatch published message: got %+v, err %v", polled, err)
	}
	return published.ID
}

func TestPublishMessage(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, testMessage{Message: "test", Value: 42}))
	if err != nil {
		t.Fatalf("publish_message: %v", err)
	}
	if published.Name != "TestMessage" {
		t.Errorf("name = %q, want TestMessage", published.Name)
	}

	pending, err := query.IsPending(ctx, tx, published.ID, time.Now())
	if err != nil {
		t.Fatalf("is_pending: %v", err)
	}
	if !pending {
		t.Error("expected message to be pending after publish")
	}
}

func TestGetNextUnattemptedHappyPath(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())

	polled, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}
	if polled == nil {
		t.Fatal("expected a message to be returned")
	}
	if polled.ID != published.ID {
		t.Errorf("polled id = %v, want %v", polled.ID, published.ID)
	}

	inProgress, err := query.IsInProgress(ctx, tx, published.ID, now)
	if err != nil {
		t.Fatalf("is_in_progress: %v", err)
	}
	if !inProgress {
		t.Error("expected message to be in progress")
	}
}

func TestGetNextUnattemptedReturnsNilWhenNoneAvailable(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	polled, err := query.GetNextUnattempted(ctx, tx, time.Now(), uuid.Must(uuid.NewV7()), time.Minute)
	if err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}
	if polled != nil {
		t.Errorf("expected no message, got %+v", polled)
	}
}

func TestGetNextUnattemptedOnlyOnce(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())

	first, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}
	if first == nil || first.ID != published.ID {
		t.Fatalf("expected to dispatch published message, got %+v", first)
	}

	second, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}
	if second != nil {
		t.Errorf("expected no second message, got %+v", second)
	}
}

func TestGetNextUnattemptedSkipLockedFairness(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	m1, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish m1: %v", err)
	}
	time.Sleep(time.Millisecond) // ensure distinct published_at ordering
	m2, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish m2: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())

	polled1, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("get_next_unattempted 1: %v", err)
	}
	polled2, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("get_next_unattempted 2: %v", err)
	}

	if polled1 == nil || polled1.ID != m1.ID {
		t.Errorf("first polled = %+v, want %v", polled1, m1.ID)
	}
	if polled2 == nil || polled2.ID != m2.ID {
		t.Errorf("second polled = %+v, want %v", polled2, m2.ID)
	}
}

func TestReportSuccessClearsLeaseAndFailures(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())
	if _, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute); err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}

	if err := query.ReportSuccess(ctx, tx, published.ID, now); err != nil {
		t.Fatalf("report_success: %v", err)
	}

	succeeded, err := query.IsSucceeded(ctx, tx, published.ID, now)
	if err != nil {
		t.Fatalf("is_succeeded: %v", err)
	}
	if !succeeded {
		t.Error("expected message to be succeeded")
	}
}

func TestReportSuccessErrorsWhenNotAttempted(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := query.ReportSuccess(ctx, tx, published.ID, time.Now()); err == nil {
		t.Error("expected an error reporting success on an unattempted message")
	}
}

func TestReportRetryableThenGetNextRetryable(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())
	if _, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute); err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}

	if err := query.ReportRetryable(ctx, tx, published.ID, now, 1, now, "some error happened"); err != nil {
		t.Fatalf("report_retryable: %v", err)
	}

	failed, err := query.IsFailed(ctx, tx, published.ID, now)
	if err != nil {
		t.Fatalf("is_failed: %v", err)
	}
	if !failed {
		t.Fatal("expected message to be failed")
	}

	polled, err := query.GetNextRetryable(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("get_next_retryable: %v", err)
	}
	if polled == nil || polled.ID != published.ID {
		t.Fatalf("expected retryable message to be returned, got %+v", polled)
	}

	if err := query.ReportSuccess(ctx, tx, published.ID, now); err != nil {
		t.Fatalf("report_success: %v", err)
	}
}

func TestGetNextRetryableSkipsActiveLease(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())
	if _, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute); err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}
	if err := query.ReportRetryable(ctx, tx, published.ID, now, 1, now, "err"); err != nil {
		t.Fatalf("report_retryable: %v", err)
	}

	if _, err := query.GetNextRetryable(ctx, tx, now, hostID, time.Minute); err != nil {
		t.Fatalf("first get_next_retryable: %v", err)
	}

	again, err := query.GetNextRetryable(ctx, tx, now, hostID, time.Minute)
	if err != nil {
		t.Fatalf("second get_next_retryable: %v", err)
	}
	if again != nil {
		t.Errorf("expected no retryable message while lease active, got %+v", again)
	}
}

func TestReportDeadClearsLeaseAndFailures(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())
	if _, err := query.GetNextUnattempted(ctx, tx, now, hostID, time.Minute); err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}

	if err := query.ReportDead(ctx, tx, published.ID, now, "some error happened"); err != nil {
		t.Fatalf("report_dead: %v", err)
	}

	dead, err := query.IsDead(ctx, tx, published.ID, now)
	if err != nil {
		t.Fatalf("is_dead: %v", err)
	}
	if !dead {
		t.Error("expected message to be dead")
	}
}

func TestReportDeadErrorsWhenNotAttempted(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := query.ReportDead(ctx, tx, published.ID, time.Now(), "err"); err == nil {
		t.Error("expected an error reporting dead on an unattempted message")
	}
}

func TestGetNextMissingRescuesExpiredLease(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	published, err := query.PublishMessage(ctx, tx, rawOf(t, defaultTestMessage()))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	now := time.Now()
	hostID := uuid.Must(uuid.NewV7())
	holdFor := time.Millisecond

	polled, err := query.GetNextUnattempted(ctx, tx, now, hostID, holdFor)
	if err != nil {
		t.Fatalf("get_next_unattempted: %v", err)
	}
	if polled == nil || polled.ID != published.ID {
		t.Fatalf("expected dispatch, got %+v", polled)
	}

	later := now.Add(2 * holdFor)
	missing, err := query.IsMissing(ctx, tx, published.ID, later)
	if err != nil {
		t.Fatalf("is_missing: %v", err)
	}
	if !missing {
		t.Fatal("expected message to be missing once its lease has expired")
	}

	rescuer := uuid.Must(uuid.NewV7())
	rescued, err := query.GetNextMissing(ctx, tx, later, rescuer, time.Minute)
	if err != nil {
		t.Fatalf("get_next_missing: %v", err)
	}
	if rescued == nil || rescued.ID != published.ID {
		t.Fatalf("expected rescue to return original message, got %+v", rescued)
	}

	inProgress, err := query.IsInProgress(ctx, tx, published.ID, later)
	if err != nil {
		t.Fatalf("is_in_progress: %v", err)
	}
	if !inProgress {
		t.Error("expected message to be back in progress after rescue")
	}
}

func TestRequestLeaseSelfRenewalAlwaysSucceeds(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	hostID := uuid.Must(uuid.NewV7())
	now := time.Now()
	holdFor := time.Minute
	messageID := attemptedMessageID(ctx, t, tx, now, hostID, holdFor)

	first, err := query.RequestLease(ctx, tx, messageID, now, hostID, holdFor)
	if err != nil {
		t.Fatalf("request_lease: %v", err)
	}
	if first == nil {
		t.Fatal("expected a lease to be acquired")
	}

	later := now.Add(time.Microsecond)
	second, err := query.RequestLease(ctx, tx, messageID, later, hostID, holdFor)
	if err != nil {
		t.Fatalf("request_lease renewal: %v", err)
	}
	if second == nil {
		t.Error("expected self-renewal to always succeed")
	}
}

func TestRequestLeaseAlienBlocks(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	host1 := uuid.Must(uuid.NewV7())
	host2 := uuid.Must(uuid.NewV7())
	now := time.Now()
	holdFor := time.Minute
	messageID := attemptedMessageID(ctx, t, tx, now, host1, holdFor)

	if _, err := query.RequestLease(ctx, tx, messageID, now, host1, holdFor); err != nil {
		t.Fatalf("request_lease host1: %v", err)
	}

	denied, err := query.RequestLease(ctx, tx, messageID, now, host2, holdFor)
	if err != nil {
		t.Fatalf("request_lease host2: %v", err)
	}
	if denied != nil {
		t.Errorf("expected alien-held active lease to block, got %+v", denied)
	}
}

func TestRequestLeaseAcquiresExpiredAlienLease(t *testing.T) {
	pool, schema := testutil.NewSchema(t)
	ctx := context.Background()
	tx := testutil.BeginScoped(ctx, t, pool, schema)

	host1 := uuid.Must(uuid.NewV7())
	now := time.Now()
	holdFor := 10 * time.Millisecond
	messageID := attemptedMessageID(ctx, t, tx, now, host1, holdFor)

	if _, err := query.RequestLease(ctx, tx, messageID, now, host1, holdFor); err != nil {
		t.Fatalf("request_lease host1: %v", err)
	}

	host2 := uuid.Must(uuid.NewV7())
	later := now.Add(2 * holdFor)
	granted, err := query.RequestLease(ctx, tx, messageID, later, host2, holdFor)
	if err != nil {
		t.Fatalf("request_lease host2: %v", err)
	}
	if granted == nil {
		t.Error("expected an expired alien lease to be acquirable")
	}
}
