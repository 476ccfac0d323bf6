package syncworker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/outbox"
	"github.com/dmitrijs2005/moodkeeper/internal/client/store"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncclient"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrincipal struct {
	uid string
	err error
}

func (f fakePrincipal) CurrentUserID(context.Context) (string, bool, error) {
	return f.uid, f.uid != "", f.err
}

// scriptedClient answers Deliver from a per-key script; keys missing from
// the script succeed.
type scriptedClient struct {
	mu      sync.Mutex
	fail    map[string]bool
	panicOn string
	calls   []string
}

func (c *scriptedClient) Deliver(_ context.Context, uid string, op models.OutboxOperation) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op.KeyRef == c.panicOn {
		panic("boom")
	}
	if !op.Type.Known() {
		return false, syncclient.ErrUnknownOperation
	}
	c.calls = append(c.calls, op.KeyRef)
	return !c.fail[op.KeyRef], nil
}

type fixture struct {
	st     *store.Store
	queue  *outbox.Queue
	client *scriptedClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "moodkeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &fixture{st: st, queue: outbox.New(st), client: &scriptedClient{fail: map[string]bool{}}}
}

func (f *fixture) worker(uid string) *Worker {
	return New(fakePrincipal{uid: uid}, f.queue, f.client, 0, logging.Nop{})
}

func (f *fixture) enqueue(t *testing.T, typ models.OperationType, key string, at int64) string {
	t.Helper()
	id, err := f.st.Enqueue(context.Background(), typ, key, `{"dateId":"`+key+`","mood":3,"createdAt":1}`, at)
	require.NoError(t, err)
	return id
}

func (f *fixture) status(t *testing.T, id string) models.Status {
	t.Helper()
	op, err := f.st.GetOperation(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, op)
	return op.Status
}

func TestCycle_AllSent(t *testing.T) {
	f := newFixture(t)
	ids := []string{
		f.enqueue(t, models.OpUpsertMood, "2025-03-01", 1),
		f.enqueue(t, models.OpUpsertMood, "2025-03-02", 2),
		f.enqueue(t, models.OpUpsertMood, "2025-03-03", 3),
	}

	rep := f.worker("u1").Cycle(context.Background())
	assert.Equal(t, Success, rep.Result)
	assert.Equal(t, 3, rep.Sent)
	for _, id := range ids {
		assert.Equal(t, models.StatusSent, f.status(t, id))
	}
	n, err := f.st.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03"}, f.client.calls, "FIFO order")
}

func TestCycle_AbortsOnFirstRemoteFailure(t *testing.T) {
	f := newFixture(t)
	op1 := f.enqueue(t, models.OpUpsertMood, "2025-03-01", 1)
	op2 := f.enqueue(t, models.OpUpsertMood, "2025-03-02", 2)
	op3 := f.enqueue(t, models.OpUpsertMood, "2025-03-03", 3)
	f.client.fail["2025-03-02"] = true
	w := f.worker("u1")

	assert.Equal(t, Retry, w.RunCycle(context.Background()))
	assert.Equal(t, models.StatusSent, f.status(t, op1))
	assert.Equal(t, models.StatusFailed, f.status(t, op2))
	assert.Equal(t, models.StatusPending, f.status(t, op3))

	op, err := f.st.GetOperation(context.Background(), op2)
	require.NoError(t, err)
	assert.Equal(t, 1, op.Retries)

	f.client.calls = nil
	assert.Equal(t, Success, w.RunCycle(context.Background()))
	assert.Equal(t, []string{"2025-03-03"}, f.client.calls, "failed op is never retried")
	assert.Equal(t, models.StatusFailed, f.status(t, op2))
	assert.Equal(t, models.StatusSent, f.status(t, op3))
}

func TestCycle_NoPrincipal(t *testing.T) {
	f := newFixture(t)
	id := f.enqueue(t, models.OpUpsertMood, "2025-03-01", 1)

	rep := f.worker("").Cycle(context.Background())
	assert.Equal(t, Retry, rep.Result)
	assert.Empty(t, f.client.calls)
	assert.Equal(t, models.StatusPending, f.status(t, id))
}

func TestCycle_PrincipalError(t *testing.T) {
	f := newFixture(t)
	w := New(fakePrincipal{err: errors.New("db locked")}, f.queue, f.client, 0, logging.Nop{})
	assert.Equal(t, Retry, w.RunCycle(context.Background()))
}

func TestCycle_EmptyQueue(t *testing.T) {
	f := newFixture(t)
	rep := f.worker("u1").Cycle(context.Background())
	assert.Equal(t, Success, rep.Result)
	assert.Zero(t, rep.Sent)
}

func TestCycle_UnknownTypeFailsAndContinues(t *testing.T) {
	f := newFixture(t)
	bad := f.enqueue(t, "DELETE_EVERYTHING", "2025-03-01", 1)
	good := f.enqueue(t, models.OpUpsertMood, "2025-03-02", 2)

	rep := f.worker("u1").Cycle(context.Background())
	assert.Equal(t, Success, rep.Result)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, models.StatusFailed, f.status(t, bad))
	assert.Equal(t, models.StatusSent, f.status(t, good))
}

func TestCycle_BatchSize(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < DefaultBatchSize+5; i++ {
		f.enqueue(t, models.OpUpsertMood, "k", int64(i))
	}
	w := f.worker("u1")

	rep := w.Cycle(context.Background())
	assert.Equal(t, DefaultBatchSize, rep.Sent)
	n, err := f.st.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rep = w.Cycle(context.Background())
	assert.Equal(t, 5, rep.Sent)
}

func TestCycle_PanicBecomesRetry(t *testing.T) {
	f := newFixture(t)
	id := f.enqueue(t, models.OpUpsertMood, "2025-03-01", 1)
	f.client.panicOn = "2025-03-01"

	var rep Report
	require.NotPanics(t, func() { rep = f.worker("u1").Cycle(context.Background()) })
	assert.Equal(t, Retry, rep.Result)
	assert.Equal(t, models.StatusPending, f.status(t, id))
	assert.True(t, f.queue.Claim(id), "claim released after panic")
}

func TestCycle_SkipsClaimedOperations(t *testing.T) {
	f := newFixture(t)
	claimed := f.enqueue(t, models.OpUpsertMood, "2025-03-01", 1)
	other := f.enqueue(t, models.OpUpsertMood, "2025-03-02", 2)
	require.True(t, f.queue.Claim(claimed))

	rep := f.worker("u1").Cycle(context.Background())
	assert.Equal(t, Success, rep.Result)
	assert.Equal(t, []string{"2025-03-02"}, f.client.calls)
	assert.Equal(t, models.StatusPending, f.status(t, claimed))
	assert.Equal(t, models.StatusSent, f.status(t, other))
}

type brokenQueue struct {
	Queue
	pendingErr error
	ops        []models.OutboxOperation
	markErr    error
}

func (b *brokenQueue) Pending(context.Context, int) ([]models.OutboxOperation, error) {
	return b.ops, b.pendingErr
}
func (b *brokenQueue) Complete(context.Context, models.OutboxOperation) error { return b.markErr }
func (b *brokenQueue) Fail(context.Context, models.OutboxOperation) error     { return b.markErr }
func (b *brokenQueue) Claim(string) bool                                      { return true }
func (b *brokenQueue) Release(string)                                         {}

func TestCycle_StorageErrors(t *testing.T) {
	client := &scriptedClient{fail: map[string]bool{}}

	w := New(fakePrincipal{uid: "u1"}, &brokenQueue{pendingErr: errors.New("disk I/O error")}, client, 0, logging.Nop{})
	assert.Equal(t, Retry, w.RunCycle(context.Background()))

	q := &brokenQueue{
		ops:     []models.OutboxOperation{{ID: "a", Type: models.OpUpsertMood, KeyRef: "k", Status: models.StatusPending}},
		markErr: errors.New("disk full"),
	}
	w = New(fakePrincipal{uid: "u1"}, q, client, 0, logging.Nop{})
	rep := w.Cycle(context.Background())
	assert.Equal(t, Retry, rep.Result)
	assert.Equal(t, "error", rep.Reason)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "Result(9)", Result(9).String())
}

// countingQueue counts completions per operation.
type countingQueue struct {
	*outbox.Queue
	completed map[string]int
}

func (q *countingQueue) Complete(ctx context.Context, op models.OutboxOperation) error {
	q.completed[op.ID]++
	return q.Queue.Complete(ctx, op)
}

func TestRunCycle_DeliversMoodToRemote(t *testing.T) {
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "moodkeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	q := &countingQueue{Queue: outbox.New(st), completed: map[string]int{}}
	op, err := q.Append(ctx, models.OpUpsertMood, "2024-01-10", models.MoodPayload("2024-01-10", 4, 1000), 1000)
	require.NoError(t, err)

	mem := remote.NewMemory()
	w := New(fakePrincipal{uid: "u1"}, q, syncclient.New(mem, time.Second, logging.Nop{}), 0, logging.Nop{})

	assert.Equal(t, Success, w.RunCycle(ctx))

	assert.Equal(t, map[string]int{op.ID: 1}, q.completed)
	stored, err := st.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, stored.Status)

	n, err := st.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, []string{"users/u1/moods/2024-01-10"}, mem.Paths(remote.UserRoot("u1")))
	node, ok := mem.Get(remote.MoodPath("u1", "2024-01-10"))
	require.True(t, ok)
	want := map[string]any{"dateId": "2024-01-10", "mood": 4, "createdAt": int64(1000)}
	if diff := cmp.Diff(want, node); diff != "" {
		t.Errorf("remote node mismatch (-want +got):\n%s", diff)
	}
}
