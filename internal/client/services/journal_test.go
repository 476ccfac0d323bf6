package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/outbox"
	"github.com/dmitrijs2005/moodkeeper/internal/client/store"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncclient"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncworker"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
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

type fakeTrigger struct{ calls int }

func (f *fakeTrigger) TriggerNow() { f.calls++ }

type fakeProbe bool

func (f fakeProbe) Online() bool { return bool(f) }

type fakeDeliverer struct {
	ok    bool
	err   error
	calls []models.OutboxOperation
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ string, op models.OutboxOperation) (bool, error) {
	f.calls = append(f.calls, op)
	return f.ok, f.err
}

type env struct {
	st      *store.Store
	queue   *outbox.Queue
	client  *fakeDeliverer
	trigger *fakeTrigger
	svc     *JournalService
}

func newEnv(t *testing.T, p Principal, probe Connectivity, delivered bool) *env {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	e := &env{st: st, queue: outbox.New(st), client: &fakeDeliverer{ok: delivered}, trigger: &fakeTrigger{}}
	e.svc = NewJournalService(st, e.queue, e.client, p, e.trigger, probe, logging.Nop{})
	e.svc.clock = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return e
}

func (e *env) counts(t *testing.T) models.StatusCounts {
	t.Helper()
	c, err := e.st.CountByStatus(context.Background())
	require.NoError(t, err)
	return c
}

func TestSaveDiary_SyncedWhenOnline(t *testing.T) {
	e := newEnv(t, fakePrincipal{uid: "u1"}, fakeProbe(true), true)
	ctx := context.Background()

	res, err := e.svc.SaveDiary(ctx, "2025-03-14", "good day")
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Zero(t, e.trigger.calls)

	got, err := e.svc.Diary(ctx, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, &models.DiaryEntry{DateID: "2025-03-14", Text: "good day", UpdatedAt: 1_700_000_000_000}, got)

	require.Len(t, e.client.calls, 1)
	op := e.client.calls[0]
	assert.Equal(t, models.OpUpsertDiary, op.Type)
	assert.Equal(t, "2025-03-14", op.KeyRef)
	assert.Equal(t, models.StatusCounts{models.StatusSent: 1}, e.counts(t))
}

func TestSave_QueuedWhenDeliveryFails(t *testing.T) {
	e := newEnv(t, fakePrincipal{uid: "u1"}, nil, false)
	ctx := context.Background()

	res, err := e.svc.SaveMood(ctx, "2025-03-14", 4)
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.Equal(t, 1, e.trigger.calls)
	assert.Equal(t, models.StatusCounts{models.StatusPending: 1}, e.counts(t))

	m, err := e.svc.Mood(ctx, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, 4, m.Mood)
}

func TestSave_DeliveryErrorIsNotReturned(t *testing.T) {
	e := newEnv(t, fakePrincipal{uid: "u1"}, nil, false)
	e.client.err = errors.New("boom")

	res, err := e.svc.AddReflection(context.Background(), "2025-03-14", "tea and a book")
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.Equal(t, 1, e.trigger.calls)
}

func TestSave_SkipsDeliveryWithoutSessionOrNetwork(t *testing.T) {
	cases := map[string]struct {
		p     Principal
		probe Connectivity
	}{
		"signed out":      {p: fakePrincipal{}},
		"principal error": {p: fakePrincipal{err: errors.New("db locked")}},
		"offline":         {p: fakePrincipal{uid: "u1"}, probe: fakeProbe(false)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, tc.p, tc.probe, true)
			res, err := e.svc.SaveDiary(context.Background(), "2025-03-14", "x")
			require.NoError(t, err)
			assert.False(t, res.Synced)
			assert.Empty(t, e.client.calls)
			assert.Equal(t, 1, e.trigger.calls)
			assert.Equal(t, models.StatusCounts{models.StatusPending: 1}, e.counts(t))
		})
	}
}

func TestSave_SkipsClaimedOperation(t *testing.T) {
	e := newEnv(t, fakePrincipal{uid: "u1"}, nil, true)
	q := &claimingQueue{Queue: e.queue}
	e.svc.queue = q

	res, err := e.svc.SaveDiary(context.Background(), "2025-03-14", "x")
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.Empty(t, e.client.calls)
}

// claimingQueue pretends a sync cycle holds every operation.
type claimingQueue struct{ *outbox.Queue }

func (claimingQueue) Claim(string) bool { return false }

func TestSave_Validation(t *testing.T) {
	e := newEnv(t, fakePrincipal{uid: "u1"}, nil, true)
	ctx := context.Background()

	_, err := e.svc.SaveDiary(ctx, "2025/03/14", "x")
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = e.svc.SaveMood(ctx, "2025-03-14", 0)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = e.svc.SaveMood(ctx, "2025-03-14", 6)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = e.svc.AddReflection(ctx, "2025-03-14", "   ")
	require.ErrorIs(t, err, common.ErrValidation)

	long := ""
	for range models.MaxReflectionWords + 1 {
		long += "word "
	}
	_, err = e.svc.AddReflection(ctx, "2025-03-14", long)
	require.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, e.counts(t))
	assert.Zero(t, e.trigger.calls)
}

func TestSave_StorageFaultRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO diary").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	st := store.New(db)
	trig := &fakeTrigger{}
	svc := NewJournalService(st, outbox.New(st), &fakeDeliverer{ok: true}, fakePrincipal{uid: "u1"}, trig, nil, logging.Nop{})

	_, err = svc.SaveDiary(context.Background(), "2025-03-14", "x")
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Zero(t, trig.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReads(t *testing.T) {
	e := newEnv(t, fakePrincipal{}, nil, false)
	ctx := context.Background()

	for i, m := range []int{1, 3, 5} {
		_, err := e.svc.SaveMood(ctx, models.DateIDFor(time.Date(2025, 3, 10+i, 0, 0, 0, 0, time.UTC)), m)
		require.NoError(t, err)
	}
	pct, logs, err := e.svc.MoodSummary(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)
	assert.Len(t, logs, 3)

	recent, err := e.svc.RecentMoods(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2025-03-12", recent[0].DateID)

	_, err = e.svc.SaveDiary(ctx, "2025-03-10", "")
	require.NoError(t, err)
	_, err = e.svc.SaveDiary(ctx, "2025-03-11", "text")
	require.NoError(t, err)
	days, err := e.svc.DiaryDays(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-11"}, days)
	all, err := e.svc.RecentDiary(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.svc.AddReflection(ctx, "2025-03-11", "  one two  ")
	require.NoError(t, err)
	refl, err := e.svc.Reflections(ctx, "2025-03-11")
	require.NoError(t, err)
	require.Len(t, refl, 1)
	assert.Equal(t, "one two", refl[0].Text)
	rdays, err := e.svc.ReflectionDays(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-11"}, rdays)

	missing, err := e.svc.Diary(ctx, "2020-01-01")
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, err = e.svc.Reflections(ctx, "bad")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestSyncStatusAndRequeue(t *testing.T) {
	e := newEnv(t, fakePrincipal{}, nil, false)
	ctx := context.Background()

	_, err := e.svc.SaveDiary(ctx, "2025-03-14", "a")
	require.NoError(t, err)
	_, err = e.svc.SaveMood(ctx, "2025-03-14", 2)
	require.NoError(t, err)

	pending, err := e.queue.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.NoError(t, e.queue.Fail(ctx, pending[0]))

	st, err := e.svc.SyncStatus(ctx, 10)
	require.NoError(t, err)
	want := models.StatusCounts{models.StatusPending: 1, models.StatusFailed: 1}
	if diff := cmp.Diff(want, st.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, st.Failed, 1)
	assert.Equal(t, pending[0].ID, st.Failed[0].ID)

	before := e.trigger.calls
	ops, err := e.svc.Requeue(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, pending[0].PayloadJSON, ops[0].PayloadJSON)
	assert.Equal(t, before+1, e.trigger.calls)

	assert.Equal(t, models.StatusCounts{models.StatusPending: 2, models.StatusFailed: 1}, e.counts(t))

	_, err = e.svc.Requeue(ctx, pending[1].ID)
	require.ErrorIs(t, err, outbox.ErrIllegalTransition)

	ops, err = e.svc.Requeue(ctx, "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, ops)

	ops, err = e.svc.Requeue(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops, "already requeued rows are not copied again")
	assert.Equal(t, models.StatusCounts{models.StatusPending: 2, models.StatusFailed: 1}, e.counts(t))

	_, err = e.svc.Requeue(ctx, pending[0].ID)
	require.ErrorIs(t, err, outbox.ErrReplaced)
}

// remoteEnv wires the service, the worker and the sync client to an
// in-memory remote.
type remoteEnv struct {
	st     *store.Store
	mem    *remote.Memory
	svc    *JournalService
	worker *syncworker.Worker
	now    int64
}

func newRemoteEnv(t *testing.T) *remoteEnv {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	e := &remoteEnv{st: st, mem: remote.NewMemory(), now: 1_000}
	q := outbox.New(st)
	client := syncclient.New(e.mem, time.Second, logging.Nop{})
	e.svc = NewJournalService(st, q, client, fakePrincipal{uid: "u1"}, &fakeTrigger{}, nil, logging.Nop{})
	e.svc.clock = func() time.Time { return time.UnixMilli(e.now) }
	e.worker = syncworker.New(fakePrincipal{uid: "u1"}, q, client, 0, logging.Nop{})
	return e
}

func TestRequeue_DoesNotOverwriteLaterWrite(t *testing.T) {
	e := newRemoteEnv(t)
	ctx := context.Background()
	path := remote.DiaryPath("u1", "2025-03-14")

	e.mem.SetOnline(false)
	res, err := e.svc.SaveDiary(ctx, "2025-03-14", "old")
	require.NoError(t, err)
	require.False(t, res.Synced)
	assert.Equal(t, syncworker.Retry, e.worker.RunCycle(ctx))

	e.mem.SetOnline(true)
	e.now = 2_000
	res, err = e.svc.SaveDiary(ctx, "2025-03-14", "new")
	require.NoError(t, err)
	require.True(t, res.Synced)

	ops, err := e.svc.Requeue(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Equal(t, syncworker.Success, e.worker.RunCycle(ctx))

	node, ok := e.mem.Get(path)
	require.True(t, ok)
	assert.Equal(t, "new", node["text"])
	assert.EqualValues(t, 2_000, node["createdAt"])

	ops, err = e.svc.Requeue(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops, "repeat runs do nothing")
}

func TestRequeue_ReflectionDeliveredOnce(t *testing.T) {
	e := newRemoteEnv(t)
	ctx := context.Background()

	e.mem.SetOnline(false)
	_, err := e.svc.AddReflection(ctx, "2025-03-14", "slept well")
	require.NoError(t, err)
	assert.Equal(t, syncworker.Retry, e.worker.RunCycle(ctx))

	e.mem.SetOnline(true)
	ops, err := e.svc.Requeue(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, syncworker.Success, e.worker.RunCycle(ctx))

	ops, err = e.svc.Requeue(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Equal(t, syncworker.Success, e.worker.RunCycle(ctx))

	assert.Len(t, e.mem.Paths(remote.ReflectionsPath("u1", "2025-03-14")), 1)
	n, err := e.st.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSave_EndToEndWithRemote(t *testing.T) {
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer st.Close()

	mem := remote.NewMemory()
	trig := &fakeTrigger{}
	svc := NewJournalService(st, outbox.New(st), syncclient.New(mem, time.Second, logging.Nop{}), fakePrincipal{uid: "u1"}, trig, nil, logging.Nop{})
	ctx := context.Background()

	res, err := svc.SaveMood(ctx, "2025-03-14", 5)
	require.NoError(t, err)
	assert.True(t, res.Synced)
	node, ok := mem.Get(remote.MoodPath("u1", "2025-03-14"))
	require.True(t, ok)
	assert.Equal(t, 5, node["mood"])

	res, err = svc.AddReflection(ctx, "2025-03-14", "slept well")
	require.NoError(t, err)
	assert.True(t, res.Synced)
	assert.Len(t, mem.Paths(remote.ReflectionsPath("u1", "2025-03-14")), 1)

	mem.SetOnline(false)
	res, err = svc.SaveDiary(ctx, "2025-03-14", "offline edit")
	require.NoError(t, err)
	assert.False(t, res.Synced)
	assert.Equal(t, 1, trig.calls)

	n, err := st.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
