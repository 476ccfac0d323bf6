package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/outbox"
	"github.com/dmitrijs2005/moodkeeper/internal/client/store"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

// DefaultSummaryDays is the window of the mood summary.
const DefaultSummaryDays = 7

const requeueAllLimit = 1000

type Principal interface {
	CurrentUserID(ctx context.Context) (string, bool, error)
}

type Queue interface {
	Complete(ctx context.Context, op models.OutboxOperation) error
	Claim(id string) bool
	Release(id string)
}

type Deliverer interface {
	Deliver(ctx context.Context, uid string, op models.OutboxOperation) (bool, error)
}

// Trigger asks the background sync to run soon. It must not block.
type Trigger interface {
	TriggerNow()
}

// Connectivity is an optional reachability hint; a nil probe counts as
// online.
type Connectivity interface {
	Online() bool
}

// SaveResult tells whether a write already reached the remote store. A write
// that did not is still stored locally and queued.
type SaveResult struct {
	Synced bool
}

type JournalService struct {
	st        *store.Store
	queue     Queue
	client    Deliverer
	principal Principal
	trigger   Trigger
	probe     Connectivity
	logger    logging.Logger
	clock     func() time.Time
}

func NewJournalService(st *store.Store, q Queue, c Deliverer, p Principal, t Trigger, probe Connectivity, l logging.Logger) *JournalService {
	return &JournalService{
		st:        st,
		queue:     q,
		client:    c,
		principal: p,
		trigger:   t,
		probe:     probe,
		logger:    l.With("module", "journal"),
		clock:     time.Now,
	}
}

// SaveDiary replaces the diary text of dateID.
func (s *JournalService) SaveDiary(ctx context.Context, dateID, text string) (SaveResult, error) {
	if err := models.ValidateDateID(dateID); err != nil {
		return SaveResult{}, err
	}
	now := s.clock().UnixMilli()
	return s.save(ctx, models.OpUpsertDiary, dateID, models.DiaryPayload(dateID, text, now), func(ctx context.Context, tx *store.Store) error {
		return tx.UpsertDiary(ctx, dateID, text, now)
	})
}

// SaveMood replaces the mood of dateID.
func (s *JournalService) SaveMood(ctx context.Context, dateID string, mood int) (SaveResult, error) {
	if err := models.ValidateDateID(dateID); err != nil {
		return SaveResult{}, err
	}
	if err := models.ValidateMood(mood); err != nil {
		return SaveResult{}, err
	}
	now := s.clock().UnixMilli()
	return s.save(ctx, models.OpUpsertMood, dateID, models.MoodPayload(dateID, mood, now), func(ctx context.Context, tx *store.Store) error {
		return tx.UpsertMood(ctx, dateID, mood, now)
	})
}

// AddReflection appends a reflection to dateID.
func (s *JournalService) AddReflection(ctx context.Context, dateID, text string) (SaveResult, error) {
	text = strings.TrimSpace(text)
	if err := models.ValidateDateID(dateID); err != nil {
		return SaveResult{}, err
	}
	if err := models.ValidateReflection(text); err != nil {
		return SaveResult{}, err
	}
	now := s.clock().UnixMilli()
	return s.save(ctx, models.OpUpsertReflection, dateID, models.ReflectionPayload(dateID, text, now), func(ctx context.Context, tx *store.Store) error {
		_, err := tx.InsertReflection(ctx, dateID, text, now)
		return err
	})
}

// save stores the record and its outbox operation in one transaction, then
// tries a direct delivery. Only the local part can fail the call.
func (s *JournalService) save(ctx context.Context, typ models.OperationType, keyRef string, p models.Payload, write func(ctx context.Context, tx *store.Store) error) (SaveResult, error) {
	var op models.OutboxOperation
	err := s.st.WithTx(ctx, func(ctx context.Context, tx *store.Store) error {
		if err := write(ctx, tx); err != nil {
			return err
		}
		var err error
		op, err = outbox.Append(ctx, tx, typ, keyRef, p, p.CreatedAt)
		return err
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to save %s[%s]: %w", typ, keyRef, err)
	}

	synced := s.deliverNow(ctx, op)
	if !synced {
		s.trigger.TriggerNow()
	}
	return SaveResult{Synced: synced}, nil
}

func (s *JournalService) deliverNow(ctx context.Context, op models.OutboxOperation) bool {
	uid, ok, err := s.principal.CurrentUserID(ctx)
	if err != nil {
		s.logger.Warn(ctx, "principal lookup failed", "error", err)
		return false
	}
	if !ok {
		s.logger.Debug(ctx, "not signed in, write queued", "op", op.ID)
		return false
	}
	if s.probe != nil && !s.probe.Online() {
		s.logger.Debug(ctx, "offline, write queued", "op", op.ID)
		return false
	}
	if !s.queue.Claim(op.ID) {
		return false
	}
	defer s.queue.Release(op.ID)

	delivered, err := s.client.Deliver(ctx, uid, op)
	if err != nil || !delivered {
		s.logger.Info(ctx, "direct delivery failed, write queued", "op", op.ID, "type", string(op.Type), "error", err)
		return false
	}
	if err := s.queue.Complete(ctx, op); err != nil {
		// Still PENDING, so the worker sends it again.
		s.logger.Error(ctx, "failed to mark operation sent", "op", op.ID, "error", err)
		return false
	}
	s.logger.Debug(ctx, "write synced", "op", op.ID, "type", string(op.Type))
	return true
}

func (s *JournalService) Diary(ctx context.Context, dateID string) (*models.DiaryEntry, error) {
	if err := models.ValidateDateID(dateID); err != nil {
		return nil, err
	}
	return s.st.GetDiary(ctx, dateID)
}

func (s *JournalService) RecentDiary(ctx context.Context, n int) ([]models.DiaryEntry, error) {
	return s.st.ListDiaryRecent(ctx, n)
}

// DiaryDays returns the most recent dates that have diary text.
func (s *JournalService) DiaryDays(ctx context.Context, n int) ([]string, error) {
	return s.st.ListDiaryDaysWithText(ctx, n)
}

func (s *JournalService) Mood(ctx context.Context, dateID string) (*models.MoodLog, error) {
	if err := models.ValidateDateID(dateID); err != nil {
		return nil, err
	}
	return s.st.GetMood(ctx, dateID)
}

func (s *JournalService) RecentMoods(ctx context.Context, n int) ([]models.MoodLog, error) {
	return s.st.ListMoodRecent(ctx, n)
}

// MoodSummary is the average of the last n logged moods as a percentage,
// together with the logs it was computed from.
func (s *JournalService) MoodSummary(ctx context.Context, n int) (int, []models.MoodLog, error) {
	if n <= 0 {
		n = DefaultSummaryDays
	}
	logs, err := s.st.ListMoodRecent(ctx, n)
	if err != nil {
		return 0, nil, err
	}
	return models.MoodPercent(logs), logs, nil
}

func (s *JournalService) Reflections(ctx context.Context, dateID string) ([]models.Reflection, error) {
	if err := models.ValidateDateID(dateID); err != nil {
		return nil, err
	}
	return s.st.ListReflectionsByDate(ctx, dateID)
}

func (s *JournalService) ReflectionDays(ctx context.Context, n int) ([]string, error) {
	return s.st.ListReflectionDaysRecent(ctx, n)
}

// SyncStatus is the outbox overview shown by `sync status`.
type SyncStatus struct {
	Counts models.StatusCounts
	Failed []models.OutboxOperation
}

func (s *JournalService) SyncStatus(ctx context.Context, failedLimit int) (SyncStatus, error) {
	counts, err := s.st.CountByStatus(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	failed, err := s.st.ListFailed(ctx, failedLimit)
	if err != nil {
		return SyncStatus{}, err
	}
	return SyncStatus{Counts: counts, Failed: failed}, nil
}

// Requeue gives the FAILED operations ids another delivery attempt. With no
// ids every failed operation that was not requeued before is. A diary or mood
// operation whose day has a later write is skipped. It returns the new
// operations.
func (s *JournalService) Requeue(ctx context.Context, ids ...string) ([]models.OutboxOperation, error) {
	if len(ids) == 0 {
		failed, err := s.st.ListRequeueable(ctx, requeueAllLimit)
		if err != nil {
			return nil, err
		}
		for _, op := range failed {
			ids = append(ids, op.ID)
		}
	}

	out := make([]models.OutboxOperation, 0, len(ids))
	defer func() {
		if len(out) > 0 {
			s.trigger.TriggerNow()
		}
	}()

	for _, id := range ids {
		var (
			op     models.OutboxOperation
			queued bool
			inner  error
		)
		err := s.st.WithTx(ctx, func(ctx context.Context, tx *store.Store) error {
			op, queued, inner = outbox.Requeue(ctx, tx, id, s.clock().UnixMilli())
			return inner
		})
		if inner != nil {
			return out, inner
		}
		if err != nil {
			return out, err
		}
		if !queued {
			s.logger.Info(ctx, "Skipped requeue, a later write for the same day exists.", "id", id)
			continue
		}
		out = append(out, op)
	}
	return out, nil
}
