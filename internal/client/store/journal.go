package store

import (
	"context"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/google/uuid"
)

func (s *Store) UpsertDiary(ctx context.Context, dateID, text string, updatedAt int64) error {
	return wrap(s.diary.Upsert(ctx, models.DiaryEntry{DateID: dateID, Text: text, UpdatedAt: updatedAt}))
}

// GetDiary returns nil when the day has no entry.
func (s *Store) GetDiary(ctx context.Context, dateID string) (*models.DiaryEntry, error) {
	e, err := s.diary.Get(ctx, dateID)
	return e, wrap(err)
}

// ListDiaryRecent returns at most n entries ordered by date id, newest first.
func (s *Store) ListDiaryRecent(ctx context.Context, n int) ([]models.DiaryEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	l, err := s.diary.ListRecent(ctx, n)
	return l, wrap(err)
}

// ListDiaryDaysWithText returns date ids whose diary text is not blank.
func (s *Store) ListDiaryDaysWithText(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	l, err := s.diary.ListDaysWithText(ctx, n)
	return l, wrap(err)
}

func (s *Store) UpsertMood(ctx context.Context, dateID string, mood int, updatedAt int64) error {
	return wrap(s.moods.Upsert(ctx, models.MoodLog{DateID: dateID, Mood: mood, UpdatedAt: updatedAt}))
}

// GetMood returns nil when the day has no mood.
func (s *Store) GetMood(ctx context.Context, dateID string) (*models.MoodLog, error) {
	m, err := s.moods.Get(ctx, dateID)
	return m, wrap(err)
}

func (s *Store) ListMoodRecent(ctx context.Context, n int) ([]models.MoodLog, error) {
	if n <= 0 {
		return nil, nil
	}
	l, err := s.moods.ListRecent(ctx, n)
	return l, wrap(err)
}

// InsertReflection appends a reflection and returns its generated id.
func (s *Store) InsertReflection(ctx context.Context, dateID, text string, updatedAt int64) (string, error) {
	id := uuid.NewString()
	if err := s.reflections.Insert(ctx, models.Reflection{ID: id, DateID: dateID, Text: text, UpdatedAt: updatedAt}); err != nil {
		return "", wrap(err)
	}
	return id, nil
}

// InsertReflectionIfAbsent stores r unless a row with the same id, or the
// same date, text and timestamp, already exists. It reports whether r was
// inserted.
func (s *Store) InsertReflectionIfAbsent(ctx context.Context, r models.Reflection) (bool, error) {
	inserted := false
	err := s.WithTx(ctx, func(ctx context.Context, tx *Store) error {
		ok, err := tx.reflections.Exists(ctx, r)
		if err != nil || ok {
			return err
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := tx.reflections.Insert(ctx, r); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// ListReflectionsByDate returns the reflections of a day, oldest first.
func (s *Store) ListReflectionsByDate(ctx context.Context, dateID string) ([]models.Reflection, error) {
	l, err := s.reflections.ListByDate(ctx, dateID)
	return l, wrap(err)
}

// ListReflectionDaysRecent returns at most n distinct days that have
// reflections, newest first.
func (s *Store) ListReflectionDaysRecent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	l, err := s.reflections.ListDaysRecent(ctx, n)
	return l, wrap(err)
}
