// Package reconcile merges remote journal changes into the local store.
//
// Diary entries and moods follow last-writer-wins on createdAt: a remote
// value replaces the local row when its createdAt is not older than the
// local updatedAt. Reflections are append-only and are inserted unless the
// same reflection is already stored.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/store"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
)

// Outcome of applying one remote event.
type Outcome string

const (
	Applied Outcome = "applied"
	Stale   Outcome = "stale"
	Ignored Outcome = "ignored"
)

type Principal interface {
	CurrentUserID(ctx context.Context) (string, bool, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, prefix string) (<-chan remote.ChangeEvent, error)
}

type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{InitialBackoff: time.Second, MaxBackoff: time.Minute}
}

type Reconciler struct {
	st        *store.Store
	remote    Subscriber
	principal Principal
	cfg       Config
	logger    logging.Logger
}

func New(st *store.Store, r Subscriber, p Principal, cfg Config, l logging.Logger) *Reconciler {
	def := DefaultConfig()
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.InitialBackoff)
	}
	return &Reconciler{st: st, remote: r, principal: p, cfg: cfg, logger: l.With("module", "reconciler")}
}

// Run keeps a subscription on the signed-in user's tree open until ctx is
// cancelled, re-subscribing with backoff whenever it breaks.
func (r *Reconciler) Run(ctx context.Context) error {
	delay := r.cfg.InitialBackoff
	for {
		received, err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if received {
			delay = r.cfg.InitialBackoff
		}
		if err != nil {
			r.logger.Warn(ctx, "subscription unavailable", "error", err, "retry_in", delay.String())
		} else {
			r.logger.Info(ctx, "subscription ended, re-subscribing", "retry_in", delay.String())
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		delay = min(delay*2, r.cfg.MaxBackoff)
	}
}

var errNotSignedIn = errors.New("not signed in")

// session runs one subscription to completion and reports whether any event
// arrived.
func (r *Reconciler) session(ctx context.Context) (bool, error) {
	uid, ok, err := r.principal.CurrentUserID(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errNotSignedIn
	}

	events, err := r.remote.Subscribe(ctx, remote.UserRoot(uid))
	if err != nil {
		return false, err
	}
	r.logger.Info(ctx, "subscribed", "user", uid)

	received := false
	for ev := range events {
		received = true
		out, err := r.Apply(ctx, uid, ev)
		if err != nil {
			r.logger.Error(ctx, "applying remote change failed", "path", ev.Path, "error", err)
			continue
		}
		r.logger.Debug(ctx, "remote change", "path", ev.Path, "outcome", string(out))
	}
	return received, nil
}

// Apply merges one event. Malformed or foreign events are Ignored; only
// local storage faults are returned as errors.
func (r *Reconciler) Apply(ctx context.Context, uid string, ev remote.ChangeEvent) (Outcome, error) {
	loc, err := remote.ParsePath(ev.Path)
	if err != nil || loc.UserID != uid {
		return Ignored, nil
	}
	if ev.Kind != remote.ChangePut {
		// Nothing is ever deleted locally.
		return Ignored, nil
	}
	if err := models.ValidateDateID(loc.DateID); err != nil {
		return Ignored, nil
	}
	p, err := models.PayloadFromNode(ev.Value)
	if err != nil {
		r.logger.Warn(ctx, "malformed remote value", "path", ev.Path, "error", err)
		return Ignored, nil
	}

	switch loc.Collection {
	case remote.CollectionDiary:
		if p.Text == nil {
			return Ignored, nil
		}
		return r.applyDiary(ctx, loc.DateID, *p.Text, p.CreatedAt)
	case remote.CollectionMoods:
		if p.Mood == nil || models.ValidateMood(*p.Mood) != nil {
			return Ignored, nil
		}
		return r.applyMood(ctx, loc.DateID, *p.Mood, p.CreatedAt)
	case remote.CollectionReflections:
		if p.Text == nil {
			return Ignored, nil
		}
		inserted, err := r.st.InsertReflectionIfAbsent(ctx, models.Reflection{
			ID:        loc.ChildID,
			DateID:    loc.DateID,
			Text:      *p.Text,
			UpdatedAt: p.CreatedAt,
		})
		if err != nil {
			return "", err
		}
		if !inserted {
			return Stale, nil
		}
		return Applied, nil
	default:
		return Ignored, nil
	}
}

func (r *Reconciler) applyDiary(ctx context.Context, dateID, text string, createdAt int64) (Outcome, error) {
	out := Applied
	err := r.st.WithTx(ctx, func(ctx context.Context, tx *store.Store) error {
		local, err := tx.GetDiary(ctx, dateID)
		if err != nil {
			return err
		}
		if local != nil && createdAt < local.UpdatedAt {
			out = Stale
			return nil
		}
		return tx.UpsertDiary(ctx, dateID, text, createdAt)
	})
	if err != nil {
		return "", fmt.Errorf("diary %s: %w", dateID, err)
	}
	return out, nil
}

func (r *Reconciler) applyMood(ctx context.Context, dateID string, mood int, createdAt int64) (Outcome, error) {
	out := Applied
	err := r.st.WithTx(ctx, func(ctx context.Context, tx *store.Store) error {
		local, err := tx.GetMood(ctx, dateID)
		if err != nil {
			return err
		}
		if local != nil && createdAt < local.UpdatedAt {
			out = Stale
			return nil
		}
		return tx.UpsertMood(ctx, dateID, mood, createdAt)
	})
	if err != nil {
		return "", fmt.Errorf("mood %s: %w", dateID, err)
	}
	return out, nil
}
