// Package syncclient turns one outbox operation into one remote write.
//
// Write methods report delivery as a bool. Remote errors, undecodable
// payloads and timeouts are logged and reported as false; they never reach
// the caller as errors. The only error Deliver returns is
// ErrUnknownOperation, for operation types it has no mapping for.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
)

// ErrUnknownOperation marks an operation type without a remote mapping.
var ErrUnknownOperation = errors.New("unknown operation type")

// DefaultTimeout bounds one remote write.
const DefaultTimeout = 15 * time.Second

type Client struct {
	remote  remote.Store
	timeout time.Duration
	logger  logging.Logger
}

func New(r remote.Store, timeout time.Duration, l logging.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{remote: r, timeout: timeout, logger: l.With("module", "sync_client")}
}

// Deliver writes op on behalf of uid.
func (c *Client) Deliver(ctx context.Context, uid string, op models.OutboxOperation) (bool, error) {
	switch op.Type {
	case models.OpUpsertDiary:
		return c.UpsertDiary(ctx, uid, op.PayloadJSON), nil
	case models.OpUpsertMood:
		return c.UpsertMood(ctx, uid, op.PayloadJSON), nil
	case models.OpUpsertReflection:
		return c.AddReflection(ctx, uid, op.PayloadJSON), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Type)
	}
}

// UpsertDiary replaces users/{uid}/diary/{dateId} with {dateId, text, createdAt}.
func (c *Client) UpsertDiary(ctx context.Context, uid, payloadJSON string) bool {
	p, ok := c.decode(ctx, payloadJSON, models.OpUpsertDiary)
	if !ok {
		return false
	}
	node := map[string]any{"dateId": p.DateID, "text": p.TextValue(), "createdAt": p.CreatedAt}
	return c.set(ctx, remote.DiaryPath(uid, p.DateID), node)
}

// UpsertMood replaces users/{uid}/moods/{dateId} with {dateId, mood, createdAt}.
func (c *Client) UpsertMood(ctx context.Context, uid, payloadJSON string) bool {
	p, ok := c.decode(ctx, payloadJSON, models.OpUpsertMood)
	if !ok {
		return false
	}
	node := map[string]any{"dateId": p.DateID, "mood": p.MoodValue(), "createdAt": p.CreatedAt}
	return c.set(ctx, remote.MoodPath(uid, p.DateID), node)
}

// AddReflection appends {text, createdAt, dateId} under
// users/{uid}/reflections/{dateId}.
func (c *Client) AddReflection(ctx context.Context, uid, payloadJSON string) bool {
	p, ok := c.decode(ctx, payloadJSON, models.OpUpsertReflection)
	if !ok {
		return false
	}
	node := map[string]any{"text": p.TextValue(), "createdAt": p.CreatedAt, "dateId": p.DateID}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := remote.ReflectionsPath(uid, p.DateID)
	id, err := c.remote.Push(ctx, path, node)
	if err != nil {
		c.logger.Warn(ctx, "remote push failed", "path", path, "error", err)
		return false
	}
	c.logger.Debug(ctx, "remote push done", "path", path, "child", id)
	return true
}

// Ping reports whether the remote answers within the write timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.remote.Ping(ctx)
}

func (c *Client) set(ctx context.Context, path string, node map[string]any) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.remote.Set(ctx, path, node); err != nil {
		c.logger.Warn(ctx, "remote set failed", "path", path, "error", err)
		return false
	}
	c.logger.Debug(ctx, "remote set done", "path", path)
	return true
}

func (c *Client) decode(ctx context.Context, raw string, typ models.OperationType) (models.Payload, bool) {
	p, err := models.DecodePayload(raw)
	if err != nil {
		c.logger.Error(ctx, "undecodable payload", "type", typ, "error", err)
		return models.Payload{}, false
	}
	return p, true
}
