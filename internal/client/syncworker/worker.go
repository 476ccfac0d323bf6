// Package syncworker drains the outbox in batches.
//
// One cycle lists up to BatchSize pending operations in FIFO order and
// delivers them one by one. The first delivery the remote rejects is marked
// FAILED and ends the cycle with Retry; the operations behind it stay
// PENDING for the next cycle. Operations of unknown type are marked FAILED
// without ending the cycle.
package syncworker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncclient"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
)

// DefaultBatchSize is the number of operations one cycle looks at.
const DefaultBatchSize = 20

type Result int

const (
	Success Result = iota
	Retry
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Principal resolves the signed-in user.
type Principal interface {
	CurrentUserID(ctx context.Context) (string, bool, error)
}

// Queue is the outbox as the worker sees it.
type Queue interface {
	Pending(ctx context.Context, limit int) ([]models.OutboxOperation, error)
	Complete(ctx context.Context, op models.OutboxOperation) error
	Fail(ctx context.Context, op models.OutboxOperation) error
	Claim(id string) bool
	Release(id string)
}

// Deliverer performs one remote write.
type Deliverer interface {
	Deliver(ctx context.Context, uid string, op models.OutboxOperation) (bool, error)
}

// Report describes one cycle.
type Report struct {
	Result  Result
	Sent    int
	Failed  int
	Skipped int
	Reason  string
}

type Worker struct {
	principal Principal
	queue     Queue
	client    Deliverer
	batchSize int
	logger    logging.Logger
}

func New(p Principal, q Queue, c Deliverer, batchSize int, l logging.Logger) *Worker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Worker{principal: p, queue: q, client: c, batchSize: batchSize, logger: l.With("module", "sync_worker")}
}

// RunCycle runs one cycle and returns its result.
func (w *Worker) RunCycle(ctx context.Context) Result {
	return w.Cycle(ctx).Result
}

// Cycle runs one cycle and reports what it did. It never panics.
func (w *Worker) Cycle(ctx context.Context) (rep Report) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error(ctx, "sync cycle panicked", "panic", fmt.Sprint(p))
			rep.Result = Retry
			rep.Reason = "panic"
		}
	}()

	rep = w.cycle(ctx)
	w.logger.Info(ctx, "sync cycle finished",
		"result", rep.Result.String(), "sent", rep.Sent, "failed", rep.Failed, "skipped", rep.Skipped, "reason", rep.Reason)
	return rep
}

func (w *Worker) cycle(ctx context.Context) Report {
	uid, ok, err := w.principal.CurrentUserID(ctx)
	if err != nil {
		w.logger.Error(ctx, "resolving user failed", "error", err)
		return Report{Result: Retry, Reason: "session unavailable"}
	}
	if !ok {
		w.logger.Info(ctx, "no signed-in user, deferring sync")
		return Report{Result: Retry, Reason: "not signed in"}
	}

	ops, err := w.queue.Pending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error(ctx, "listing pending operations failed", "error", err)
		return Report{Result: Retry, Reason: "storage"}
	}
	if len(ops) == 0 {
		return Report{Result: Success, Reason: "queue empty"}
	}

	var rep Report
	for _, op := range ops {
		if ctx.Err() != nil {
			rep.Result, rep.Reason = Retry, "cancelled"
			return rep
		}
		if !w.queue.Claim(op.ID) {
			w.logger.Debug(ctx, "operation is being delivered elsewhere", "id", op.ID)
			rep.Skipped++
			continue
		}
		stop, err := func() (bool, error) {
			defer w.queue.Release(op.ID)
			return w.deliver(ctx, uid, op, &rep)
		}()
		if err != nil {
			w.logger.Error(ctx, "sync cycle aborted", "id", op.ID, "error", err)
			rep.Result, rep.Reason = Retry, "error"
			return rep
		}
		if stop {
			rep.Result, rep.Reason = Retry, "remote rejected "+op.ID
			return rep
		}
	}

	rep.Result = Success
	return rep
}

// deliver sends op and records the outcome. stop is true when the batch
// must end.
func (w *Worker) deliver(ctx context.Context, uid string, op models.OutboxOperation, rep *Report) (stop bool, err error) {
	log := w.logger.With("id", op.ID, "type", op.Type, "key", op.KeyRef)

	ok := false
	if op.Type.Known() {
		ok, err = w.client.Deliver(ctx, uid, op)
	} else {
		err = syncclient.ErrUnknownOperation
	}

	switch {
	case errors.Is(err, syncclient.ErrUnknownOperation):
		log.Warn(ctx, "unknown operation type, marking failed")
		rep.Failed++
		return false, w.queue.Fail(ctx, op)
	case err != nil:
		return true, err
	case ok:
		log.Debug(ctx, "operation sent")
		rep.Sent++
		return false, w.queue.Complete(ctx, op)
	}

	log.Warn(ctx, "remote write failed, aborting batch")
	rep.Failed++
	if err := w.queue.Fail(ctx, op); err != nil {
		return true, err
	}
	return true, nil
}
