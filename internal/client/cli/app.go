package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/client/config"
	"github.com/dmitrijs2005/moodkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/moodkeeper/internal/client/outbox"
	"github.com/dmitrijs2005/moodkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/moodkeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/moodkeeper/internal/client/services"
	"github.com/dmitrijs2005/moodkeeper/internal/client/session"
	"github.com/dmitrijs2005/moodkeeper/internal/client/store"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncclient"
	"github.com/dmitrijs2005/moodkeeper/internal/client/syncworker"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/backend"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/s3store"
	"golang.org/x/sync/errgroup"
)

// periodicSync names the background sync schedule.
const periodicSync = "journal-sync"

// App wires the client components for one process.
type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer

	store      *store.Store
	remote     remote.Store
	session    *session.Provider
	queue      *outbox.Queue
	client     *syncclient.Client
	worker     *syncworker.Worker
	scheduler  *scheduler.Scheduler
	watcher    *connectivity.Watcher
	reconciler *reconcile.Reconciler
	journal    *services.JournalService
}

// NewApp opens the local store and the configured remote. Logs go to logOut
// unless a log file is configured.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, logCloser, err := logging.New(logging.Options{
		Level:  c.LogLevel,
		Format: logging.Format(c.LogFormat),
		File:   c.LogFile,
		Out:    logOut,
	})
	if err != nil {
		return nil, err
	}

	kind, err := backend.ParseKind(c.RemoteKind)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	st, err := store.Open(ctx, c.DBPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	sess := session.NewProvider(st)

	rs, err := backend.Open(ctx, backend.Options{
		Kind:        kind,
		Endpoint:    c.RemoteAddr,
		Tokens:      sess,
		DatabaseDSN: c.PostgresDSN,
		S3: s3store.Options{
			Bucket:       c.S3.Bucket,
			Region:       c.S3.Region,
			Endpoint:     c.S3.Endpoint,
			AccessKey:    c.S3.AccessKey,
			SecretKey:    c.S3.SecretKey,
			KeyPrefix:    c.S3.KeyPrefix,
			PollInterval: c.S3.PollInterval,
		},
	}, logger)
	if err != nil {
		_ = st.Close()
		_ = logCloser.Close()
		return nil, err
	}

	return newApp(c, logger, logCloser, st, sess, rs), nil
}

func newApp(c *config.Config, logger logging.Logger, logCloser io.Closer, st *store.Store, sess *session.Provider, rs remote.Store) *App {
	a := &App{
		config:    c,
		logger:    logger,
		logCloser: logCloser,
		store:     st,
		remote:    rs,
		session:   sess,
		queue:     outbox.New(st),
	}
	a.client = syncclient.New(rs, c.RemoteTimeout, logger)
	a.worker = syncworker.New(a.session, a.queue, a.client, c.BatchSize, logger)
	a.watcher = connectivity.New(a.client, c.OnlineCheckInterval, logger)

	schedCfg := scheduler.DefaultConfig()
	if c.RetryInitialBackoff > 0 {
		schedCfg.InitialBackoff = c.RetryInitialBackoff
	}
	a.scheduler = scheduler.New(a.worker, a.watcher, schedCfg, logger)
	a.reconciler = reconcile.New(st, rs, a.session, reconcile.DefaultConfig(), logger)
	a.journal = services.NewJournalService(st, a.queue, a.client, a.session, a.scheduler, a.watcher, logger)
	return a
}

// Close releases the remote, the database and the log file.
func (a *App) Close() error {
	return errors.Join(a.remote.Close(), a.store.Close(), a.logCloser.Close())
}

// RunDaemon keeps the outbox draining and the local store reconciled until
// ctx is cancelled.
func (a *App) RunDaemon(ctx context.Context) error {
	a.watcher.OnChange(func(m connectivity.Mode) {
		if m == connectivity.ModeOnline {
			a.scheduler.NetworkAvailable()
		}
	})
	a.scheduler.SchedulePeriodic(periodicSync, a.config.SyncInterval)
	a.scheduler.TriggerNow()

	a.logger.Info(ctx, "daemon started", "remote", a.config.RemoteKind, "sync_interval", a.config.SyncInterval.String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.watcher.Run(ctx) })
	g.Go(func() error { return a.scheduler.Run(ctx) })
	g.Go(func() error { return a.reconciler.Run(ctx) })
	err := g.Wait()

	a.logger.Info(context.Background(), "daemon stopped")
	return err
}

// getStatus renders the shell prompt suffix, e.g. "(u1 online)".
func (a *App) getStatus(ctx context.Context) string {
	var parts []string
	if uid, ok, _ := a.session.CurrentUserID(ctx); ok {
		parts = append(parts, uid)
	}
	if m := a.watcher.Mode(); m != connectivity.ModeUnknown {
		parts = append(parts, string(m))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}
