// Package server initializes and runs the moodkeeper key-path server.
// It opens the configured node store, serves the gRPC API and shuts down
// gracefully on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/moodkeeper/internal/auth"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/backend"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/s3store"
	"github.com/dmitrijs2005/moodkeeper/internal/server/config"

	gs "github.com/dmitrijs2005/moodkeeper/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer
	store     remote.Store
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, closer, err := logging.New(logging.Options{
		Level:  c.LogLevel,
		Format: logging.Format(c.LogFormat),
		Out:    os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	kind, err := backend.ParseKind(c.Backend)
	if err != nil {
		return nil, err
	}
	if kind == backend.KindGRPC {
		return nil, fmt.Errorf("backend %q cannot serve itself", c.Backend)
	}

	st, err := backend.Open(ctx, backend.Options{
		Kind:        kind,
		DatabaseDSN: c.DatabaseDSN,
		S3: s3store.Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			Endpoint:     c.S3BaseEndpoint,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			KeyPrefix:    c.S3KeyPrefix,
			PollInterval: c.S3PollInterval,
		},
	}, logger)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("store init error: %w", err)
	}

	return &App{config: c, logger: logger, logCloser: closer, store: st}, nil
}

// IssueToken writes a signed access token for uid to w. It is the
// development stand-in for a login flow.
func IssueToken(c *config.Config, uid string, w io.Writer) error {
	tok, err := auth.GenerateToken(uid, []byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Shutting down", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.store, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then releases the
// store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.Backend, "addr", app.config.EndpointAddrGRPC)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "closing store", "error", err)
	}
	_ = app.logCloser.Close()
}
