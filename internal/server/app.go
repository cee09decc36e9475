// Package server wires the vault together: configuration, the record store,
// the mailbox gateway, the session binder, and the HTTP and gRPC servers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/cryptox"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/auth"
	"github.com/dmitrijs2005/mailvault/internal/server/config"
	"github.com/dmitrijs2005/mailvault/internal/server/httpapi"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/dmitrijs2005/mailvault/internal/server/remote/ews"
	"github.com/dmitrijs2005/mailvault/internal/server/remote/imap"
	"github.com/dmitrijs2005/mailvault/internal/server/repositories/records"
	"github.com/dmitrijs2005/mailvault/internal/server/services"

	gs "github.com/dmitrijs2005/mailvault/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repo   records.Repository
	http   *httpapi.Server
	grpc   *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	key := cryptox.DeriveKey(c.CipherSecret)
	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}
	logger.Info(ctx, "credential key loaded", "verifier", cryptox.MakeVerifier(key))

	binder, err := auth.NewSessionBinder(
		[]byte(c.SessionSecret),
		c.CookieName,
		c.SessionValidityDuration,
		auth.WithSecureCookie(c.CookieSecure),
	)
	if err != nil {
		return nil, fmt.Errorf("session init error: %w", err)
	}

	repo, err := openStore(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	gateway := remote.Instrument(newGateway(c, loc, logger))

	vault := services.NewVaultService(repo, cipher, gateway, logger)
	calendars := services.NewCalendarService(repo, logger)
	mailbox := services.NewMailboxService(gateway, nil)

	return &App{
		config: c,
		logger: logger,
		repo:   repo,
		http:   httpapi.NewServer(c.EndpointAddrHTTP, logger, binder, vault, calendars, mailbox),
		grpc:   gs.NewGRPCServer(c.EndpointAddrGRPC, logger, vault, c.HealthCheckInterval),
	}, nil
}

func openStore(ctx context.Context, c *config.Config, logger logging.Logger) (records.Repository, error) {
	switch c.StoreBackend {
	case config.StoreRedis:
		client, err := records.NewRedisClient(ctx, c.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		return records.NewRedisRepository(client, c.RedisKeyPrefix), nil

	case config.StorePostgres:
		db, err := records.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		repo := records.NewPostgresRepository(db)
		if err := repo.RunMigrations(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil

	case config.StoreMemory:
		logger.Warn(ctx, "using in-memory record store, records are lost on restart")
		return records.NewMemoryRepository(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
}

func newGateway(c *config.Config, loc *time.Location, logger logging.Logger) remote.Gateway {
	if c.RemoteBackend == config.RemoteIMAP {
		return imap.New(imap.Config{
			Addr:       c.IMAPAddr,
			TLS:        c.IMAPTLS,
			WebmailURL: c.WebmailURL,
			Timeout:    c.RemoteTimeout,
			Location:   loc,
		}, logger)
	}
	return ews.New(ews.Config{
		URL:        c.EWSURL,
		Auth:       c.EWSAuth,
		OWABaseURL: c.OWABaseURL,
		Timeout:    c.RemoteTimeout,
		Location:   loc,
	}, logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails,
// then closes the record store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"store", app.config.StoreBackend,
		"remote", app.config.RemoteBackend,
	)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repo.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing record store failed", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
