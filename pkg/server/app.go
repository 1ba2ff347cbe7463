package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	pkgch "CloudCostIQ/pkg/clickhouse"
	"CloudCostIQ/pkg/config"
	xhttp "CloudCostIQ/pkg/http"
	pkgkafka "CloudCostIQ/pkg/kafka"
	applogger "CloudCostIQ/pkg/logger"
	"CloudCostIQ/pkg/queue"

	"github.com/labstack/echo/v4"
)

// RouteRegistrar registers additional routes on the Echo instance, e.g. the
// websocket alert hub.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
	Shutdown()
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	hub        RouteRegistrar
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	queue      *queue.RedisQueue
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	hub RouteRegistrar,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	q *queue.RedisQueue,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		hub:      hub,
		consumer: consumer,
		kh:       kh,
		queue:    q,
		chClient: chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.log

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if a.hub != nil {
		a.hub.RegisterRoutes(a.httpServer.Echo())
	}

	// Start ingestion consumer
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start background retrain workers
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
		} else {
			l.Info("retrain queue started", applogger.Int("workers", a.cfg.Queue.Workers))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.log

	// Disconnect websocket subscribers first so clients see a clean close
	if a.hub != nil {
		a.hub.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Final collector flush while the queue is still running
	l.RemoveCollector()

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
