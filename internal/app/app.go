package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abiet55/testtestbot/internal/auth"
	"github.com/Abiet55/testtestbot/internal/catalog"
	"github.com/Abiet55/testtestbot/internal/config"
	"github.com/Abiet55/testtestbot/internal/feedback"
	"github.com/Abiet55/testtestbot/internal/httpapi"
	"github.com/Abiet55/testtestbot/internal/messaging"
	"github.com/Abiet55/testtestbot/internal/notify"
	"github.com/Abiet55/testtestbot/internal/order"
	"github.com/Abiet55/testtestbot/internal/storage"
	"github.com/Abiet55/testtestbot/internal/websocket"
)

type App struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *storage.Store
	workflow   *order.Workflow
	wsHub      *websocket.Hub
	publisher  messaging.Publisher
	outbox     *messaging.OutboxDispatcher
	consumer   *messaging.Consumer
	dispatcher *notify.Dispatcher
	httpSrv    *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cat := catalog.NewPostgres(store.Pool())
	orders := order.NewPostgresStore(store.Pool())
	feedbackStore := feedback.NewPostgresStore(store.Pool())
	admins := auth.NewAllowlist(cfg.AdminIDs)

	workflow := order.NewWorkflow(cat, orders, admins, cfg.PaymentInstructions, logger)
	queue := order.NewQueue(orders)

	wsHub := websocket.NewHub()
	workflow.SetStatusListener(wsHub)

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.NotifyExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.NotifyExchange, cfg.NotifyQueue, logger)
	if err != nil {
		store.Close()
		publisher.Close()
		return nil, err
	}

	var sender notify.Sender
	if cfg.NotifyWebhookURL != "" {
		sender = &notify.WebhookSender{
			URL:    cfg.NotifyWebhookURL,
			Client: &http.Client{Timeout: 10 * time.Second},
		}
	} else {
		sender = &notify.LogSender{Logger: logger}
	}
	dispatcher := notify.NewDispatcher(sender, logger)

	api := httpapi.NewServer(workflow, queue, orders, cat, feedbackStore, admins, logger)
	wsHandler := websocket.NewHandler(wsHub, orders)
	api.HandleFunc("GET /orders/{orderID}/ws", wsHandler.ServeWS)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, cfg.OutboxInterval, cfg.OutboxBatchSize, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		workflow:   workflow,
		wsHub:      wsHub,
		publisher:  publisher,
		outbox:     outbox,
		consumer:   consumer,
		dispatcher: dispatcher,
		httpSrv:    httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	a.outbox.Start(ctx)

	go a.wsHub.Run(ctx)

	go func() {
		errCh <- a.consumer.Start(ctx, a.dispatcher.Handle)
	}()

	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.consumer.Close()
	a.publisher.Close()
	a.store.Close()
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if len(cfg.AdminIDs) == 0 {
		return fmt.Errorf("no admin ids configured, set BOT_ADMIN_IDS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
