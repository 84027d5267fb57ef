// Nvisy server entry point. The composition root constructs every
// process-wide handle exactly once (relational pool, broker client, object
// storage, session keys, master-key cipher, rate limiter) and passes them to
// the HTTP service and background workers by value.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvisycom/server/api"
	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/config"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/llm"
	"github.com/nvisycom/server/nats"
	"github.com/nvisycom/server/rag"
	"github.com/nvisycom/server/security"
	"github.com/nvisycom/server/storage"
	"github.com/nvisycom/server/webhook"
	"github.com/nvisycom/server/worker"
)

func main() {
	if err := run(); err != nil {
		common.Logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

// tokenCleanupLoop hard-deletes long-expired tokens once an hour.
func tokenCleanupLoop(ctx context.Context, tokens *nats.ApiTokenStore) {
	log := common.Component("main")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := tokens.CleanupExpired(ctx); err != nil {
				log.WithError(err).Warn("token cleanup failed")
			}
		}
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	common.ConfigureLogging(cfg.Debug)
	log := common.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Dependency order: crypto primitives, relational pool, broker client,
	// then everything layered on top.
	cipher, err := security.NewWorkspaceCipher(cfg.Auth.MasterKey)
	if err != nil {
		return err
	}

	keys, err := auth.LoadSessionKeys(cfg.Auth.PrivatePEMPath, cfg.Auth.PublicPEMPath)
	if err != nil {
		return err
	}

	store, err := db.NewClient(cfg.Postgres)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	broker, err := nats.Connect(cfg.Nats)
	if err != nil {
		return err
	}
	defer broker.Close()

	tokens, err := nats.NewApiTokenStore(ctx, broker, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	sessions, err := nats.NewSessionStore(ctx, broker, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	history, err := nats.NewChatHistoryStore(ctx, broker, 0)
	if err != nil {
		return err
	}

	objects, err := storage.NewService(ctx, cfg.Minio)
	if err != nil {
		return err
	}

	emitter, err := webhook.NewEmitter(ctx, store, broker)
	if err != nil {
		return err
	}

	deliveryWorker, err := webhook.NewWorker(ctx, store, broker, webhook.WorkerConfig{
		MaxDeliver: cfg.Webhook.MaxDeliver,
	})
	if err != nil {
		return err
	}

	provider, err := llm.NewOpenRouterClient(cfg.LLM)
	if err != nil {
		return err
	}
	limiter := llm.NewRateLimiter(cfg.LLM.RatePerSecond)
	completion, err := api.NewChatCompletion(provider, limiter)
	if err != nil {
		return err
	}
	search := rag.NewService(store, provider, "")

	pool, err := worker.NewPool(ctx, store, broker, worker.DefaultConfig())
	if err != nil {
		return err
	}

	go deliveryWorker.Run(ctx)
	go pool.Run(ctx)
	go tokenCleanupLoop(ctx, tokens)

	service := &api.Service{
		Config:     cfg,
		Store:      store,
		Tokens:     tokens,
		Sessions:   sessions,
		History:    history,
		Keys:       keys,
		Hasher:     auth.NewPasswordHasher(),
		Cipher:     cipher,
		Emitter:    emitter,
		Objects:    objects,
		Search:     search,
		LLM:        provider,
		Completion: completion,
	}

	e := service.NewServer()
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTP.Port).Info("http server listening")
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
