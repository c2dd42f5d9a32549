package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weekly-expenses/internal/attachments"
	"weekly-expenses/internal/auth"
	"weekly-expenses/internal/config"
	"weekly-expenses/internal/expenses"
	"weekly-expenses/internal/handlers"
	"weekly-expenses/internal/log"
	"weekly-expenses/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), Component: log.ComponentApp})
	log.SetDefault(logger)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if removed, err := db.CleanExpiredSessions(ctx); err != nil {
		logger.Warn("failed to clean expired sessions", log.FieldError, err)
	} else if removed > 0 {
		logger.Info("removed expired sessions", "count", removed)
	}

	if err := bootstrapAdmin(ctx, db, cfg, logger); err != nil {
		return err
	}

	blobs, err := attachments.NewFileStore(cfg.UploadDir)
	if err != nil {
		return err
	}
	resolver := attachments.NewResolver(blobs, attachments.Config{
		MaxBytes:     cfg.MaxUploadBytes,
		FetchTimeout: cfg.FetchTimeout,
	})
	svc := expenses.NewService(db, resolver, cfg.Catalog())

	h := handlers.NewHandlers(db, svc, resolver, handlers.Options{
		TemplateDir:     cfg.TemplateDir,
		SecureCookie:    cfg.SecureCookie,
		SessionDuration: cfg.SessionDuration,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           log.RequestLogger(logger)(setupRouter(h, cfg.StaticDir)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Port, "db", cfg.DBPath, "uploads", cfg.UploadDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

// bootstrapAdmin creates the configured admin account when the database has
// no users yet.
func bootstrapAdmin(ctx context.Context, db *storage.DB, cfg *config.Config, logger *log.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	count, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	user, err := auth.NewAuthenticator(db).CreateUser(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	logger.Info("created admin user", log.FieldUserID, user.ID, "email", user.Email)
	return nil
}

func setupRouter(h *handlers.Handlers, staticDir string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/expenses", http.StatusFound)
	})
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	mux.HandleFunc("GET /healthz", h.Healthz)

	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)

	protected := func(fn http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(fn)
	}
	mux.Handle("GET /expenses", protected(h.ListExpenses))
	mux.Handle("GET /expenses/stats", protected(h.Statistics))
	mux.Handle("GET /expenses/new", protected(h.CreateExpenseForm))
	mux.Handle("POST /expenses", protected(h.CreateExpense))
	mux.Handle("GET /expenses/{id}/edit", protected(h.EditExpenseForm))
	mux.Handle("POST /expenses/{id}", protected(h.UpdateExpense))
	mux.Handle("GET /uploads/{token}", protected(h.ServeAttachment))

	return mux
}
