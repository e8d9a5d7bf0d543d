package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"mindtriage/internal/config"
	"mindtriage/internal/core"
	"mindtriage/internal/db"
	httpserver "mindtriage/internal/http"
	"mindtriage/internal/instrument"
	"mindtriage/internal/llm"
	"mindtriage/internal/platform/logger"
	"mindtriage/internal/report"
	"mindtriage/internal/resolver"
	"mindtriage/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err.Error())
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := instrument.LoadRegistry()
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}
	log.Info("instruments loaded", "instruments", len(reg.IDs()), "conditions", len(reg.Conditions()))

	client := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ChatModel)
	orch := core.NewOrchestrator(client, reg, log, core.Options{
		Chat:   core.Sampling{Temperature: cfg.ChatTemperature, MaxTokens: cfg.ChatMaxTokens},
		Report: core.Sampling{Temperature: cfg.ReportTemperature, MaxTokens: cfg.ReportMaxTokens},
		Retry: llm.RetryPolicy{
			MaxRetries:     cfg.ReportMaxRetries,
			Delay:          cfg.ReportRetryDelay,
			AttemptTimeout: cfg.ReportAttemptTimeout,
		},
	})

	opts := session.Options{AutoReport: cfg.AutoReport, Log: log}
	if cfg.DatabaseURL != "" {
		dbConn, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer dbConn.Close()
		opts.Recorder = db.NewArchive(db.NewRepository(dbConn), db.NewNotifier(dbConn, cfg.NotifyChannel), log)
		log.Info("report archive enabled", "channel", cfg.NotifyChannel)
	} else {
		log.Info("DATABASE_URL not set, reports are not archived")
	}

	eng := session.Engine{Dialogue: orch, Registry: reg, Resolver: resolver.FromRegistry(reg)}
	handler := httpserver.NewServer(httpserver.NewStore(eng, opts), report.NewRenderer(cfg.PDFFontPath), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "model", client.Model())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(pingCtx); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return dbConn, nil
}
