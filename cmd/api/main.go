package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"

    "github.com/deepakgees/Performance360-sub001/internal/adapters/jira"
    "github.com/deepakgees/Performance360-sub001/internal/config"
    httpx "github.com/deepakgees/Performance360-sub001/internal/http"
    "github.com/deepakgees/Performance360-sub001/internal/jobs"
    "github.com/deepakgees/Performance360-sub001/internal/logger"
    "github.com/deepakgees/Performance360-sub001/internal/repo"
    "github.com/deepakgees/Performance360-sub001/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    // Adapters
    jc := jira.NewClient(cfg, log)

    // Services
    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, log, repository, jc)

    // HTTP server (Gin)
    router := httpx.NewRouter(cfg, log, svc)

    // Cron
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }
}
