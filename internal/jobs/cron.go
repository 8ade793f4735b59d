package jobs

import (
    "context"
    "time"

    "github.com/deepakgees/Performance360-sub001/internal/config"
    "github.com/deepakgees/Performance360-sub001/internal/domain"
    "github.com/deepakgees/Performance360-sub001/internal/repo"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type service interface {
    SyncTickets(ctx context.Context, req domain.SyncRequest) (domain.SyncSummary, error)
}

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    _, _ = c.AddFunc(cfg.SyncCron, cr.sync)
    return cr
}

func (cr *Cron) Start(){ cr.c.Start() }
func (cr *Cron) Stop(){ cr.c.Stop() }

func (cr *Cron) sync(){
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute); defer cancel()
    const lockKey int64 = 360360
    ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
    if !ok { cr.log.Info().Msg("cron: sync already running elsewhere"); return }
    defer func(){ _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
    cr.log.Info().Msg("cron: ticket sync")
    if _, err := cr.svc.SyncTickets(ctx, domain.SyncRequest{}); err != nil {
        cr.log.Error().Err(err).Msg("cron: sync failed")
    }
}
