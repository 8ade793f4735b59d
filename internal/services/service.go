package services

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/deepakgees/Performance360-sub001/internal/config"
    "github.com/deepakgees/Performance360-sub001/internal/domain"
    "github.com/rs/zerolog"
)

type JiraClient interface {
    FetchAll(ctx context.Context, jql string, creds domain.Credentials) ([]domain.RawIssue, []domain.TicketError, error)
    Ping(ctx context.Context, creds domain.Credentials) error
}

type Store interface {
    ListActiveBucketConfigs(ctx context.Context) ([]domain.BucketConfig, error)
    UpsertTicket(ctx context.Context, t domain.ExtractedTicket) error
    StartSyncRun(ctx context.Context, jql string) (string, error)
    FinishSyncRun(ctx context.Context, runID string, sum domain.SyncSummary, success bool, errStr string) error
    GetLastRun(ctx context.Context) (*domain.SyncRun, error)
}

type Service struct {
    cfg  config.Config
    log  zerolog.Logger
    repo Store
    jira JiraClient
}

func New(cfg config.Config, log zerolog.Logger, r Store, jira JiraClient) *Service {
    return &Service{cfg: cfg, log: log, repo: r, jira: jira}
}

// SyncTickets drives the full pipeline for one run: collect ids and fetch
// details, snapshot the bucket configs, extract per ticket on a bounded
// worker pool, then upsert the closed tickets. Per-item failures land in the
// summary; only id-collection or config-load failures fail the call.
func (s *Service) SyncTickets(ctx context.Context, req domain.SyncRequest) (domain.SyncSummary, error) {
    jql := strings.TrimSpace(req.JQL)
    if jql == "" { jql = s.cfg.JiraDefaultJQL }

    var sum domain.SyncSummary
    runID, err := s.repo.StartSyncRun(ctx, jql)
    if err != nil { s.log.Error().Err(err).Msg("sync: start run record failed") }
    success := false
    errMsg := ""
    defer func(){
        if runID == "" { return }
        // the request ctx may already be cancelled; the run record must
        // still be closed out
        fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = s.repo.FinishSyncRun(fctx, runID, sum, success, errMsg)
    }()
    s.log.Info().Str("jql", jql).Msg("sync: start")

    issues, fetchErrs, err := s.jira.FetchAll(ctx, jql, req.Credentials)
    if err != nil {
        errMsg = err.Error()
        return sum, fmt.Errorf("fetch issues: %w", err)
    }
    sum.IssuesFetched = len(issues)
    sum.Errors = append(sum.Errors, fetchErrs...)

    configs, err := s.repo.ListActiveBucketConfigs(ctx)
    if err != nil {
        errMsg = err.Error()
        return sum, fmt.Errorf("load bucket configs: %w", err)
    }
    reg := NewRegistry(configs)

    // extraction is pure per-ticket computation; fan out on a bounded pool
    type result struct {
        key    string
        ticket *domain.ExtractedTicket
        err    error
    }
    workerCount := s.cfg.WorkersExtract
    if workerCount <= 0 { workerCount = 4 }
    jobs := make(chan domain.RawIssue)
    results := make(chan result)
    for w := 0; w < workerCount; w++ {
        go func(){
            for iss := range jobs {
                cfg, matched := reg.ConfigFor(iss.Key)
                if !matched { s.log.Debug().Str("key", iss.Key).Msg("sync: no bucket config for key, using unconfigured default") }
                t, err := ExtractTicket(iss, cfg)
                results <- result{key: iss.Key, ticket: t, err: err}
            }
        }()
    }
    go func(){ for _, iss := range issues { jobs <- iss }; close(jobs) }()

    var tickets []domain.ExtractedTicket
    for i := 0; i < len(issues); i++ {
        r := <-results
        if r.err != nil {
            sum.Errors = append(sum.Errors, domain.TicketError{Key: r.key, Stage: "extract", Reason: r.err.Error()})
            continue
        }
        // nil ticket means no closure timestamp: expected skip, not an error
        if r.ticket == nil { continue }
        tickets = append(tickets, *r.ticket)
    }
    sum.TicketsExtracted = len(tickets)

    for _, t := range tickets {
        if err := s.repo.UpsertTicket(ctx, t); err != nil {
            sum.Errors = append(sum.Errors, domain.TicketError{Key: t.Key, Stage: "persist", Reason: err.Error()})
            continue
        }
        sum.TicketsPersisted++
    }

    success = true
    s.log.Info().
        Int("fetched", sum.IssuesFetched).
        Int("extracted", sum.TicketsExtracted).
        Int("persisted", sum.TicketsPersisted).
        Int("errors", len(sum.Errors)).
        Msg("sync: done")
    return sum, nil
}

// TestJiraConnection checks reachability and credentials without syncing.
// Caller-supplied credentials override the configured ones, same as a sync.
func (s *Service) TestJiraConnection(ctx context.Context, creds domain.Credentials) error {
    return s.jira.Ping(ctx, creds)
}

func (s *Service) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
    return s.repo.GetLastRun(ctx)
}
