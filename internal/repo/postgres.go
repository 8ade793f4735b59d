package repo

import (
    "context"
    "errors"
    "time"

    "github.com/deepakgees/Performance360-sub001/internal/config"
    "github.com/deepakgees/Performance360-sub001/internal/domain"
    "github.com/google/uuid"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// ListActiveBucketConfigs returns the active configurations; callers snapshot
// the result for the duration of a sync run.
func (r *Repository) ListActiveBucketConfigs(ctx context.Context) ([]domain.BucketConfig, error) {
    rows, err := r.db.Pool.Query(ctx, `
        SELECT name, is_active,
               COALESCE(in_progress, '{}'), COALESCE(blocked, '{}'),
               COALESCE(review, '{}'), COALESCE(promotion, '{}'),
               COALESCE(refinement, '{}'), COALESCE(ready_for_development, '{}'),
               COALESCE(closed, '{}')
        FROM status_bucket_configs
        WHERE is_active
    `)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.BucketConfig
    for rows.Next() {
        var c domain.BucketConfig
        if err := rows.Scan(&c.Name, &c.IsActive, &c.InProgress, &c.Blocked, &c.Review,
            &c.Promotion, &c.Refinement, &c.ReadyForDevelopment, &c.Closed); err != nil { return nil, err }
        out = append(out, c)
    }
    return out, rows.Err()
}

// UpsertTicket writes the full extraction result keyed by ticket key.
// Re-running a sync replaces the row wholesale, so repeated syncs against
// unchanged tracker data are no-ops in observable state.
func (r *Repository) UpsertTicket(ctx context.Context, t domain.ExtractedTicket) error {
    const q = `
        INSERT INTO tickets(key, summary, priority, status_last, created_at_jira, resolved_at, due_at,
            estimate_seconds, components, assignee, reporter, closed_at,
            in_progress_seconds, blocked_seconds, review_seconds, promotion_seconds,
            refinement_seconds, ready_for_development_seconds, unmapped_statuses, synced_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19, now())
        ON CONFLICT(key) DO UPDATE SET
            summary=EXCLUDED.summary,
            priority=EXCLUDED.priority,
            status_last=EXCLUDED.status_last,
            created_at_jira=EXCLUDED.created_at_jira,
            resolved_at=EXCLUDED.resolved_at,
            due_at=EXCLUDED.due_at,
            estimate_seconds=EXCLUDED.estimate_seconds,
            components=EXCLUDED.components,
            assignee=EXCLUDED.assignee,
            reporter=EXCLUDED.reporter,
            closed_at=EXCLUDED.closed_at,
            in_progress_seconds=EXCLUDED.in_progress_seconds,
            blocked_seconds=EXCLUDED.blocked_seconds,
            review_seconds=EXCLUDED.review_seconds,
            promotion_seconds=EXCLUDED.promotion_seconds,
            refinement_seconds=EXCLUDED.refinement_seconds,
            ready_for_development_seconds=EXCLUDED.ready_for_development_seconds,
            unmapped_statuses=EXCLUDED.unmapped_statuses,
            synced_at=now()`
    _, err := r.db.Pool.Exec(ctx, q, t.Key, t.Summary, t.Priority, t.Status, t.CreatedAt, t.ResolvedAt, t.DueAt,
        t.EstimateSeconds, textArray(t.Components), t.Assignee, t.Reporter, t.ClosedAt,
        t.Durations.InProgress, t.Durations.Blocked, t.Durations.Review, t.Durations.Promotion,
        t.Durations.Refinement, t.Durations.ReadyForDevelopment, textArray(t.UnmappedStatuses))
    return err
}

// textArray guards the NOT NULL array columns: pgx encodes a nil []string as
// SQL NULL, an empty one as '{}'.
func textArray(s []string) []string {
    if s == nil { return []string{} }
    return s
}

func (r *Repository) StartSyncRun(ctx context.Context, jql string) (string, error) {
    id := uuid.New().String()
    const q = `INSERT INTO sync_runs(id, jql, started_at, success) VALUES($1, $2, now(), false)`
    if _, err := r.db.Pool.Exec(ctx, q, id, jql); err != nil { return "", err }
    return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, runID string, sum domain.SyncSummary, success bool, errStr string) error {
    const q = `UPDATE sync_runs SET finished_at=now(), issues_fetched=$2, tickets_extracted=$3,
        tickets_persisted=$4, error_count=$5, success=$6, error=$7 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, runID, sum.IssuesFetched, sum.TicketsExtracted,
        sum.TicketsPersisted, len(sum.Errors), success, errStr)
    return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
    const q = `SELECT id::text, COALESCE(jql,''), started_at, finished_at,
        COALESCE(issues_fetched,0), COALESCE(tickets_extracted,0), COALESCE(tickets_persisted,0),
        COALESCE(error_count,0), COALESCE(success,false), COALESCE(error,'')
        FROM sync_runs ORDER BY started_at DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    sr := &domain.SyncRun{}
    if err := row.Scan(&sr.ID, &sr.JQL, &sr.StartedAt, &sr.FinishedAt, &sr.IssuesFetched,
        &sr.TicketsExtracted, &sr.TicketsPersisted, &sr.ErrorCount, &sr.Success, &sr.Error); err != nil {
        return nil, err
    }
    return sr, nil
}
