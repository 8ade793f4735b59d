package services

import (
    "context"
    "errors"
    "reflect"
    "sync"
    "testing"

    "github.com/deepakgees/Performance360-sub001/internal/config"
    "github.com/deepakgees/Performance360-sub001/internal/domain"
    "github.com/rs/zerolog"
)

type fakeJira struct {
    issues    []domain.RawIssue
    errs      []domain.TicketError
    err       error
    pingCreds domain.Credentials
}

func (f *fakeJira) FetchAll(ctx context.Context, jql string, creds domain.Credentials) ([]domain.RawIssue, []domain.TicketError, error) {
    return f.issues, f.errs, f.err
}

func (f *fakeJira) Ping(ctx context.Context, creds domain.Credentials) error {
    f.pingCreds = creds
    return nil
}

type fakeStore struct {
    mu            sync.Mutex
    configs       []domain.BucketConfig
    tickets       map[string]domain.ExtractedTicket
    failKeys      map[string]bool
    finished      []domain.SyncSummary
    finishCtxErrs []error
}

func newFakeStore(configs ...domain.BucketConfig) *fakeStore {
    return &fakeStore{configs: configs, tickets: map[string]domain.ExtractedTicket{}, failKeys: map[string]bool{}}
}

func (f *fakeStore) ListActiveBucketConfigs(ctx context.Context) ([]domain.BucketConfig, error) {
    return f.configs, nil
}

func (f *fakeStore) UpsertTicket(ctx context.Context, t domain.ExtractedTicket) error {
    f.mu.Lock(); defer f.mu.Unlock()
    if f.failKeys[t.Key] { return errors.New("unique constraint violated") }
    f.tickets[t.Key] = t
    return nil
}

func (f *fakeStore) StartSyncRun(ctx context.Context, jql string) (string, error) { return "run-1", nil }

func (f *fakeStore) FinishSyncRun(ctx context.Context, runID string, sum domain.SyncSummary, success bool, errStr string) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.finished = append(f.finished, sum)
    f.finishCtxErrs = append(f.finishCtxErrs, ctx.Err())
    return nil
}

func (f *fakeStore) GetLastRun(ctx context.Context) (*domain.SyncRun, error) { return nil, nil }

func newTestService(store *fakeStore, jc *fakeJira) *Service {
    cfg := config.Config{JiraDefaultJQL: "project = PROJ", WorkersExtract: 2}
    return New(cfg, zerolog.Nop(), store, jc)
}

func closedIssue(key string) domain.RawIssue {
    return domain.RawIssue{
        Key: key,
        Changelog: []domain.ChangeEntry{
            statusChange(t0, "Open", "In Progress"),
            statusChange(t2, "In Progress", "Done"),
        },
    }
}

func openIssue(key string) domain.RawIssue {
    return domain.RawIssue{
        Key: key,
        Changelog: []domain.ChangeEntry{
            statusChange(t0, "Open", "In Progress"),
        },
    }
}

func malformedIssue(key string) domain.RawIssue {
    return domain.RawIssue{
        Key: key,
        Changelog: []domain.ChangeEntry{
            {Items: []domain.ChangeItem{{Field: "status", From: "Open", To: "Done"}}},
        },
    }
}

func TestSyncTickets_CountsAndPersists(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{issues: []domain.RawIssue{
        closedIssue("PROJ-1"),
        openIssue("PROJ-2"),      // never closed: silent business skip
        malformedIssue("PROJ-3"), // extraction error, recorded
    }}
    sum, err := newTestService(store, jc).SyncTickets(context.Background(), domain.SyncRequest{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if sum.IssuesFetched != 3 { t.Fatalf("fetched = %d, want 3", sum.IssuesFetched) }
    if sum.TicketsExtracted != 1 { t.Fatalf("extracted = %d, want 1", sum.TicketsExtracted) }
    if sum.TicketsPersisted != 1 { t.Fatalf("persisted = %d, want 1", sum.TicketsPersisted) }
    if len(sum.Errors) != 1 || sum.Errors[0].Key != "PROJ-3" || sum.Errors[0].Stage != "extract" {
        t.Fatalf("unexpected errors: %+v", sum.Errors)
    }
    if _, ok := store.tickets["PROJ-1"]; !ok { t.Fatalf("PROJ-1 not persisted") }
    if _, ok := store.tickets["PROJ-2"]; ok { t.Fatalf("unclosed PROJ-2 must not be persisted") }
    if len(store.finished) != 1 { t.Fatalf("sync run record not finished") }
}

func TestSyncTickets_EveryPersistedTicketIsClosed(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{issues: []domain.RawIssue{
        closedIssue("PROJ-1"), openIssue("PROJ-2"), closedIssue("PROJ-3"), openIssue("PROJ-4"),
    }}
    if _, err := newTestService(store, jc).SyncTickets(context.Background(), domain.SyncRequest{}); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    for key, tk := range store.tickets {
        if tk.ClosedAt.IsZero() { t.Fatalf("persisted ticket %s without closure timestamp", key) }
    }
}

func TestSyncTickets_PersistFailureDoesNotAbortBatch(t *testing.T) {
    store := newFakeStore(workflowConfig())
    store.failKeys["PROJ-1"] = true
    jc := &fakeJira{issues: []domain.RawIssue{closedIssue("PROJ-1"), closedIssue("PROJ-2")}}
    sum, err := newTestService(store, jc).SyncTickets(context.Background(), domain.SyncRequest{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if sum.TicketsExtracted != 2 { t.Fatalf("extracted = %d, want 2", sum.TicketsExtracted) }
    if sum.TicketsPersisted != 1 { t.Fatalf("persisted = %d, want 1", sum.TicketsPersisted) }
    if len(sum.Errors) != 1 || sum.Errors[0].Stage != "persist" || sum.Errors[0].Key != "PROJ-1" {
        t.Fatalf("unexpected errors: %+v", sum.Errors)
    }
    if _, ok := store.tickets["PROJ-2"]; !ok { t.Fatalf("PROJ-2 should still be persisted") }
}

func TestSyncTickets_FetchFailureIsFatal(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{err: errors.New("jira api status=401")}
    sum, err := newTestService(store, jc).SyncTickets(context.Background(), domain.SyncRequest{})
    if err == nil { t.Fatalf("expected fatal error when id collection fails") }
    if sum.IssuesFetched != 0 || sum.TicketsPersisted != 0 { t.Fatalf("no partial result expected: %+v", sum) }
}

func TestSyncTickets_BatchErrorsSurfaceInSummary(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{
        issues: []domain.RawIssue{closedIssue("PROJ-1")},
        errs:   []domain.TicketError{{Key: "PROJ-100..PROJ-199", Stage: "fetch", Reason: "timeout"}},
    }
    sum, err := newTestService(store, jc).SyncTickets(context.Background(), domain.SyncRequest{})
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(sum.Errors) != 1 || sum.Errors[0].Stage != "fetch" { t.Fatalf("fetch errors missing: %+v", sum.Errors) }
    if sum.TicketsPersisted != 1 { t.Fatalf("partial data should still persist") }
}

func TestSyncTickets_RerunIsIdempotent(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{issues: []domain.RawIssue{closedIssue("PROJ-1"), closedIssue("PROJ-2")}}
    svc := newTestService(store, jc)
    if _, err := svc.SyncTickets(context.Background(), domain.SyncRequest{}); err != nil {
        t.Fatalf("first run: %v", err)
    }
    first := make(map[string]domain.ExtractedTicket, len(store.tickets))
    for k, v := range store.tickets { first[k] = v }
    if _, err := svc.SyncTickets(context.Background(), domain.SyncRequest{}); err != nil {
        t.Fatalf("second run: %v", err)
    }
    if !reflect.DeepEqual(first, store.tickets) {
        t.Fatalf("rerun changed observable state:\nfirst:  %+v\nsecond: %+v", first, store.tickets)
    }
}

func TestSyncTickets_RunRecordFinishedAfterCancellation(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{err: errors.New("context canceled")}
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    if _, err := newTestService(store, jc).SyncTickets(ctx, domain.SyncRequest{}); err == nil {
        t.Fatalf("expected error from failed fetch")
    }
    if len(store.finished) != 1 { t.Fatalf("run record not finished after cancellation") }
    if store.finishCtxErrs[0] != nil {
        t.Fatalf("finish must run on a live context, got %v", store.finishCtxErrs[0])
    }
}

func TestTestJiraConnection_ForwardsCredentials(t *testing.T) {
    store := newFakeStore(workflowConfig())
    jc := &fakeJira{}
    creds := domain.Credentials{Username: "ops@example.com", APIToken: "tok-42"}
    if err := newTestService(store, jc).TestJiraConnection(context.Background(), creds); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if jc.pingCreds != creds { t.Fatalf("credentials not forwarded: %+v", jc.pingCreds) }
}

func TestSyncTickets_UnconfiguredPrefixYieldsNoOutput(t *testing.T) {
    store := newFakeStore(workflowConfig()) // config only covers PROJ
    jc := &fakeJira{issues: []domain.RawIssue{closedIssue("OTHER-9")}}
    sum, err := newTestService(store, jc).SyncTickets(context.Background(), domain.SyncRequest{})
    if err != nil { t.Fatalf("unconfigured project must not fail the sync: %v", err) }
    if sum.IssuesFetched != 1 { t.Fatalf("fetched = %d, want 1", sum.IssuesFetched) }
    if sum.TicketsExtracted != 0 || len(sum.Errors) != 0 {
        t.Fatalf("unconfigured ticket should be silently dropped: %+v", sum)
    }
}
