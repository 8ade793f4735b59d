package domain

import "time"

// BucketConfig maps a tracker project prefix to named sets of workflow
// statuses. Loaded once per sync run and treated as immutable.
type BucketConfig struct {
    Name                string
    IsActive            bool
    InProgress          []string
    Blocked             []string
    Review              []string
    Promotion           []string
    Refinement          []string
    ReadyForDevelopment []string
    Closed              []string
}

// ChangeItem is a single field transition inside a changelog entry.
type ChangeItem struct {
    Field string
    From  string
    To    string
}

// ChangeEntry is one changelog history record: a timestamp plus the field
// transitions that happened at that instant.
type ChangeEntry struct {
    At    time.Time
    Items []ChangeItem
}

// RawIssue is the external tracker representation of one ticket. It exists
// only for the duration of a sync run.
type RawIssue struct {
    Key             string
    Summary         string
    Priority        string
    Status          string
    CreatedAt       *time.Time
    ResolvedAt      *time.Time
    DueAt           *time.Time
    EstimateSeconds int64
    Components      []string
    Assignee        string
    Reporter        string
    Changelog       []ChangeEntry
}

// StatusInterval is a contiguous span during which a ticket held one status.
// End is nil while the interval is still open.
type StatusInterval struct {
    Status string
    Start  time.Time
    End    *time.Time
}

// BucketDurations holds whole seconds accumulated per configured bucket.
type BucketDurations struct {
    InProgress          int64
    Blocked             int64
    Review              int64
    Promotion           int64
    Refinement          int64
    ReadyForDevelopment int64
}

// ExtractedTicket is the persisted aggregation result for one closed ticket.
// Slice fields are never nil: they encode as empty arrays, not NULL.
type ExtractedTicket struct {
    Key              string
    Summary          string
    Priority         string
    Status           string
    CreatedAt        *time.Time
    ResolvedAt       *time.Time
    DueAt            *time.Time
    EstimateSeconds  int64
    Components       []string
    Assignee         string
    Reporter         string
    ClosedAt         time.Time
    Durations        BucketDurations
    UnmappedStatuses []string
}

// Credentials authenticate against the tracker. APIToken takes precedence
// over Password when both are set; either is sent as HTTP Basic auth.
type Credentials struct {
    Username string
    APIToken string
    Password string
}

// SyncRequest carries the caller-supplied query and credentials for one run.
// Empty fields fall back to configuration defaults.
type SyncRequest struct {
    JQL         string
    Credentials Credentials
}

// TicketError records one recoverable per-item failure during a sync run.
type TicketError struct {
    Key    string `json:"key"`
    Stage  string `json:"stage"` // fetch | extract | persist
    Reason string `json:"reason"`
}

// SyncSummary is what a sync run returns to its caller. Partial failures
// never fail the run; they show up in Errors.
type SyncSummary struct {
    IssuesFetched    int           `json:"issues_fetched"`
    TicketsExtracted int           `json:"tickets_extracted"`
    TicketsPersisted int           `json:"tickets_persisted"`
    Errors           []TicketError `json:"errors,omitempty"`
}

// SyncRun is the persisted bookkeeping record for one sync run.
type SyncRun struct {
    ID               string     `json:"id"`
    JQL              string     `json:"jql"`
    StartedAt        time.Time  `json:"started_at"`
    FinishedAt       *time.Time `json:"finished_at"`
    IssuesFetched    int        `json:"issues_fetched"`
    TicketsExtracted int        `json:"tickets_extracted"`
    TicketsPersisted int        `json:"tickets_persisted"`
    ErrorCount       int        `json:"error_count"`
    Success          bool       `json:"success"`
    Error            string     `json:"error"`
}
