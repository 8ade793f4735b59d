package jira

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"

    "github.com/cenkalti/backoff/v4"
    "github.com/deepakgees/Performance360-sub001/internal/config"
    "github.com/deepakgees/Performance360-sub001/internal/domain"
    "github.com/rs/zerolog"
)

// detailFields is the field set requested during the bulk detail phase.
// The id-collection phase requests "id" only to keep pages light.
var detailFields = []string{
    "summary", "priority", "status", "created", "resolutiondate", "duedate",
    "timeoriginalestimate", "components", "assignee", "reporter",
}

type Client struct {
    baseURL   string
    user      string
    token     string
    pass      string
    pageSize  int
    batchSize int
    http      *http.Client
    log       zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL:   cfg.JiraBaseURL,
        user:      cfg.JiraUsername,
        token:     cfg.JiraAPIToken,
        pass:      cfg.JiraPassword,
        pageSize:  cfg.JiraSearchPageSize,
        batchSize: cfg.JiraBatchSize,
        http:      &http.Client{ Timeout: cfg.HTTPTimeout },
        log:       log,
    }
}

// Ping verifies connectivity and credentials against /myself. Errors are
// returned to the caller as-is; there is no retry policy beyond doJSON's.
func (c *Client) Ping(ctx context.Context, creds domain.Credentials) error {
    _, err := c.doJSON(ctx, http.MethodGet, c.apiURL("/rest/api/3/myself", nil), nil, creds)
    return err
}

// FetchAll runs the two-phase retrieval: collect all matching issue keys via
// the paged JQL search, then pull full details plus changelog in fixed-size
// batches. A failed batch drops its issues and is reported in errs; only a
// failure during id collection fails the whole call.
func (c *Client) FetchAll(ctx context.Context, jql string, creds domain.Credentials) ([]domain.RawIssue, []domain.TicketError, error) {
    keys, err := c.collectIDs(ctx, jql, creds)
    if err != nil { return nil, nil, err }
    if len(keys) == 0 { return nil, nil, nil }

    var issues []domain.RawIssue
    var errs []domain.TicketError
    for start := 0; start < len(keys); start += c.batch() {
        end := start + c.batch()
        if end > len(keys) { end = len(keys) }
        batch := keys[start:end]
        got, err := c.fetchBatch(ctx, batch, creds)
        if err != nil {
            c.log.Error().Err(err).Str("from", batch[0]).Str("to", batch[len(batch)-1]).Int("size", len(batch)).Msg("jira: batch fetch failed, dropping batch")
            errs = append(errs, domain.TicketError{Key: batch[0] + ".." + batch[len(batch)-1], Stage: "fetch", Reason: err.Error()})
            continue
        }
        issues = append(issues, got...)
    }
    return issues, errs, nil
}

// collectIDs pages through the search endpoint accumulating issue keys until
// no continuation token is returned.
func (c *Client) collectIDs(ctx context.Context, jql string, creds domain.Credentials) ([]string, error) {
    if strings.TrimSpace(jql) == "" { return nil, errors.New("jira: empty jql") }
    var keys []string
    next := ""
    for {
        body := map[string]any{"jql": jql, "maxResults": c.page(), "fields": []string{"id"}}
        if next != "" { body["nextPageToken"] = next }
        res, err := c.doJSON(ctx, http.MethodPost, c.apiURL("/rest/api/3/search/jql", nil), body, creds)
        if err != nil { return nil, err }
        arr, _ := res["issues"].([]any)
        for _, it := range arr {
            im, _ := it.(map[string]any)
            if im == nil { continue }
            k := toStrAny(im["key"])
            if k == "" { k = toStrAny(im["id"]) }
            if k != "" { keys = append(keys, k) }
        }
        next = toStrAny(res["nextPageToken"])
        if next == "" { break }
    }
    return keys, nil
}

func (c *Client) fetchBatch(ctx context.Context, keys []string, creds domain.Credentials) ([]domain.RawIssue, error) {
    body := map[string]any{
        "issueIdsOrKeys": keys,
        "fields":         detailFields,
        "expand":         []string{"changelog"},
    }
    res, err := c.doJSON(ctx, http.MethodPost, c.apiURL("/rest/api/3/issue/bulkfetch", nil), body, creds)
    if err != nil { return nil, err }
    arr, _ := res["issues"].([]any)
    out := make([]domain.RawIssue, 0, len(arr))
    for _, it := range arr {
        im, _ := it.(map[string]any)
        if im == nil { continue }
        iss, err := parseIssue(im)
        if err != nil { c.log.Warn().Err(err).Msg("jira: skipping unparsable issue"); continue }
        out = append(out, iss)
    }
    return out, nil
}

func (c *Client) page() int { if c.pageSize > 0 { return c.pageSize }; return 1000 }
func (c *Client) batch() int { if c.batchSize > 0 { return c.batchSize }; return 100 }

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

// authorize sets one HTTP Basic credential; API token wins over password.
func (c *Client) authorize(req *http.Request, creds domain.Credentials) {
    user := creds.Username
    if user == "" { user = c.user }
    token := creds.APIToken
    if token == "" { token = c.token }
    pass := creds.Password
    if pass == "" { pass = c.pass }
    if token != "" {
        req.SetBasicAuth(user, token)
    } else if pass != "" {
        req.SetBasicAuth(user, pass)
    }
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any, creds domain.Credentials) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var out map[string]any
    op := func() error {
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return backoff.Permanent(err) }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        c.authorize(req, creds)
        resp, err := c.http.Do(req)
        if err != nil { return err }
        defer resp.Body.Close()
        if resp.StatusCode >= 300 {
            b, _ := io.ReadAll(resp.Body)
            apiErr := fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
            // retry on 429/5xx only
            if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 { return apiErr }
            return backoff.Permanent(apiErr)
        }
        out = nil
        if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return backoff.Permanent(err) }
        return nil
    }
    bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
    if err := backoff.Retry(op, bo); err != nil { return nil, err }
    return out, nil
}
