package jira

import (
    "errors"
    "fmt"
    "time"

    "github.com/deepakgees/Performance360-sub001/internal/domain"
)

// parseIssue converts one decoded bulkfetch issue payload into a RawIssue.
// Changelog entries with unparsable timestamps keep a zero At; the extractor
// rejects those per ticket rather than failing the batch.
func parseIssue(im map[string]any) (domain.RawIssue, error) {
    key := toStrAny(im["key"])
    if key == "" { return domain.RawIssue{}, errors.New("issue payload without key") }
    fields, _ := im["fields"].(map[string]any)
    if fields == nil { return domain.RawIssue{}, fmt.Errorf("issue %s without fields", key) }

    iss := domain.RawIssue{
        Key:        key,
        Summary:    toStrAny(fields["summary"]),
        CreatedAt:  parseTimeUTC(fields["created"]),
        ResolvedAt: parseTimeUTC(fields["resolutiondate"]),
        DueAt:      parseTimeUTC(fields["duedate"]),
    }
    if pr, ok := fields["priority"].(map[string]any); ok { iss.Priority = toStrAny(pr["name"]) }
    if st, ok := fields["status"].(map[string]any); ok { iss.Status = toStrAny(st["name"]) }
    if as, ok := fields["assignee"].(map[string]any); ok { iss.Assignee = toStrAny(as["displayName"]) }
    if rp, ok := fields["reporter"].(map[string]any); ok { iss.Reporter = toStrAny(rp["displayName"]) }
    if v, ok := fields["timeoriginalestimate"].(float64); ok { iss.EstimateSeconds = int64(v) }
    if comps, ok := fields["components"].([]any); ok {
        for _, c0 := range comps {
            if cm, _ := c0.(map[string]any); cm != nil {
                if n := toStrAny(cm["name"]); n != "" { iss.Components = append(iss.Components, n) }
            }
        }
    }
    iss.Changelog = parseChangelog(im["changelog"])
    return iss, nil
}

func parseChangelog(v any) []domain.ChangeEntry {
    ch, _ := v.(map[string]any)
    if ch == nil { return nil }
    hs, _ := ch["histories"].([]any)
    var entries []domain.ChangeEntry
    for _, h0 := range hs {
        hv, _ := h0.(map[string]any)
        if hv == nil { continue }
        at := parseTimeUTC(hv["created"])
        entry := domain.ChangeEntry{}
        if at != nil { entry.At = *at }
        items, _ := hv["items"].([]any)
        for _, it0 := range items {
            itm, _ := it0.(map[string]any)
            if itm == nil { continue }
            entry.Items = append(entry.Items, domain.ChangeItem{
                Field: toStrAny(itm["field"]),
                From:  toStrAny(itm["fromString"]),
                To:    toStrAny(itm["toString"]),
            })
        }
        if len(entry.Items) > 0 { entries = append(entries, entry) }
    }
    return entries
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}
