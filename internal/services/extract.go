package services

import (
    "errors"
    "math"
    "sort"
    "strings"
    "time"

    "github.com/deepakgees/Performance360-sub001/internal/domain"
)

// reconstructIntervals rebuilds the status timeline from changelog entries.
// Entries are sorted by timestamp with their original order preserved on
// ties; within an entry only status-field items matter, in the order they
// appear. Each status item opens a new interval and closes the previous one
// at the same instant. The final interval stays open (End == nil): time the
// ticket is still spending in its current status is visible in the timeline
// but never counted (see aggregateIntervals).
//
// The status the ticket held before its first recorded transition is not
// represented; the timeline starts at the first transition.
func reconstructIntervals(entries []domain.ChangeEntry) ([]domain.StatusInterval, error) {
    sorted := make([]domain.ChangeEntry, len(entries))
    copy(sorted, entries)
    sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

    var intervals []domain.StatusInterval
    for _, e := range sorted {
        for _, it := range e.Items {
            if !strings.EqualFold(it.Field, "status") { continue }
            if e.At.IsZero() { return nil, errors.New("changelog entry with status change has no timestamp") }
            if n := len(intervals); n > 0 && intervals[n-1].End == nil {
                end := e.At
                intervals[n-1].End = &end
            }
            intervals = append(intervals, domain.StatusInterval{Status: it.To, Start: e.At})
        }
    }
    return intervals, nil
}

type aggregation struct {
    durations domain.BucketDurations
    closedAt  *time.Time
    unmapped  []string
}

// aggregateIntervals sums completed-interval durations per bucket (whole
// seconds, rounded) and finds the first transition into a closed status.
// Open intervals contribute nothing: a ticket sitting in "Blocked" at
// measurement time counts zero for the blocked bucket until it moves on.
// Matching is case-insensitive throughout; unmapped labels are collected
// once each (first-seen casing) for configuration-gap diagnostics.
func aggregateIntervals(intervals []domain.StatusInterval, cfg domain.BucketConfig) aggregation {
    var agg aggregation
    seen := map[string]bool{}
    for _, iv := range intervals {
        if agg.closedAt == nil && statusIn(iv.Status, cfg.Closed) {
            t := iv.Start
            agg.closedAt = &t
        }
        if !mappedStatus(iv.Status, cfg) {
            lc := strings.ToLower(iv.Status)
            if !seen[lc] {
                seen[lc] = true
                agg.unmapped = append(agg.unmapped, iv.Status)
            }
        }
        if iv.End == nil { continue }
        secs := int64(math.Round(iv.End.Sub(iv.Start).Seconds()))
        if statusIn(iv.Status, cfg.InProgress) { agg.durations.InProgress += secs }
        if statusIn(iv.Status, cfg.Blocked) { agg.durations.Blocked += secs }
        if statusIn(iv.Status, cfg.Review) { agg.durations.Review += secs }
        if statusIn(iv.Status, cfg.Promotion) { agg.durations.Promotion += secs }
        if statusIn(iv.Status, cfg.Refinement) { agg.durations.Refinement += secs }
        if statusIn(iv.Status, cfg.ReadyForDevelopment) { agg.durations.ReadyForDevelopment += secs }
    }
    return agg
}

func statusIn(status string, set []string) bool {
    for _, s := range set {
        if strings.EqualFold(status, s) { return true }
    }
    return false
}

func mappedStatus(status string, cfg domain.BucketConfig) bool {
    return statusIn(status, cfg.InProgress) || statusIn(status, cfg.Blocked) ||
        statusIn(status, cfg.Review) || statusIn(status, cfg.Promotion) ||
        statusIn(status, cfg.Refinement) || statusIn(status, cfg.ReadyForDevelopment) ||
        statusIn(status, cfg.Closed)
}

// ExtractTicket turns one fetched issue into its persisted form. A ticket
// that never entered a closed status returns (nil, nil): that is the
// expected "not yet resolved" skip, not an error.
func ExtractTicket(issue domain.RawIssue, cfg domain.BucketConfig) (*domain.ExtractedTicket, error) {
    intervals, err := reconstructIntervals(issue.Changelog)
    if err != nil { return nil, err }
    agg := aggregateIntervals(intervals, cfg)
    if agg.closedAt == nil { return nil, nil }
    // slice fields stay non-nil so they persist as empty arrays, not NULL
    components := issue.Components
    if components == nil { components = []string{} }
    unmapped := agg.unmapped
    if unmapped == nil { unmapped = []string{} }
    return &domain.ExtractedTicket{
        Key:              issue.Key,
        Summary:          issue.Summary,
        Priority:         issue.Priority,
        Status:           issue.Status,
        CreatedAt:        issue.CreatedAt,
        ResolvedAt:       issue.ResolvedAt,
        DueAt:            issue.DueAt,
        EstimateSeconds:  issue.EstimateSeconds,
        Components:       components,
        Assignee:         issue.Assignee,
        Reporter:         issue.Reporter,
        ClosedAt:         *agg.closedAt,
        Durations:        agg.durations,
        UnmappedStatuses: unmapped,
    }, nil
}
