package services

import (
    "sort"
    "strings"

    "github.com/deepakgees/Performance360-sub001/internal/domain"
)

// Registry is an immutable snapshot of the active bucket configurations,
// taken once per sync run so a config change mid-run cannot produce
// inconsistent bucket assignments.
type Registry struct {
    configs []domain.BucketConfig
}

// NewRegistry keeps only active configs and orders them by descending name
// length, so the longest matching prefix wins when two configs prefix the
// same ticket key (e.g. "PERFOPS" beats "PERF" for "PERFOPS-12").
func NewRegistry(configs []domain.BucketConfig) *Registry {
    active := make([]domain.BucketConfig, 0, len(configs))
    for _, c := range configs {
        if c.IsActive && strings.TrimSpace(c.Name) != "" { active = append(active, c) }
    }
    sort.SliceStable(active, func(i, j int) bool { return len(active[i].Name) > len(active[j].Name) })
    return &Registry{configs: active}
}

// ConfigFor returns the config whose name prefixes the ticket key. When none
// matches it returns the unconfigured default and false; callers proceed with
// it rather than failing, so unconfigured projects never abort a sync.
func (r *Registry) ConfigFor(ticketKey string) (domain.BucketConfig, bool) {
    for _, c := range r.configs {
        if strings.HasPrefix(ticketKey, c.Name) { return c, true }
    }
    return UnconfiguredDefault(), false
}

// UnconfiguredDefault is the permissive fallback: every bucket and the closed
// set empty. Tickets resolved against it get zero durations and no closure
// timestamp, which drops them from the output.
func UnconfiguredDefault() domain.BucketConfig {
    return domain.BucketConfig{IsActive: true}
}
