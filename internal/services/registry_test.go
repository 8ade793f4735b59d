package services

import (
    "testing"

    "github.com/deepakgees/Performance360-sub001/internal/domain"
)

func TestRegistry_MatchesByPrefix(t *testing.T) {
    reg := NewRegistry([]domain.BucketConfig{
        {Name: "PERF", IsActive: true, Closed: []string{"Done"}},
        {Name: "OPS", IsActive: true, Closed: []string{"Resolved"}},
    })
    cfg, ok := reg.ConfigFor("PERF-123")
    if !ok { t.Fatalf("expected a match for PERF-123") }
    if cfg.Name != "PERF" { t.Fatalf("matched %q, want PERF", cfg.Name) }
    cfg, ok = reg.ConfigFor("OPS-7")
    if !ok || cfg.Name != "OPS" { t.Fatalf("matched %q ok=%v, want OPS", cfg.Name, ok) }
}

func TestRegistry_LongestPrefixWins(t *testing.T) {
    reg := NewRegistry([]domain.BucketConfig{
        {Name: "PERF", IsActive: true},
        {Name: "PERFOPS", IsActive: true},
    })
    cfg, ok := reg.ConfigFor("PERFOPS-12")
    if !ok || cfg.Name != "PERFOPS" { t.Fatalf("matched %q, want PERFOPS", cfg.Name) }
    // order of the input slice must not matter
    reg = NewRegistry([]domain.BucketConfig{
        {Name: "PERFOPS", IsActive: true},
        {Name: "PERF", IsActive: true},
    })
    cfg, _ = reg.ConfigFor("PERFOPS-12")
    if cfg.Name != "PERFOPS" { t.Fatalf("matched %q, want PERFOPS regardless of input order", cfg.Name) }
}

func TestRegistry_IgnoresInactiveAndUnnamedConfigs(t *testing.T) {
    reg := NewRegistry([]domain.BucketConfig{
        {Name: "PERF", IsActive: false},
        {Name: "  ", IsActive: true},
    })
    if _, ok := reg.ConfigFor("PERF-1"); ok { t.Fatalf("inactive config must not match") }
}

func TestRegistry_UnconfiguredDefaultDropsEverything(t *testing.T) {
    reg := NewRegistry(nil)
    cfg, ok := reg.ConfigFor("UNKNOWN-1")
    if ok { t.Fatalf("no config should match") }
    // the permissive default yields zero durations and no closure
    ticket, err := ExtractTicket(domain.RawIssue{
        Key: "UNKNOWN-1",
        Changelog: []domain.ChangeEntry{
            statusChange(t0, "Open", "In Progress"),
            statusChange(t1, "In Progress", "Done"),
        },
    }, cfg)
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if ticket != nil { t.Fatalf("empty closed set can never close a ticket, got %+v", ticket) }
}
