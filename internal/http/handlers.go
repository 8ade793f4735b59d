package http

import (
    "context"
    "net/http"

    "github.com/deepakgees/Performance360-sub001/internal/config"
    "github.com/deepakgees/Performance360-sub001/internal/domain"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

type service interface {
    SyncTickets(ctx context.Context, req domain.SyncRequest) (domain.SyncSummary, error)
    TestJiraConnection(ctx context.Context, creds domain.Credentials) error
    GetLastRun(ctx context.Context) (*domain.SyncRun, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

type syncRequestBody struct {
    JQL      string `json:"jql"`
    Username string `json:"username"`
    APIToken string `json:"api_token"`
    Password string `json:"password"`
}

// Sync runs the full pipeline synchronously and returns the summary, so the
// caller can tell "tracker unreachable" apart from "synced with N bad rows".
func (h *Handlers) Sync(c *gin.Context) {
    var body syncRequestBody
    _ = c.ShouldBindJSON(&body)
    req := domain.SyncRequest{
        JQL: body.JQL,
        Credentials: domain.Credentials{Username: body.Username, APIToken: body.APIToken, Password: body.Password},
    }
    sum, err := h.svc.SyncTickets(c.Request.Context(), req)
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "summary": sum})
        return
    }
    c.JSON(http.StatusOK, sum)
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.GetLastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, lr)
}

// JiraTest accepts the same optional credential overrides as Sync, so
// operators can verify new credentials before running a sync with them.
func (h *Handlers) JiraTest(c *gin.Context) {
    var body syncRequestBody
    _ = c.ShouldBindJSON(&body)
    creds := domain.Credentials{Username: body.Username, APIToken: body.APIToken, Password: body.Password}
    if err := h.svc.TestJiraConnection(c.Request.Context(), creds); err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}
