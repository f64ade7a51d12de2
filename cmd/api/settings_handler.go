package api

import (
	"net/http"

	"mailmirror-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// SyncSettingsResponse is the effective import configuration. Secrets are
// never part of it.
type SyncSettingsResponse struct {
	OnStart          bool    `json:"on_start"`
	Schedule         string  `json:"schedule"`
	InboxLimit       int64   `json:"inbox_limit"`
	SpamLimit        int64   `json:"spam_limit"`
	DraftLimit       int64   `json:"draft_limit"`
	SentLimit        int64   `json:"sent_limit"`
	LabelScope       string  `json:"label_scope"`
	FetchConcurrency int     `json:"fetch_concurrency"`
	UserConcurrency  int     `json:"user_concurrency"`
	CallTimeout      string  `json:"call_timeout"`
	RetryMaxAttempts int     `json:"retry_max_attempts"`
	GmailRateLimit   float64 `json:"gmail_rate_limit"`
}

type SettingsHandler struct {
	settings SyncSettingsResponse
}

func NewSettingsHandler(cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{
		settings: SyncSettingsResponse{
			OnStart:          cfg.Sync.OnStart,
			Schedule:         cfg.Sync.Schedule,
			InboxLimit:       cfg.Sync.InboxLimit,
			SpamLimit:        cfg.Sync.SpamLimit,
			DraftLimit:       cfg.Sync.DraftLimit,
			SentLimit:        cfg.Sync.SentLimit,
			LabelScope:       cfg.Sync.LabelScope,
			FetchConcurrency: cfg.Sync.FetchConcurrency,
			UserConcurrency:  cfg.Sync.UserConcurrency,
			CallTimeout:      cfg.Sync.CallTimeout.String(),
			RetryMaxAttempts: cfg.Sync.RetryMaxAttempts,
			GmailRateLimit:   cfg.Gmail.RateLimit,
		},
	}
}

// GET /api/settings/sync
func (h *SettingsHandler) GetSyncSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings)
}
