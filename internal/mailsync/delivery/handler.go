package delivery

import (
	"net/http"
	"strconv"

	emaildomain "mailmirror-backend/internal/email/domain"
	syncdomain "mailmirror-backend/internal/mailsync/domain"
	"mailmirror-backend/internal/mailsync/usecase"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	runner usecase.Runner
}

func NewSyncHandler(runner usecase.Runner) *SyncHandler {
	return &SyncHandler{
		runner: runner,
	}
}

// SyncAll runs the importer for every user and returns the per-user results
func (h *SyncHandler) SyncAll(c *gin.Context) {
	report := h.runner.RunAll(c.Request.Context())
	if report.AlreadyRunning {
		c.JSON(http.StatusConflict, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SyncUser answers with the result body in every case; a failed import takes
// the status of its error kind.
func (h *SyncHandler) SyncUser(c *gin.Context) {
	res := h.runner.RunUser(c.Request.Context(), c.Param("userId"))
	status := http.StatusOK
	if res.Status == syncdomain.StatusFailed {
		status = emaildomain.KindStatus(res.Kind)
	}
	c.JSON(status, res)
}

func (h *SyncHandler) History(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.runner.History(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
