package api

import (
	"net/http"

	authUsecase "mailmirror-backend/internal/auth/usecase"
	emailUsecasePkg "mailmirror-backend/internal/email/usecase"
	syncUsecase "mailmirror-backend/internal/mailsync/usecase"
	"mailmirror-backend/pkg/config"
	"mailmirror-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase  authUsecase.AuthUsecase
	emailUsecase emailUsecasePkg.EmailUsecase
	syncRunner   syncUsecase.Runner
	config       *config.Config
	log          logger.Logger
}

func NewHandler(authUc authUsecase.AuthUsecase, emailUc emailUsecasePkg.EmailUsecase, runner syncUsecase.Runner, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		authUsecase:  authUc,
		emailUsecase: emailUc,
		syncRunner:   runner,
		config:       cfg,
		log:          log,
	}
}

// Router builds the gin engine with CORS and every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.emailUsecase, h.syncRunner, h.config)
	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= http.StatusInternalServerError {
			h.log.Warnf("[HTTP] %s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
			return
		}
		h.log.Debugf("[HTTP] %s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
