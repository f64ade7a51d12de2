package api

import (
	"net/http"

	"mailmirror-backend/internal/auth/delivery"
	authUsecase "mailmirror-backend/internal/auth/usecase"
	emailDelivery "mailmirror-backend/internal/email/delivery"
	emailUsecase "mailmirror-backend/internal/email/usecase"
	syncDelivery "mailmirror-backend/internal/mailsync/delivery"
	syncUsecase "mailmirror-backend/internal/mailsync/usecase"
	"mailmirror-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, emailUsecase emailUsecase.EmailUsecase, runner syncUsecase.Runner, cfg *config.Config) {
	authHandler := delivery.NewAuthHandler(authUsecase)
	emailHandler := emailDelivery.NewEmailHandler(emailUsecase)
	folderHandler := emailDelivery.NewFolderHandler(emailUsecase)
	syncHandler := syncDelivery.NewSyncHandler(runner)
	settingsHandler := NewSettingsHandler(cfg)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/auth/login", authHandler.Login)

		users := api.Group("/users")
		{
			users.POST("", authHandler.Register)
			users.GET("", delivery.AuthMiddleware(authUsecase), authHandler.ListUsers)
			users.PUT("/:userId/credentials", authHandler.SaveCredentials)
		}

		emails := api.Group("/emails")
		{
			emails.GET("", emailHandler.ListEmails)
			emails.GET("/inbox/:userId", emailHandler.GetInbox)
			emails.GET("/sent/:userId", emailHandler.ListSent)
			emails.GET("/thread/:emailId", emailHandler.GetThread)
			emails.GET("/search", delivery.AuthMiddleware(authUsecase), emailHandler.Search)
			emails.POST("/read/:emailId", emailHandler.MarkAsRead)
			emails.POST("/reply/:emailId", emailHandler.Reply)
			emails.POST("/:userId", emailHandler.SendEmail)
			emails.DELETE("/:emailId/:userId", emailHandler.DeleteEmail)
		}

		labels := api.Group("/labels")
		{
			labels.GET("/:userId", folderHandler.ListLabels)
			labels.POST("", folderHandler.CreateLabel)
			labels.POST("/email/:emailId", folderHandler.AddLabelToEmail)
			labels.DELETE("/email/:emailId", folderHandler.RemoveLabelFromEmail)
		}

		api.GET("/draft/:userId", folderHandler.GetDrafts)
		api.GET("/draft/:userId/local", folderHandler.GetStoredDrafts)

		spam := api.Group("/spam")
		{
			spam.POST("", folderHandler.MoveToSpam)
			spam.DELETE("", folderHandler.RemoveFromSpam)
		}

		trash := api.Group("/trash")
		{
			trash.GET("/:userId", folderHandler.GetTrash)
			trash.POST("/:emailId/:userId", folderHandler.MoveToTrash)
			trash.DELETE("/:trashId", folderHandler.DeleteFromTrash)
		}

		api.DELETE("/sent/:emailId", folderHandler.DeleteSentEmail)

		sync := api.Group("/sync")
		{
			sync.POST("", syncHandler.SyncAll)
			sync.POST("/:userId", syncHandler.SyncUser)
			sync.GET("/:userId/history", syncHandler.History)
		}

		api.GET("/settings/sync", settingsHandler.GetSyncSettings)
	}
}
