package delivery

import (
	"net/http"

	authdomain "mailmirror-backend/internal/auth/domain"
	emaildomain "mailmirror-backend/internal/email/domain"
	emaildto "mailmirror-backend/internal/email/dto"
	"mailmirror-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(emaildomain.HTTPStatus(err), gin.H{"error": err.Error()})
}

func (h *EmailHandler) ListEmails(c *gin.Context) {
	emails, err := h.emailUsecase.ListEmails(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emails)
}

// GetInbox returns the newest provider inbox messages of a user
func (h *EmailHandler) GetInbox(c *gin.Context) {
	items, err := h.emailUsecase.GetInbox(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *EmailHandler) ListSent(c *gin.Context) {
	emails, err := h.emailUsecase.ListSent(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emails)
}

func (h *EmailHandler) GetThread(c *gin.Context) {
	email, replies, err := h.emailUsecase.GetThread(c.Request.Context(), c.Param("emailId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.ThreadResponse{Email: email, Replies: replies})
}

func (h *EmailHandler) Search(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	userData, ok := user.(*authdomain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
		return
	}

	emails, err := h.emailUsecase.Search(c.Request.Context(), userData, c.Query("query"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.EmailsResponse{Emails: emails})
}

func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req emaildto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email, err := h.emailUsecase.SendEmail(c.Request.Context(), c.Param("userId"), req.To, req.Subject, req.Body)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, email)
}

func (h *EmailHandler) MarkAsRead(c *gin.Context) {
	if err := h.emailUsecase.MarkAsRead(c.Request.Context(), c.Param("emailId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "email marked as read"})
}

func (h *EmailHandler) Reply(c *gin.Context) {
	var req emaildto.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.emailUsecase.Reply(c.Request.Context(), c.Param("emailId"), &emaildomain.Email{
		Subject:   req.Subject,
		Body:      req.Body,
		FromEmail: req.FromEmail,
		ToEmail:   req.ToEmail,
		UserID:    req.UserID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (h *EmailHandler) DeleteEmail(c *gin.Context) {
	purged, err := h.emailUsecase.DeleteEmail(c.Request.Context(), c.Param("emailId"), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	if purged {
		c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "email deleted permanently"})
		return
	}
	c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "email deleted"})
}
