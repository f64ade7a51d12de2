package delivery

import (
	"net/http"

	emaildto "mailmirror-backend/internal/email/dto"
	"mailmirror-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// FolderHandler serves labels, drafts, spam, trash and sent mail.
type FolderHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewFolderHandler(emailUsecase usecase.EmailUsecase) *FolderHandler {
	return &FolderHandler{
		emailUsecase: emailUsecase,
	}
}

func (h *FolderHandler) ListLabels(c *gin.Context) {
	labels, err := h.emailUsecase.ListLabels(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, labels)
}

func (h *FolderHandler) CreateLabel(c *gin.Context) {
	var req emaildto.CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label, err := h.emailUsecase.CreateLabel(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, label)
}

func (h *FolderHandler) AddLabelToEmail(c *gin.Context) {
	var req emaildto.LabelEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.AddLabelToEmail(c.Request.Context(), c.Param("emailId"), req.LabelID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, emaildto.MessageResponse{Message: "label added to email"})
}

func (h *FolderHandler) RemoveLabelFromEmail(c *gin.Context) {
	var req emaildto.LabelEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.RemoveLabelFromEmail(c.Request.Context(), c.Param("emailId"), req.LabelID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "label removed from email"})
}

func (h *FolderHandler) GetDrafts(c *gin.Context) {
	drafts, err := h.emailUsecase.GetDrafts(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, drafts)
}

// GetStoredDrafts lists the drafts already mirrored into the store.
func (h *FolderHandler) GetStoredDrafts(c *gin.Context) {
	drafts, err := h.emailUsecase.ListStoredDrafts(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, drafts)
}

func (h *FolderHandler) MoveToSpam(c *gin.Context) {
	var req emaildto.SpamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.MoveToSpam(c.Request.Context(), req.UserID, req.EmailID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, emaildto.MessageResponse{Message: "Email moved to spam"})
}

func (h *FolderHandler) RemoveFromSpam(c *gin.Context) {
	var req emaildto.SpamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.RemoveFromSpam(c.Request.Context(), req.UserID, req.EmailID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "Email removed from spam"})
}

func (h *FolderHandler) GetTrash(c *gin.Context) {
	emails, err := h.emailUsecase.GetTrash(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.TrashResponse{TrashEmails: emails})
}

func (h *FolderHandler) MoveToTrash(c *gin.Context) {
	trash, err := h.emailUsecase.MoveToTrash(c.Request.Context(), c.Param("emailId"), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, trash)
}

func (h *FolderHandler) DeleteFromTrash(c *gin.Context) {
	if err := h.emailUsecase.DeleteFromTrash(c.Request.Context(), c.Param("trashId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "Email deleted forever"})
}

func (h *FolderHandler) DeleteSentEmail(c *gin.Context) {
	if err := h.emailUsecase.DeleteSentEmail(c.Request.Context(), c.Param("emailId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.MessageResponse{Message: "Sent email deleted"})
}
