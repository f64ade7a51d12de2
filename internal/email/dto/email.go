package dto

import (
	emaildomain "mailmirror-backend/internal/email/domain"
)

type EmailsResponse struct {
	Emails []emaildomain.Email `json:"emails"`
}

type SendEmailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type ReplyRequest struct {
	Subject   string `json:"subject"`
	Body      string `json:"body" binding:"required"`
	FromEmail string `json:"fromEmail" binding:"required"`
	ToEmail   string `json:"toEmail" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
}

type ThreadResponse struct {
	Email   *emaildomain.Email  `json:"email"`
	Replies []emaildomain.Email `json:"replies"`
}

type SpamRequest struct {
	UserID  string `json:"userId" binding:"required"`
	EmailID string `json:"emailId" binding:"required"`
}

type CreateLabelRequest struct {
	Name   string `json:"name" binding:"required"`
	UserID string `json:"userId"`
}

type LabelEmailRequest struct {
	LabelID string `json:"labelId" binding:"required"`
}

type TrashResponse struct {
	TrashEmails []emaildomain.Email `json:"trashEmails"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
