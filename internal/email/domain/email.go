package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Email is a synced or locally composed message.
// A row stays visible to the sender until DeletedBySender and to the receiver
// until DeletedByReceiver; it is purged once both are set.
type Email struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Subject           string     `json:"subject"`
	Body              string     `json:"body"`
	FromEmail         string     `json:"from_email" gorm:"index"`
	ToEmail           string     `json:"to_email" gorm:"index"`
	SentAt            *time.Time `json:"sent_at"`
	ReadAt            *time.Time `json:"read_at"`
	UserID            string     `json:"user_id" gorm:"index;type:varchar(36)"`
	DeletedBySender   bool       `json:"deleted_by_sender" gorm:"not null;default:false"`
	DeletedByReceiver bool       `json:"deleted_by_receiver" gorm:"not null;default:false"`
	ReplyToID         *string    `json:"reply_to_id" gorm:"index;type:varchar(36)"`
	IsDraft           bool       `json:"is_draft" gorm:"not null;default:false"`
	IsSpam            bool       `json:"is_spam" gorm:"not null;default:false"`
	GmailMessageID    *string    `json:"gmail_message_id" gorm:"uniqueIndex"`
	ThreadID          string     `json:"thread_id"`
	Labels            []Label    `json:"labels,omitempty" gorm:"many2many:email_labels;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// ProviderID returns the provider message id or "" for local-only rows.
func (e *Email) ProviderID() string {
	if e.GmailMessageID == nil {
		return ""
	}
	return *e.GmailMessageID
}

// Draft is an unsent draft. GmailDraftID is the provider's draft id and the
// dedup key for imported drafts.
type Draft struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string    `json:"user_id" gorm:"index;not null;type:varchar(36)"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	ToEmail      string    `json:"to_email"`
	LastEditedAt time.Time `json:"last_edited_at"`
	GmailDraftID *string   `json:"gmail_draft_id" gorm:"uniqueIndex"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *Draft) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// Label is a named tag. OwnerID is empty for labels in the shared namespace.
type Label struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string    `json:"owner_id" gorm:"uniqueIndex:idx_label_owner_name;not null;default:''"`
	Name      string    `json:"name" gorm:"uniqueIndex:idx_label_owner_name;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Label) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// EmailLabel links an Email to a Label. The pair is the primary key.
type EmailLabel struct {
	EmailID   string    `json:"email_id" gorm:"primaryKey;type:varchar(36)"`
	LabelID   string    `json:"label_id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
}

// SpamEmail marks an Email as spam for a user.
type SpamEmail struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_spam_user_email;not null;type:varchar(36)"`
	EmailID   string    `json:"email_id" gorm:"uniqueIndex:idx_spam_user_email;not null;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *SpamEmail) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SentEmail mirrors a message from the provider's sent folder.
type SentEmail struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string     `json:"user_id" gorm:"index;not null;type:varchar(36)"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	FromEmail      string     `json:"from_email"`
	ToEmail        string     `json:"to_email"`
	SentAt         *time.Time `json:"sent_at"`
	GmailMessageID *string    `json:"gmail_message_id" gorm:"uniqueIndex"`
	ThreadID       string     `json:"thread_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s *SentEmail) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TrashEmail marks an Email as trashed for a user.
type TrashEmail struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;not null;type:varchar(36)"`
	EmailID   string    `json:"email_id" gorm:"index;not null;type:varchar(36)"`
	DeletedAt time.Time `json:"deleted_at"`
}

func (t *TrashEmail) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// Label namespaces.
const (
	LabelScopeGlobal = "global"
	LabelScopeUser   = "user"
)

// LabelOwner returns the OwnerID labels of userID are stored under.
func LabelOwner(scope, userID string) string {
	if scope == LabelScopeUser {
		return userID
	}
	return ""
}
