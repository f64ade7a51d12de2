package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is called when the provider client refreshes a token.
type TokenUpdateFunc func(token *oauth2.Token) error

// Credentials authenticate provider calls for one user. A zero Expiry with a
// refresh token present forces a refresh on first use.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	OnRefresh    TokenUpdateFunc
}

type ProviderHeader struct {
	Name  string
	Value string
}

// ProviderPart is one node of a message's MIME tree. Data is the body as the
// provider transmits it (base64url). Charset is the part's Content-Type
// charset parameter, empty when the part declares none.
type ProviderPart struct {
	MimeType string
	Charset  string
	Data     string
	Parts    []ProviderPart
}

type ProviderMessage struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Snippet      string
	InternalDate int64 // ms since epoch
	Headers      []ProviderHeader
	Payload      ProviderPart
}

type ProviderDraft struct {
	ID      string
	Message *ProviderMessage
}

type ProviderLabel struct {
	ID   string
	Name string
	Type string // "system" or "user"
}

type OutgoingMessage struct {
	From    string
	To      string
	Subject string
	Body    string
}

// MailProvider is the external mail service surface.
type MailProvider interface {
	ListMessageIDs(ctx context.Context, creds Credentials, labelID string, max int64) ([]string, error)
	GetMessage(ctx context.Context, creds Credentials, id string) (*ProviderMessage, error)
	ListDraftIDs(ctx context.Context, creds Credentials, max int64) ([]string, error)
	GetDraft(ctx context.Context, creds Credentials, id string) (*ProviderDraft, error)
	ListLabels(ctx context.Context, creds Credentials) ([]ProviderLabel, error)
	ModifyLabels(ctx context.Context, creds Credentials, messageID string, add, remove []string) error
	SendMessage(ctx context.Context, creds Credentials, msg *OutgoingMessage) (*ProviderMessage, error)
	DeleteMessage(ctx context.Context, creds Credentials, id string) error
}

// Provider folder label ids.
const (
	LabelInbox = "INBOX"
	LabelSpam  = "SPAM"
	LabelSent  = "SENT"
)
