package testutil

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	emaildomain "mailmirror-backend/internal/email/domain"
)

// LabelChange records a ModifyLabels call.
type LabelChange struct {
	MessageID string
	Add       []string
	Remove    []string
}

type failure struct {
	err   error
	times int // < 0 fails forever
}

// FakeProvider is an in-memory mail provider. Operation keys used by Fail are
// "list:<label>", "get:<id>", "drafts", "draft:<id>", "labels", "modify:<id>",
// "send" and "delete:<id>".
type FakeProvider struct {
	mu sync.Mutex

	messages map[string]*emaildomain.ProviderMessage
	folders  map[string][]string
	drafts   []*emaildomain.ProviderDraft
	labels   []emaildomain.ProviderLabel
	failures map[string]*failure

	Calls    map[string]int
	Changes  []LabelChange
	Outgoing []*emaildomain.OutgoingMessage
	Deleted  []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		messages: map[string]*emaildomain.ProviderMessage{},
		folders:  map[string][]string{},
		failures: map[string]*failure{},
		Calls:    map[string]int{},
	}
}

// Message builds a provider message with a plain text body.
func Message(id, subject, from, to, date, body string, labelIDs ...string) *emaildomain.ProviderMessage {
	headers := []emaildomain.ProviderHeader{
		{Name: "Subject", Value: subject},
		{Name: "From", Value: from},
	}
	if to != "" {
		headers = append(headers, emaildomain.ProviderHeader{Name: "To", Value: to})
	}
	if date != "" {
		headers = append(headers, emaildomain.ProviderHeader{Name: "Date", Value: date})
	}
	return &emaildomain.ProviderMessage{
		ID:       id,
		ThreadID: "t-" + id,
		LabelIDs: labelIDs,
		Snippet:  body,
		Headers:  headers,
		Payload: emaildomain.ProviderPart{
			MimeType: "text/plain",
			Data:     base64.URLEncoding.EncodeToString([]byte(body)),
		},
	}
}

// AddMessage stores msg and lists it in every label it carries.
func (p *FakeProvider) AddMessage(msg *emaildomain.ProviderMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[msg.ID] = msg
	for _, l := range msg.LabelIDs {
		p.folders[l] = append(p.folders[l], msg.ID)
	}
}

// RemoveMessage forgets the message body but keeps its folder listings.
func (p *FakeProvider) RemoveMessage(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.messages, id)
}

func (p *FakeProvider) AddDraft(d *emaildomain.ProviderDraft) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts = append(p.drafts, d)
}

func (p *FakeProvider) SetLabels(labels ...emaildomain.ProviderLabel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = labels
}

// Fail makes op return err for the next times calls, or forever when times < 0.
func (p *FakeProvider) Fail(op string, err error, times int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = &failure{err: err, times: times}
}

func (p *FakeProvider) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[op]
}

// enter counts the call and returns the injected failure, if any. Caller holds mu.
func (p *FakeProvider) enter(op string) error {
	p.Calls[op]++
	f, ok := p.failures[op]
	if !ok || f.times == 0 {
		return nil
	}
	if f.times > 0 {
		f.times--
	}
	return f.err
}

func notFound(op, id string) error {
	return &emaildomain.ProviderError{Op: op, Code: 404, Class: emaildomain.ProviderNotFound, Err: fmt.Errorf("%s not found", id)}
}

func (p *FakeProvider) ListMessageIDs(ctx context.Context, creds emaildomain.Credentials, labelID string, max int64) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("list:" + labelID); err != nil {
		return nil, err
	}
	ids := p.folders[labelID]
	if max > 0 && int64(len(ids)) > max {
		ids = ids[:max]
	}
	return append([]string(nil), ids...), nil
}

func (p *FakeProvider) GetMessage(ctx context.Context, creds emaildomain.Credentials, id string) (*emaildomain.ProviderMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("get:" + id); err != nil {
		return nil, err
	}
	msg, ok := p.messages[id]
	if !ok {
		return nil, notFound("messages.get", id)
	}
	return msg, nil
}

func (p *FakeProvider) ListDraftIDs(ctx context.Context, creds emaildomain.Credentials, max int64) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("drafts"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(p.drafts))
	for _, d := range p.drafts {
		if max > 0 && int64(len(ids)) >= max {
			break
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (p *FakeProvider) GetDraft(ctx context.Context, creds emaildomain.Credentials, id string) (*emaildomain.ProviderDraft, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("draft:" + id); err != nil {
		return nil, err
	}
	for _, d := range p.drafts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, notFound("drafts.get", id)
}

func (p *FakeProvider) ListLabels(ctx context.Context, creds emaildomain.Credentials) ([]emaildomain.ProviderLabel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("labels"); err != nil {
		return nil, err
	}
	return append([]emaildomain.ProviderLabel(nil), p.labels...), nil
}

func (p *FakeProvider) ModifyLabels(ctx context.Context, creds emaildomain.Credentials, messageID string, add, remove []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("modify:" + messageID); err != nil {
		return err
	}
	p.Changes = append(p.Changes, LabelChange{MessageID: messageID, Add: add, Remove: remove})
	return nil
}

func (p *FakeProvider) SendMessage(ctx context.Context, creds emaildomain.Credentials, msg *emaildomain.OutgoingMessage) (*emaildomain.ProviderMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("send"); err != nil {
		return nil, err
	}
	p.Outgoing = append(p.Outgoing, msg)
	id := fmt.Sprintf("sent-%d", len(p.Outgoing))
	return &emaildomain.ProviderMessage{ID: id, ThreadID: "t-" + id, LabelIDs: []string{emaildomain.LabelSent}}, nil
}

func (p *FakeProvider) DeleteMessage(ctx context.Context, creds emaildomain.Credentials, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("delete:" + id); err != nil {
		return err
	}
	p.Deleted = append(p.Deleted, id)
	return nil
}
