package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	emaildomain "mailmirror-backend/internal/email/domain"
	"mailmirror-backend/pkg/logger"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

type Config struct {
	ClientID     string
	ClientSecret string
	RateLimit    float64 // requests per second, <= 0 disables limiting
	RateBurst    int

	// Endpoint and TokenURL override the Google defaults (tests).
	Endpoint string
	TokenURL string
}

// Service is the Gmail REST client. It implements emaildomain.MailProvider.
type Service struct {
	oauth    *oauth2.Config
	endpoint string
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker
	log      logger.Logger

	mu      sync.Mutex
	sources map[string]*cachedSource // keyed by refresh token
}

type cachedSource struct {
	src    oauth2.TokenSource
	seed   string
	notify *notifyTokenSource
}

// serves reports whether the cached source already knows accessToken, either
// as the token it was built with or as one it refreshed to.
func (c *cachedSource) serves(accessToken string) bool {
	return accessToken == c.seed || accessToken == c.notify.accessToken()
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	callback emaildomain.TokenUpdateFunc
	log      logger.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := s.current.AccessToken != t.AccessToken
	if changed {
		s.current = t
	}
	s.mu.Unlock()

	if changed && s.callback != nil {
		if err := s.callback(t); err != nil {
			s.log.Warnf("[Gmail] failed to store refreshed token: %v", err)
		}
	}
	return t, nil
}

func (s *notifyTokenSource) accessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.AccessToken
}

func NewService(cfg Config, log logger.Logger) *Service {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Only server-side trouble counts against the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !emaildomain.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes: []string{
				gmail.GmailReadonlyScope,
				gmail.GmailSendScope,
				gmail.GmailModifyScope,
			},
		},
		endpoint: cfg.Endpoint,
		limiter:  rate.NewLimiter(limit, burst),
		cb:       gobreaker.NewCircuitBreaker(cbSettings),
		log:      log,
		sources:  make(map[string]*cachedSource),
	}
}

// tokenSource returns a refreshing token source for creds. Sources are shared
// per refresh token so one refresh serves every later call. A source is
// replaced when creds carry an access token it has never seen, which happens
// after new credentials are saved under the same refresh token.
func (s *Service) tokenSource(creds emaildomain.Credentials) oauth2.TokenSource {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}
	if creds.RefreshToken == "" {
		return oauth2.StaticTokenSource(token)
	}
	// Only force refresh if we don't know when the token expires
	if token.Expiry.IsZero() {
		token.Expiry = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.sources[creds.RefreshToken]; ok && cached.serves(creds.AccessToken) {
		return cached.src
	}

	notify := &notifyTokenSource{
		src:      s.oauth.TokenSource(context.Background(), token),
		current:  token,
		callback: creds.OnRefresh,
		log:      s.log,
	}
	cached := &cachedSource{
		src:    oauth2.ReuseTokenSource(token, notify),
		seed:   creds.AccessToken,
		notify: notify,
	}
	s.sources[creds.RefreshToken] = cached
	return cached.src
}

// client creates a Gmail service authenticated as the credential owner
func (s *Service) client(ctx context.Context, creds emaildomain.Credentials) (*gmail.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, s.tokenSource(creds)))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}
	return srv, nil
}

// execute runs one API call behind the rate limiter and circuit breaker and
// classifies its error.
func execute[T any](ctx context.Context, s *Service, creds emaildomain.Credentials, op string, fn func(srv *gmail.Service) (T, error)) (T, error) {
	var zero T

	if err := s.limiter.Wait(ctx); err != nil {
		return zero, classify(op, err)
	}

	srv, err := s.client(ctx, creds)
	if err != nil {
		return zero, classify(op, err)
	}

	out, err := s.cb.Execute(func() (interface{}, error) {
		res, err := fn(srv)
		if err != nil {
			return nil, classify(op, err)
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &emaildomain.ProviderError{Op: op, Class: emaildomain.ProviderTransient, Retryable: true, Err: err}
		}
		return zero, err
	}
	return out.(T), nil
}

func (s *Service) ListMessageIDs(ctx context.Context, creds emaildomain.Credentials, labelID string, max int64) ([]string, error) {
	return execute(ctx, s, creds, "list messages", func(srv *gmail.Service) ([]string, error) {
		resp, err := srv.Users.Messages.List(user).LabelIds(labelID).MaxResults(max).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return ids, nil
	})
}

func (s *Service) GetMessage(ctx context.Context, creds emaildomain.Credentials, id string) (*emaildomain.ProviderMessage, error) {
	return execute(ctx, s, creds, "get message", func(srv *gmail.Service) (*emaildomain.ProviderMessage, error) {
		msg, err := srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return convertMessage(msg), nil
	})
}

func (s *Service) ListDraftIDs(ctx context.Context, creds emaildomain.Credentials, max int64) ([]string, error) {
	return execute(ctx, s, creds, "list drafts", func(srv *gmail.Service) ([]string, error) {
		resp, err := srv.Users.Drafts.List(user).MaxResults(max).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(resp.Drafts))
		for _, d := range resp.Drafts {
			ids = append(ids, d.Id)
		}
		return ids, nil
	})
}

func (s *Service) GetDraft(ctx context.Context, creds emaildomain.Credentials, id string) (*emaildomain.ProviderDraft, error) {
	return execute(ctx, s, creds, "get draft", func(srv *gmail.Service) (*emaildomain.ProviderDraft, error) {
		d, err := srv.Users.Drafts.Get(user, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		draft := &emaildomain.ProviderDraft{ID: d.Id}
		if d.Message != nil {
			draft.Message = convertMessage(d.Message)
		}
		return draft, nil
	})
}

func (s *Service) ListLabels(ctx context.Context, creds emaildomain.Credentials) ([]emaildomain.ProviderLabel, error) {
	return execute(ctx, s, creds, "list labels", func(srv *gmail.Service) ([]emaildomain.ProviderLabel, error) {
		resp, err := srv.Users.Labels.List(user).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		labels := make([]emaildomain.ProviderLabel, 0, len(resp.Labels))
		for _, l := range resp.Labels {
			labels = append(labels, emaildomain.ProviderLabel{ID: l.Id, Name: l.Name, Type: l.Type})
		}
		return labels, nil
	})
}

func (s *Service) ModifyLabels(ctx context.Context, creds emaildomain.Credentials, messageID string, add, remove []string) error {
	_, err := execute(ctx, s, creds, "modify labels", func(srv *gmail.Service) (struct{}, error) {
		req := &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}
		_, err := srv.Users.Messages.Modify(user, messageID, req).Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

func (s *Service) SendMessage(ctx context.Context, creds emaildomain.Credentials, out *emaildomain.OutgoingMessage) (*emaildomain.ProviderMessage, error) {
	raw, err := composeMessage(out)
	if err != nil {
		return nil, errors.Wrap(emaildomain.ErrValidation, err.Error())
	}

	return execute(ctx, s, creds, "send message", func(srv *gmail.Service) (*emaildomain.ProviderMessage, error) {
		msg := &gmail.Message{
			Raw: base64.URLEncoding.EncodeToString(raw),
		}
		sent, err := srv.Users.Messages.Send(user, msg).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return &emaildomain.ProviderMessage{ID: sent.Id, ThreadID: sent.ThreadId, LabelIDs: sent.LabelIds}, nil
	})
}

func (s *Service) DeleteMessage(ctx context.Context, creds emaildomain.Credentials, id string) error {
	_, err := execute(ctx, s, creds, "delete message", func(srv *gmail.Service) (struct{}, error) {
		return struct{}{}, srv.Users.Messages.Delete(user, id).Context(ctx).Do()
	})
	return err
}

// composeMessage renders a single text/plain RFC 5322 message.
func composeMessage(out *emaildomain.OutgoingMessage) ([]byte, error) {
	to, err := mail.ParseAddressList(out.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %v", out.To, err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	if out.From != "" {
		from, err := mail.ParseAddress(out.From)
		if err != nil {
			return nil, fmt.Errorf("invalid sender %q: %v", out.From, err)
		}
		h.SetAddressList("From", []*mail.Address{from})
	}
	h.SetAddressList("To", to)
	h.SetSubject(out.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, out.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func convertMessage(msg *gmail.Message) *emaildomain.ProviderMessage {
	out := &emaildomain.ProviderMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		Snippet:      msg.Snippet,
		InternalDate: msg.InternalDate,
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, emaildomain.ProviderHeader{Name: h.Name, Value: h.Value})
		}
		out.Payload = convertPart(msg.Payload)
	}
	return out
}

func convertPart(part *gmail.MessagePart) emaildomain.ProviderPart {
	p := emaildomain.ProviderPart{MimeType: part.MimeType}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, "Content-Type") {
			p.Charset = contentCharset(h.Value)
			break
		}
	}
	if part.Body != nil {
		p.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		if child != nil {
			p.Parts = append(p.Parts, convertPart(child))
		}
	}
	return p
}

// contentCharset extracts the charset parameter of a Content-Type value.
func contentCharset(value string) string {
	var h message.Header
	h.Set("Content-Type", value)
	_, params, err := h.ContentType()
	if err != nil {
		return ""
	}
	return params["charset"]
}

// classify maps a Gmail or transport error onto a ProviderError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *emaildomain.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	perr := &emaildomain.ProviderError{Op: op, Err: err}

	var apiErr *googleapi.Error
	var tokenErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &apiErr):
		perr.Code = apiErr.Code
		switch {
		case apiErr.Code == 401:
			perr.Class = emaildomain.ProviderAuth
		case apiErr.Code == 403 && isRateLimited(apiErr):
			perr.Class, perr.Retryable = emaildomain.ProviderRateLimited, true
		case apiErr.Code == 403:
			perr.Class = emaildomain.ProviderAuth
		case apiErr.Code == 404:
			perr.Class = emaildomain.ProviderNotFound
		case apiErr.Code == 429:
			perr.Class, perr.Retryable = emaildomain.ProviderRateLimited, true
		case apiErr.Code >= 500:
			perr.Class, perr.Retryable = emaildomain.ProviderTransient, true
		default:
			perr.Class = emaildomain.ProviderRejected
		}
	case errors.As(err, &tokenErr):
		// The refresh token was revoked or the client is misconfigured.
		perr.Class = emaildomain.ProviderAuth
		if tokenErr.Response != nil {
			perr.Code = tokenErr.Response.StatusCode
		}
	case errors.Is(err, context.Canceled):
		perr.Class = emaildomain.ProviderTransient
	default:
		// Transport failures and per-call timeouts.
		perr.Class, perr.Retryable = emaildomain.ProviderTransient, true
	}
	return perr
}

func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return strings.Contains(apiErr.Message, "Rate Limit")
}
