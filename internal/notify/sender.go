package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wichananm65/pantry-shop-backend/internal/logger"
)

type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
	ReplyTo string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no email provider is configured.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.Info("email (not delivered)", "to", m.To, "subject", m.Subject, "bytes", len(m.HTML))
	return nil
}

type SendGridConfig struct {
	APIKey     string
	BaseURL    string
	FromEmail  string
	FromName   string
	Timeout    time.Duration
	MaxRetries int
}

type SendGridSender struct {
	cfg        SendGridConfig
	httpClient *http.Client
	log        *logger.Logger
	sleep      func(time.Duration)
}

func NewSendGridSender(cfg SendGridConfig, log *logger.Logger) (*SendGridSender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SendGridSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("client", "SendGrid"),
		sleep:      time.Sleep,
	}, nil
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	ReplyTo          *emailAddress     `json:"reply_to,omitempty"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

// HTTPError is a non-2xx reply from the mail API.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, body)
}

func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (s *SendGridSender) Send(ctx context.Context, m Message) error {
	from := emailAddress{Email: s.cfg.FromEmail, Name: s.cfg.FromName}
	if m.From != "" {
		from = emailAddress{Email: m.From, Name: s.cfg.FromName}
	}
	if from.Email == "" {
		return errors.New("sendgrid: from address required (set SENDGRID_FROM_EMAIL)")
	}
	if strings.TrimSpace(m.To) == "" {
		return errors.New("sendgrid: recipient required")
	}
	wire := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: m.To}}}},
		From:             from,
		Subject:          m.Subject,
		Content:          []mailContent{{Type: "text/html", Value: m.HTML}},
	}
	if m.ReplyTo != "" {
		wire.ReplyTo = &emailAddress{Email: m.ReplyTo}
	}

	backoff := time.Second
	for attempt := 0; ; attempt++ {
		err := s.doOnce(ctx, wire)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= s.cfg.MaxRetries || ctx.Err() != nil {
			return err
		}
		wait := backoff
		var he *HTTPError
		if errors.As(err, &he) && he.RetryAfter > 0 {
			wait = he.RetryAfter
		}
		s.log.Warn("sendgrid request retrying", "attempt", attempt+1, "sleep", wait.String(), "error", err.Error())
		s.sleep(wait)
		backoff *= 2
	}
}

func (s *SendGridSender) doOnce(ctx context.Context, body mailSendRequest) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v3/mail/send", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		he.RetryAfter = time.Duration(secs) * time.Second
	}
	return he
}
