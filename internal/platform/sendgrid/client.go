package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

const mailSendEndpoint = "/v3/mail/send"

type Client interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	FromEmail  string
	FromName   string
	MaxRetries int
	// SubjectPrefix is prepended to every subject, e.g. "[TrainHub] ".
	SubjectPrefix string
}

type Message struct {
	To         string
	ToName     string
	Subject    string
	Text       string
	HTML       string
	Categories []string
}

type Result struct {
	StatusCode int
	MessageID  string
}

// New returns a SendGrid-backed client, or a log-only client when no API key is configured
// so local runs never hit the provider.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("SENDGRID_API_KEY not set; emails will be logged, not sent")
		return &logClient{log: log.With("client", "LogMailer")}, nil
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &client{
		log:     log.With("client", "SendGridClient"),
		cfg:     cfg,
		from:    sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		backoff: time.Second,
	}, nil
}

type client struct {
	log     *logger.Logger
	cfg     Config
	from    *sgmail.Email
	backoff time.Duration
}

func (c *client) build(msg Message) (*sgmail.SGMailV3, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, fmt.Errorf("sendgrid: recipient required")
	}
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		return nil, fmt.Errorf("sendgrid: subject required")
	}
	text, html := strings.TrimSpace(msg.Text), strings.TrimSpace(msg.HTML)
	if text == "" && html == "" {
		return nil, fmt.Errorf("sendgrid: text or html content required")
	}

	p := sgmail.NewPersonalization()
	p.Subject = c.cfg.SubjectPrefix + subject
	p.AddTos(sgmail.NewEmail(strings.TrimSpace(msg.ToName), to))

	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.AddPersonalizations(p)
	// SendGrid requires text/plain to precede text/html.
	if text != "" {
		m.AddContent(sgmail.NewContent("text/plain", text))
	}
	if html != "" {
		m.AddContent(sgmail.NewContent("text/html", html))
	}
	if len(msg.Categories) > 0 {
		m.AddCategories(msg.Categories...)
	}
	return m, nil
}

func (c *client) Send(ctx context.Context, msg Message) (*Result, error) {
	m, err := c.build(msg)
	if err != nil {
		return nil, err
	}
	body := sgmail.GetRequestBody(m)

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := sg.GetRequest(c.cfg.APIKey, mailSendEndpoint, c.cfg.BaseURL)
		req.Method = rest.Post
		req.Body = body

		resp, err := sg.MakeRequestWithContext(ctx, req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Result{StatusCode: resp.StatusCode, MessageID: header(resp, "X-Message-Id")}, nil
		}
		if err == nil {
			err = newHTTPError(resp)
		}
		if !retryable(err) || attempt >= c.cfg.MaxRetries {
			return nil, err
		}
		wait := retryAfter(resp, backoff)
		c.log.Warn("SendGrid request retrying", "attempt", attempt+1, "max_retries", c.cfg.MaxRetries, "sleep", wait.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
}

// HTTPError is a non-2xx answer from the mail send endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, e.Message)
}

func newHTTPError(resp *rest.Response) *HTTPError {
	he := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(resp.Body)}
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal([]byte(resp.Body), &parsed) == nil && len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
		he.Message = parsed.Errors[0].Message
	}
	if he.Message == "" {
		he.Message = http.StatusText(resp.StatusCode)
	}
	if len(he.Message) > 1000 {
		he.Message = he.Message[:1000] + "..."
	}
	return he
}

// Retryable reports whether a Send error is worth another attempt later.
func Retryable(err error) bool { return retryable(err) }

func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func header(resp *rest.Response, key string) string {
	if resp == nil {
		return ""
	}
	for k, v := range resp.Headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	}
	return ""
}

func retryAfter(resp *rest.Response, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(header(resp, "Retry-After")); err == nil && secs > 0 {
		d := time.Duration(secs) * time.Second
		if d > 30*time.Second {
			d = 30 * time.Second
		}
		return d
	}
	return fallback
}

type logClient struct {
	log *logger.Logger
}

func (c *logClient) Send(_ context.Context, msg Message) (*Result, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("sendgrid: recipient required")
	}
	c.log.Info("email (not sent)", "to", msg.To, "subject", msg.Subject)
	return &Result{StatusCode: http.StatusAccepted}, nil
}
