// Package contact forwards contact-form submissions to an automation webhook.
package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// DefaultTimeout bounds a single webhook delivery.
const DefaultTimeout = 10 * time.Second

const defaultSource = "website"

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("contact webhook is not configured")

// Submission is what a visitor sends from the contact form.
type Submission struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Validate trims the fields and checks the required ones.
func (s Submission) Validate() (Submission, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
	if s.Name == "" {
		return s, domain.Invalid("name", "must not be empty")
	}
	if !domain.ValidEmail(s.Email) {
		return s, domain.Invalid("email", "must be a valid e-mail address")
	}
	return s, nil
}

type doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

// Forwarder POSTs submissions as JSON to a fixed URL.
type Forwarder struct {
	url     string
	client  doer
	timeout time.Duration
	now     func() time.Time
}

func NewForwarder(url string) *Forwarder {
	return &Forwarder{
		url:     url,
		client:  &fasthttp.Client{Name: "racblog-contact"},
		timeout: DefaultTimeout,
		now:     time.Now,
	}
}

// Configured reports whether a webhook URL is set.
func (f *Forwarder) Configured() bool {
	return f.url != ""
}

// Submit delivers one submission. Any HTTP response counts as delivered;
// only transport failures are returned.
func (f *Forwarder) Submit(ctx context.Context, sub Submission) error {
	sub, err := sub.Validate()
	if err != nil {
		return err
	}
	if !f.Configured() {
		return domain.Transport("contact", ErrNotConfigured)
	}
	if sub.Timestamp == "" {
		sub.Timestamp = f.now().UTC().Format(time.RFC3339)
	}
	if sub.Source == "" {
		sub.Source = defaultSource
	}

	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Transport("contact", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		log.Error().Err(err).Msg("Failed to deliver contact submission")
		return domain.Transport("contact", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		log.Warn().Int("status", status).Msg("Contact webhook returned non-success status")
		return nil
	}
	log.Info().Str("source", sub.Source).Msg("Contact submission delivered")
	return nil
}
