// Package notify tells the site owner about comments waiting for moderation.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dfryer1193/racblog/blog/domain"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.To != ""
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier sends one e-mail per pending comment.
type MailNotifier struct {
	cfg      SMTPConfig
	adminURL string
	sender   mailSender
}

func NewMailNotifier(cfg SMTPConfig, siteBaseURL string) *MailNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &MailNotifier{
		cfg:      cfg,
		adminURL: strings.TrimRight(siteBaseURL, "/") + "/admin",
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (n *MailNotifier) message(post *domain.Post, comment *domain.Comment) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To)
	m.SetHeader("Subject", fmt.Sprintf("New comment awaiting approval: %s", post.Title))
	m.SetBody("text/html", fmt.Sprintf(`
		<p><strong>%s</strong> (%s) commented on <em>%s</em>:</p>
		<blockquote>%s</blockquote>
		<p><a href="%s">Review it in the admin dashboard</a></p>
	`,
		html.EscapeString(comment.Author),
		html.EscapeString(comment.Email),
		html.EscapeString(post.Title),
		html.EscapeString(comment.Content),
		n.adminURL,
	))
	return m
}

func (n *MailNotifier) CommentPending(_ context.Context, post *domain.Post, comment *domain.Comment) error {
	if err := n.sender.DialAndSend(n.message(post, comment)); err != nil {
		return fmt.Errorf("failed to send moderation e-mail: %w", err)
	}
	log.Info().Str("post", post.ID).Str("comment", comment.ID).Msg("Moderation e-mail sent")
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) CommentPending(context.Context, *domain.Post, *domain.Comment) error {
	return nil
}
