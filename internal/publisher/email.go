package publisher

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

// MailSender is the subset of *gomail.Dialer used for delivery.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailPublisher sends one SMTP message per recipient. Media assets are linked
// from the body rather than attached, since only their URLs are known.
type EmailPublisher struct {
	Sender   MailSender
	FromAddr string
	FromName string
}

func NewEmailPublisher(host string, port int, username, password, fromAddr, fromName string) *EmailPublisher {
	return &EmailPublisher{
		Sender:   gomail.NewDialer(host, port, username, password),
		FromAddr: fromAddr,
		FromName: fromName,
	}
}

func (p *EmailPublisher) Publish(ctx context.Context, content model.RenderedContent, metadata map[string]any, recipient *model.Recipient) error {
	if recipient == nil || strings.TrimSpace(recipient.Email) == "" {
		return errors.New("recipient has no email address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fromAddr, fromName := p.FromAddr, p.FromName
	if v, _ := metadata[model.MetaSenderAddress].(string); strings.TrimSpace(v) != "" {
		fromAddr = v
	}
	if v, _ := metadata[model.MetaSenderName].(string); strings.TrimSpace(v) != "" {
		fromName = v
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", fromAddr, fromName)
	msg.SetAddressHeader("To", recipient.Email, recipient.Name)
	msg.SetHeader("Subject", content.Subject)
	msg.SetBody("text/plain", content.Body)
	msg.AddAlternative("text/html", emailHTML(content, metadata))

	// gomail has no context support; run the dial in the background and stop
	// waiting once ctx is done.
	done := make(chan error, 1)
	go func() { done <- p.Sender.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func emailHTML(content model.RenderedContent, metadata map[string]any) string {
	var b strings.Builder
	if preheader, _ := metadata[model.MetaPreheader].(string); preheader != "" {
		fmt.Fprintf(&b, `<span style="display:none;max-height:0;overflow:hidden">%s</span>`, html.EscapeString(preheader))
	}
	for _, para := range strings.Split(content.Body, "\n") {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(para))
	}
	for _, asset := range content.MediaAssets {
		if asset.Kind == model.MediaImage {
			fmt.Fprintf(&b, `<p><img src="%s" style="max-width:100%%"></p>`, html.EscapeString(asset.URL))
			continue
		}
		fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, html.EscapeString(asset.URL), html.EscapeString(asset.URL))
	}
	return b.String()
}
