package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

const mailTimeout = 10 * time.Second

// Mailer はメール送信の抽象です
type Mailer interface {
	Send(ctx context.Context, to []string, subject, text string) error
}

// MailerSendMailer は MailerSend API でメールを送信します
type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

// NewMailerSendMailer は新しいMailerSendMailerを作成します
func NewMailerSendMailer(apiKey, fromName, fromEmail string) (*MailerSendMailer, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, errors.New("mailer disabled (missing MAILERSEND_API_KEY or MAILER_FROM)")
	}
	return &MailerSendMailer{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}, nil
}

func (m *MailerSendMailer) Send(ctx context.Context, to []string, subject, text string) error {
	if len(to) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()

	recipients := make([]mailersend.Recipient, 0, len(to))
	for _, email := range to {
		recipients = append(recipients, mailersend.Recipient{Email: email})
	}

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients(recipients)
	msg.SetSubject(subject)
	msg.SetText(text)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	logger.DebugContext(ctx, "email sent", "message_id", res.Header.Get("X-Message-Id"))
	return nil
}

// DevMailer は送信せずにログへ出力します
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, to []string, subject, text string) error {
	logger.InfoContext(ctx, "[DEV MAIL] email",
		"to", strings.Join(to, ","),
		"subject", subject,
		"text", text,
	)
	return nil
}

// EmailChannel は通知をメールで配信します
type EmailChannel struct {
	mailer Mailer
}

func NewEmailChannel(mailer Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, _ model.Developer, n model.Notification) error {
	msg := n.ToMessage()
	return c.mailer.Send(ctx, msg.Recipients, msg.Subject, msg.Text)
}
