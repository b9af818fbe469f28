// Package mail delivers customer receipts.
package mail

import (
	"context"
	"errors"
	"fmt"

	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const senderName = "minishop"

type sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier sends receipts through the SendGrid v3 API.
type SendGridNotifier struct {
	client sender
	from   string
}

func NewSendGridNotifier(apiKey, from string) (*SendGridNotifier, error) {
	if apiKey == "" {
		return nil, errors.New("mail: sendgrid api key is empty")
	}
	if from == "" {
		return nil, errors.New("mail: from address is empty")
	}
	return &SendGridNotifier{client: sendgrid.NewSendClient(apiKey), from: from}, nil
}

func (n *SendGridNotifier) SendReceipt(ctx context.Context, r apppayment.Receipt) error {
	if r.ToEmail == "" {
		return errors.New("mail: receipt has no recipient")
	}
	subject, text, html := render(r)
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail(senderName, n.from),
		subject,
		sgmail.NewEmail(r.ToName, r.ToEmail),
		text,
		html,
	)

	resp, err := n.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("mail: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mail: sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}

func render(r apppayment.Receipt) (subject, text, html string) {
	subject = fmt.Sprintf("Your minishop order %s", r.OrderID)
	text = fmt.Sprintf("Hi %s,\n\nWe received your payment of %s %s for order %s.\nPayment reference: %s\n",
		r.ToName, r.Total, r.Currency, r.OrderID, r.ProviderReference)
	html = fmt.Sprintf("<pre>%s</pre>", text)
	return subject, text, html
}

// LogNotifier writes receipts to the log when no mail provider is configured.
type LogNotifier struct {
	log observability.Logger
}

func NewLogNotifier(tel observability.Observability) *LogNotifier {
	return &LogNotifier{log: observability.OrNop(tel).Logger().With(observability.F("component", "receipt_log"))}
}

func (n *LogNotifier) SendReceipt(ctx context.Context, r apppayment.Receipt) error {
	logctx.FromOr(ctx, n.log).Info("receipt_not_sent",
		observability.F("order_id", r.OrderID),
		observability.F("to", r.ToEmail),
		observability.F("total", r.Total.String()),
		observability.F("currency", r.Currency),
	)
	return nil
}
