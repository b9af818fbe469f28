package mail

import (
	"context"
	"errors"
	"testing"

	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	resp *rest.Response
	err  error
	sent []*sgmail.SGMailV3
}

func (s *fakeSender) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	s.sent = append(s.sent, email)
	return s.resp, s.err
}

func receipt() apppayment.Receipt {
	return apppayment.Receipt{OrderID: "o-1", ToName: "Ada", ToEmail: "ada@example.com", Total: 2700, Currency: "USD", ProviderReference: "ps_1"}
}

func TestSendGridNotifierSendsReceipt(t *testing.T) {
	fake := &fakeSender{resp: &rest.Response{StatusCode: 202}}
	n := &SendGridNotifier{client: fake, from: "shop@example.com"}

	require.NoError(t, n.SendReceipt(context.Background(), receipt()))
	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, "shop@example.com", msg.From.Address)
	assert.Equal(t, "Your minishop order o-1", msg.Subject)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "ada@example.com", msg.Personalizations[0].To[0].Address)
	assert.Contains(t, msg.Content[0].Value, "27.00 USD")
}

func TestSendGridNotifierErrors(t *testing.T) {
	n := &SendGridNotifier{client: &fakeSender{resp: &rest.Response{StatusCode: 401, Body: "bad key"}}, from: "shop@example.com"}
	err := n.SendReceipt(context.Background(), receipt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")

	n.client = &fakeSender{err: errors.New("dial tcp: timeout")}
	assert.Error(t, n.SendReceipt(context.Background(), receipt()))

	r := receipt()
	r.ToEmail = ""
	assert.Error(t, n.SendReceipt(context.Background(), r))

	_, err = NewSendGridNotifier("", "shop@example.com")
	assert.Error(t, err)
}

func TestLogNotifierNeverFails(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).SendReceipt(context.Background(), receipt()))
}
