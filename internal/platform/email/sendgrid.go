package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGridMailer struct {
	apiKey   string
	host     string
	fromName string
}

func NewSendGrid(apiKey, host, fromName string) *SendGridMailer {
	if host == "" {
		host = sendGridHost
	}
	return &SendGridMailer{apiKey: apiKey, host: host, fromName: fromName}
}

func (s *SendGridMailer) Send(ctx context.Context, from, to, subject, html string) error {
	message := mail.NewSingleEmail(mail.NewEmail(s.fromName, from), subject, mail.NewEmail("", to), "", html)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
