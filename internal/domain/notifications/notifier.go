package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrNoRecipient = errors.New("notification has no recipient")

type Mailer interface {
	Send(ctx context.Context, from, to, subject, html string) error
}

// Notifier renders the transactional emails and hands them to a Mailer.
// Every method returns the delivery error so callers can log it; none of
// the workflows that send mail fail because of it.
type Notifier struct {
	mailer Mailer
	from   string
	appURL string
}

func New(mailer Mailer, from, appURL string) *Notifier {
	return &Notifier{mailer: mailer, from: from, appURL: strings.TrimRight(appURL, "/")}
}

type Invite struct {
	Email            string
	InviterName      string
	InviterEmail     string
	OrganizationName string
	Role             string
	Token            string
}

func (n *Notifier) ReviewURL(reviewID string) string {
	return n.appURL + "/dashboard/reviews/" + url.PathEscape(reviewID)
}

func (n *Notifier) Welcome(ctx context.Context, email, name string) error {
	return n.send(ctx, email, subjectWelcome, TypeWelcome, map[string]string{
		"Name":         name,
		"DashboardURL": n.appURL + "/dashboard",
	})
}

func (n *Notifier) PasswordReset(ctx context.Context, email, token string) error {
	return n.send(ctx, email, subjectPasswordReset, TypePasswordReset, map[string]string{
		"ResetURL": n.appURL + "/reset-password?token=" + url.QueryEscape(token),
	})
}

func (n *Notifier) PasswordChanged(ctx context.Context, email string) error {
	return n.send(ctx, email, subjectPasswordChanged, TypePasswordChanged, map[string]string{
		"LoginURL": n.appURL + "/login",
	})
}

func (n *Notifier) ReviewCompleted(ctx context.Context, email, employeeName, period, reviewID string) error {
	subject := fmt.Sprintf("%s's Performance Review is Complete", employeeName)
	return n.send(ctx, email, subject, TypeReviewCompleted, map[string]string{
		"EmployeeName": employeeName,
		"ReviewPeriod": period,
		"ReviewURL":    n.ReviewURL(reviewID),
	})
}

func (n *Notifier) TeamInvite(ctx context.Context, invite Invite) error {
	role := invite.Role
	if role == "" {
		role = "member"
	}
	return n.send(ctx, invite.Email, subjectTeamInvite, TypeTeamInvite, map[string]string{
		"InviterName":      invite.InviterName,
		"InviterEmail":     invite.InviterEmail,
		"OrganizationName": invite.OrganizationName,
		"Role":             role,
		"AcceptURL":        n.appURL + "/invite?token=" + url.QueryEscape(invite.Token),
	})
}

func (n *Notifier) send(ctx context.Context, to, subject, kind string, data map[string]string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	html, err := Render(kind, data)
	if err != nil {
		return err
	}
	if n.mailer == nil {
		return nil
	}
	return n.mailer.Send(ctx, n.from, to, subject, html)
}

func Render(kind string, data any) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown notification type %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
