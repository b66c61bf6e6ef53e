package notifications

import "html/template"

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Helvetica,Arial,sans-serif;color:#1f2937;">
  <div style="max-width:600px;margin:0 auto;padding:32px 24px;">
    <div style="background:#4f46e5;color:#ffffff;padding:20px 24px;border-radius:8px 8px 0 0;">
      <h1 style="margin:0;font-size:22px;">Appraze</h1>
    </div>
    <div style="background:#ffffff;padding:24px;border-radius:0 0 8px 8px;line-height:1.6;">
      {{template "body" .}}
    </div>
    <p style="font-size:12px;color:#6b7280;text-align:center;margin-top:16px;">&copy; Appraze. Performance reviews made simple.</p>
  </div>
</body>
</html>{{end}}
{{define "button"}}<p style="text-align:center;margin:28px 0;"><a href="{{.}}" style="background:#4f46e5;color:#ffffff;padding:12px 24px;border-radius:6px;text-decoration:none;font-weight:bold;">{{end}}`

const welcomeHTML = `{{define "body"}}
<h2 style="margin-top:0;">Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Thanks for signing up for Appraze. You can now add your team and start writing thoughtful performance reviews in minutes.</p>
{{template "button" .DashboardURL}}Go to your dashboard</a></p>
<p>If you have any questions, just reply to this email.</p>
{{end}}`

const passwordResetHTML = `{{define "body"}}
<h2 style="margin-top:0;">Reset your password</h2>
<p>We received a request to reset the password for your Appraze account. The link below expires in one hour.</p>
{{template "button" .ResetURL}}Reset password</a></p>
<p>If you did not request this, you can safely ignore this email.</p>
{{end}}`

const passwordChangedHTML = `{{define "body"}}
<h2 style="margin-top:0;">Your password was changed</h2>
<p>The password for your Appraze account was just changed.</p>
<p>If you did not make this change, reset your password immediately and contact support.</p>
{{template "button" .LoginURL}}Sign in</a></p>
{{end}}`

const reviewCompletedHTML = `{{define "body"}}
<h2 style="margin-top:0;">Your review is ready</h2>
<p>The performance review for <strong>{{.EmployeeName}}</strong> covering <strong>{{.ReviewPeriod}}</strong> has been generated and saved.</p>
{{template "button" .ReviewURL}}View review</a></p>
<p>You can edit, export or share it from your dashboard.</p>
{{end}}`

const teamInviteHTML = `{{define "body"}}
<h2 style="margin-top:0;">You're invited</h2>
<p>{{if .InviterName}}{{.InviterName}}{{else}}A teammate{{end}}{{if .InviterEmail}} ({{.InviterEmail}}){{end}} has invited you to join {{if .OrganizationName}}<strong>{{.OrganizationName}}</strong> on {{end}}Appraze as a {{.Role}}.</p>
{{template "button" .AcceptURL}}Accept invitation</a></p>
<p>If you were not expecting this invitation, you can ignore this email.</p>
{{end}}`

var templates = map[string]*template.Template{
	TypeWelcome:         mustParse(TypeWelcome, welcomeHTML),
	TypePasswordReset:   mustParse(TypePasswordReset, passwordResetHTML),
	TypePasswordChanged: mustParse(TypePasswordChanged, passwordChangedHTML),
	TypeReviewCompleted: mustParse(TypeReviewCompleted, reviewCompletedHTML),
	TypeTeamInvite:      mustParse(TypeTeamInvite, teamInviteHTML),
}

func mustParse(name, body string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layoutHTML)).Parse(body))
}
