package sender

import (
	"html/template"

	"github.com/magabrotheeeer/memorysphere/internal/models"
)

const subscribeURL = "https://memorysphere.app/subscription"

const resetPasswordURL = "https://memorysphere.app/reset-password"

type warningTemplate struct {
	subject string
	body    *template.Template
}

// Данные, подставляемые в шаблон предупреждения.
type warningData struct {
	FirstName    string
	DeletionDate string
	SubscribeURL string
}

const layoutHead = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: {{template "color" .}}; padding: 30px; text-align: center; color: white;">
    <h1 style="margin: 0; font-size: 28px;">MemorySphere</h1>
    <p style="margin: 10px 0 0 0; opacity: 0.9;">{{template "tagline" .}}</p>
  </div>
  <div style="padding: 30px; background: #f8fafc;">
    <h2 style="color: #1e293b; margin-bottom: 20px;">Hello {{.FirstName}},</h2>
    {{template "content" .}}
    <p style="color: #64748b; margin-top: 30px;">Best regards,<br>The MemorySphere Team</p>
  </div>
</div>`

var warningTemplates = map[models.WarningStage]warningTemplate{
	models.WarningFirst: {
		subject: "MemorySphere Account Inactivity Notice - 30 Days Until Deletion",
		body: mustWarning("first", `
{{define "color"}}#6366f1{{end}}
{{define "tagline"}}Account Inactivity Notice{{end}}
{{define "content"}}
<p style="color: #64748b; line-height: 1.6;">We noticed that your MemorySphere trial expired over 3 months ago, and you haven't subscribed to continue using our service.</p>
<div style="background: #fef3c7; border: 1px solid #fbbf24; border-radius: 8px; padding: 20px; margin: 20px 0;">
  <p style="color: #92400e; margin: 0; font-weight: 500;">Your account and all associated data will be permanently deleted on <strong>{{.DeletionDate}}</strong> unless you subscribe to continue using MemorySphere.</p>
</div>
<h3 style="color: #1e293b;">What will be deleted:</h3>
<ul style="color: #64748b; line-height: 1.6;">
  <li>All your memories and conversations</li>
  <li>Your task lists and productivity data</li>
  <li>Account settings and preferences</li>
  <li>All personal information</li>
</ul>
<p style="text-align: center;"><a href="{{.SubscribeURL}}">Subscribe Now to Keep Your Data</a></p>
<p style="color: #64748b; line-height: 1.6;">If you no longer wish to use MemorySphere, no action is required. Your account will be automatically deleted on the scheduled date.</p>
{{end}}`),
	},
	models.WarningSecond: {
		subject: "MemorySphere Account Deletion in 14 Days - Action Required",
		body: mustWarning("second", `
{{define "color"}}#ef4444{{end}}
{{define "tagline"}}Urgent: Account Deletion Notice{{end}}
{{define "content"}}
<div style="background: #fee2e2; border: 2px solid #ef4444; border-radius: 8px; padding: 20px; margin: 20px 0;">
  <p style="color: #dc2626; margin: 0; font-weight: 600;">Your MemorySphere account will be permanently deleted on <strong>{{.DeletionDate}}</strong></p>
</div>
<p style="color: #64748b; line-height: 1.6;">This is your second reminder. Your account has been inactive for over 3 months, and deletion is now just 14 days away.</p>
<p style="text-align: center;"><a href="{{.SubscribeURL}}">Subscribe Now - Don't Lose Your Data!</a></p>
{{end}}`),
	},
	models.WarningFinal: {
		subject: "FINAL WARNING: MemorySphere Account Deletion in 3 Days",
		body: mustWarning("final", `
{{define "color"}}#dc2626{{end}}
{{define "tagline"}}FINAL WARNING - Immediate Action Required{{end}}
{{define "content"}}
<div style="background: #fecaca; border: 3px solid #dc2626; border-radius: 8px; padding: 25px; margin: 20px 0; text-align: center;">
  <p style="color: #991b1b; margin: 0; font-weight: 700;">Account deletion in just <strong>3 DAYS</strong></p>
  <p style="color: #991b1b; margin: 10px 0 0 0;">Deletion Date: <strong>{{.DeletionDate}}</strong></p>
</div>
<p style="color: #64748b; line-height: 1.6;">This is your final opportunity to save your MemorySphere account. After {{.DeletionDate}}, everything will be permanently deleted and cannot be recovered.</p>
<p style="text-align: center;"><a href="{{.SubscribeURL}}">SAVE MY ACCOUNT NOW</a></p>
{{end}}`),
	},
}

func mustWarning(name, blocks string) *template.Template {
	t := template.Must(template.New(name).Parse(layoutHead))
	return template.Must(t.Parse(blocks))
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<div style="font-family: Arial, sans-serif;">
<h2>Data deletion run {{.FinishedAt.Format "2006-01-02 15:04 MST"}}</h2>
<table>
  <tr><td>Scheduled</td><td>{{.Scheduled}}</td></tr>
  <tr><td>First warnings</td><td>{{.WarningsSent.First}}</td></tr>
  <tr><td>Second warnings</td><td>{{.WarningsSent.Second}}</td></tr>
  <tr><td>Final warnings</td><td>{{.WarningsSent.Final}}</td></tr>
  <tr><td>Deleted</td><td>{{.Deleted}}</td></tr>
</table>
{{if .Failures}}<h3>Failures ({{len .Failures}})</h3>
<ul>{{range .Failures}}<li>{{.Step}} {{.AccountID}}: {{.Error}}</li>{{end}}</ul>{{end}}
</div>`))

type resetData struct {
	FirstName string
	Link      string
	ExpiresAt string
}

var resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #1e293b;">Hello {{.FirstName}},</h2>
<p style="color: #64748b; line-height: 1.6;">We received a request to reset your MemorySphere password.</p>
<p style="text-align: center;"><a href="{{.Link}}">Reset password</a></p>
<p style="color: #64748b; line-height: 1.6;">The link is valid until {{.ExpiresAt}}. If you did not request a reset, ignore this email.</p>
</div>`))
