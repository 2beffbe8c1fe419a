package email

import (
	"bytes"
	"fmt"
	"go-dishlens-backend/config"
	"html/template"
	"net/smtp"
)

// EmailService sends lead notifications to the sales inbox via SMTP.
type EmailService struct {
	host      string
	port      string
	username  string
	password  string
	fromEmail string
	toEmail   string
}

// LeadEmailData holds the data for new-lead notification emails
type LeadEmailData struct {
	BusinessName string
	ContactName  string
	Email        string
	Phone        string
	Source       string
}

// NewEmailService creates a new email service with Brevo SMTP configuration
func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		fromEmail: cfg.SMTPFromEmail,
		toEmail:   cfg.SalesEmailTo,
	}
}

// IsConfigured reports whether SMTP credentials are present.
func (s *EmailService) IsConfigured() bool {
	return s.host != "" && s.username != "" && s.password != "" && s.toEmail != ""
}

// leadEmailTemplate is the HTML template for new-lead notifications
const leadEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New Lead</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #d96c06; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9f9f9; }
        .field { margin-bottom: 15px; }
        .label { font-weight: bold; color: #555; }
        .value { margin-top: 5px; }
        .footer { text-align: center; padding: 20px; color: #888; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>New Restaurant Lead</h1>
        </div>
        <div class="content">
            <div class="field">
                <div class="label">Business:</div>
                <div class="value">{{.BusinessName}}</div>
            </div>
            <div class="field">
                <div class="label">Contact:</div>
                <div class="value">{{.ContactName}} ({{.Email}}{{if .Phone}}, {{.Phone}}{{end}})</div>
            </div>
            <div class="field">
                <div class="label">Source:</div>
                <div class="value">{{.Source}}</div>
            </div>
        </div>
        <div class="footer">
            <p>Sent by the DishLens lead pipeline.</p>
            <p>To reply, send an email to: {{.Email}}</p>
        </div>
    </div>
</body>
</html>`

// SendLeadNotification emails the sales inbox about a fresh lead.
func (s *EmailService) SendLeadNotification(data LeadEmailData) error {
	tmpl, err := template.New("lead").Parse(leadEmailTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse email template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	subject := fmt.Sprintf("New lead: %s", data.BusinessName)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Reply-To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		s.fromEmail,
		s.toEmail,
		data.Email,
		subject,
		body.String(),
	))

	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.fromEmail, []string{s.toEmail}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
