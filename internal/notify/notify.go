// Package notify renders member notifications and delivers them by email.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = map[Kind]*template.Template{
	KindApproval:     template.Must(template.ParseFS(templatesFS, "templates/approval.tmpl")),
	KindDenial:       template.Must(template.ParseFS(templatesFS, "templates/denial.tmpl")),
	KindAnnouncement: template.Must(template.ParseFS(templatesFS, "templates/announcement.tmpl")),
}

// Kind selects a notification template.
type Kind string

const (
	KindApproval     Kind = "approval"
	KindDenial       Kind = "denial"
	KindAnnouncement Kind = "announcement"
)

// Data fills template placeholders. Unused fields are ignored.
type Data struct {
	FirstName string
	Reason    string
	Title     string
	Body      string
}

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Render fills the template for kind with data.
func Render(kind Kind, data Data) (Message, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", kind)
	}
	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", kind, err)
	}
	return Message{Subject: strings.TrimSpace(subject.String()), Body: body.String()}, nil
}

// Notifier delivers a rendered message to one address. Failures are
// returned to the caller, never swallowed.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
