// Package recipients validates announcement audiences and expands them to
// member email addresses.
package recipients

import (
	"context"
	"fmt"
	"strings"

	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/email"
)

const (
	everyone       = "everyone"
	languagePrefix = "language:"
)

// Mode is the audience shape. A resolved audience has exactly one.
type Mode string

const (
	ModeEveryone  Mode = "everyone"
	ModeLanguages Mode = "languages"
	ModeEmails    Mode = "emails"
)

// Recipients is a validated audience. The zero value is not valid; build one
// with Resolve.
type Recipients struct {
	mode      Mode
	languages []models.Language
	emails    []string
}

// Resolve validates an audience spec. Entries are trimmed and duplicates
// collapsed. Any invalid entry rejects the whole spec.
func Resolve(spec []string) (Recipients, error) {
	if len(spec) == 0 {
		return Recipients{}, dErrors.Validation("recipients are required",
			map[string]string{"recipients": "at least one recipient is required"})
	}

	errs := map[string]string{}
	var r Recipients
	seen := map[string]bool{}
	for i, raw := range spec {
		field := fmt.Sprintf("recipients[%d]", i)
		entry := strings.TrimSpace(raw)
		mode, value, msg := classify(entry)
		if msg != "" {
			errs[field] = msg
			continue
		}
		if r.mode == "" {
			r.mode = mode
		} else if r.mode != mode {
			errs[field] = fmt.Sprintf("cannot be combined with %s recipients", r.mode)
			continue
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		switch mode {
		case ModeLanguages:
			r.languages = append(r.languages, models.Language(value))
		case ModeEmails:
			r.emails = append(r.emails, value)
		}
	}
	if len(errs) > 0 {
		return Recipients{}, dErrors.Validation("invalid recipients", errs)
	}
	return r, nil
}

// classify returns the mode and normalized value of one entry, or a
// field message when the entry matches no shape.
func classify(entry string) (Mode, string, string) {
	switch {
	case entry == "":
		return "", "", "must not be empty"
	case entry == everyone:
		return ModeEveryone, everyone, ""
	case strings.HasPrefix(entry, languagePrefix):
		code := models.Language(strings.TrimPrefix(entry, languagePrefix))
		if !code.IsValid() {
			return "", "", "unknown language code " + string(code)
		}
		return ModeLanguages, string(code), ""
	case email.Valid(entry):
		return ModeEmails, email.Normalize(entry), ""
	}
	return "", "", "must be everyone, language:<code> or an email address"
}

func (r Recipients) Mode() Mode {
	return r.mode
}

func (r Recipients) Languages() []models.Language {
	return append([]models.Language(nil), r.languages...)
}

func (r Recipients) Emails() []string {
	return append([]string(nil), r.emails...)
}

// Values returns the canonical spec, suitable for storage and for Resolve.
func (r Recipients) Values() []string {
	switch r.mode {
	case ModeEveryone:
		return []string{everyone}
	case ModeLanguages:
		out := make([]string, len(r.languages))
		for i, l := range r.languages {
			out[i] = languagePrefix + string(l)
		}
		return out
	}
	return r.Emails()
}

// Directory lists member addresses matching a predicate.
type Directory interface {
	Emails(ctx context.Context, pred query.Predicate) ([]string, error)
}

// Expand turns the audience into concrete addresses. Explicit emails are
// returned as given, without checking membership.
func (r Recipients) Expand(ctx context.Context, dir Directory) ([]string, error) {
	switch r.mode {
	case ModeEveryone:
		return dir.Emails(ctx, query.True())
	case ModeLanguages:
		return dir.Emails(ctx, query.PreferredLanguageIn(r.languages...))
	case ModeEmails:
		return r.Emails(), nil
	}
	return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipients were not resolved")
}
