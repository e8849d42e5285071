package query

import (
	"strings"

	"memberdir/internal/member/models"
	dErrors "memberdir/pkg/domain-errors"
)

// FilterSpec is a member search request. Empty dimensions add no constraint.
type FilterSpec struct {
	Search      string
	IsAdmin     *bool
	InDirectory *models.DirectoryFlag
	Titles      []string
	Memberships []models.Category
	Education   []string
	Services    []string
	Countries   []string
}

// Validate rejects values that can never match.
func (f FilterSpec) Validate() error {
	errs := map[string]string{}
	for _, c := range f.Memberships {
		if !c.IsValid() {
			errs["membership"] = "unknown membership category " + string(c)
			break
		}
	}
	if len(errs) > 0 {
		return dErrors.Validation("invalid filter", errs)
	}
	return nil
}

// Build returns the conjunction of every non-empty dimension of spec.
func Build(spec FilterSpec) Predicate {
	return And(Dimensions(spec)...)
}

// Dimensions returns one predicate per non-empty filter dimension.
func Dimensions(spec FilterSpec) []Predicate {
	var ps []Predicate
	if s := strings.TrimSpace(spec.Search); s != "" {
		ps = append(ps, nameContains(s))
	}
	if spec.IsAdmin != nil {
		if *spec.IsAdmin {
			ps = append(ps, roleIn{models.RoleAdmin, models.RoleSuperadmin})
		} else {
			ps = append(ps, roleIn{models.RoleMember})
		}
	}
	if spec.InDirectory != nil {
		ps = append(ps, admissionIn(statusesFor(*spec.InDirectory)))
	}
	if len(spec.Titles) > 0 {
		ps = append(ps, fieldIn{column: "title", values: spec.Titles, get: func(m *models.Member) string {
			return m.Professional.Title
		}})
	}
	if len(spec.Memberships) > 0 {
		values := make([]string, len(spec.Memberships))
		for i, c := range spec.Memberships {
			values[i] = string(c)
		}
		ps = append(ps, fieldIn{column: "membership", values: values, get: func(m *models.Member) string {
			return string(m.Account.Membership)
		}})
	}
	if len(spec.Education) > 0 {
		ps = append(ps, fieldIn{column: "education_degree", values: spec.Education, get: func(m *models.Member) string {
			if m.Education == nil {
				return ""
			}
			return m.Education.Degree
		}})
	}
	if len(spec.Services) > 0 {
		ps = append(ps, servicesOverlap(spec.Services))
	}
	if len(spec.Countries) > 0 {
		ps = append(ps, fieldIn{column: "country", values: spec.Countries, get: func(m *models.Member) string {
			return m.Professional.Country
		}})
	}
	return ps
}

// statusesFor maps the public tri-state onto admission statuses. false covers
// both never-requested and denied members.
func statusesFor(flag models.DirectoryFlag) []models.AdmissionStatus {
	switch flag {
	case models.FlagTrue:
		return []models.AdmissionStatus{models.AdmissionApproved}
	case models.FlagPending:
		return []models.AdmissionStatus{models.AdmissionPending}
	}
	return []models.AdmissionStatus{models.AdmissionNone, models.AdmissionDenied}
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
	// MaxPageNumber keeps Offset far from int overflow.
	MaxPageNumber = 1_000_000
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage applies defaults to missing values and caps the number and size.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Result is one page of matches plus the total match count.
type Result struct {
	Members []*models.Member
	Count   int
}

// PreferredLanguageIn matches members whose preferred language is one of langs.
func PreferredLanguageIn(langs ...models.Language) Predicate {
	values := make([]string, len(langs))
	for i, l := range langs {
		values[i] = string(l)
	}
	return fieldIn{column: "preferred_language", values: values, get: func(m *models.Member) string {
		return string(m.Professional.PreferredLanguage)
	}}
}
