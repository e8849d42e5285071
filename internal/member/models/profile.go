package models

import (
	"net/url"
	"strings"

	"memberdir/pkg/email"
)

// Personal holds required contact details.
type Personal struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Professional holds optional career details.
type Professional struct {
	Title             string   `json:"title,omitempty"`
	PreferredLanguage Language `json:"preferredLanguage,omitempty"`
	Country           string   `json:"country,omitempty"`
}

// Education is required for students.
type Education struct {
	School         string `json:"school"`
	Program        string `json:"program"`
	Degree         string `json:"degree"`
	GraduationYear int    `json:"graduationYear"`
}

// AssociateInfo is required for associate members.
type AssociateInfo struct {
	Organization   string `json:"organization"`
	Specialization string `json:"specialization"`
}

// Location is a clinic's physical address.
type Location struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode,omitempty"`
}

// WorkContact is how the public reaches a listed member.
type WorkContact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Clinic is captured when a member requests a directory listing.
type Clinic struct {
	Institution string      `json:"institution"`
	Degree      string      `json:"degree"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Location    Location    `json:"location"`
	WorkContact WorkContact `json:"workContact"`
}

// License is a practice license entry.
type License struct {
	Region string `json:"region"`
	Number string `json:"number"`
}

// Display is what the public directory shows for a listed member.
type Display struct {
	Services        []string  `json:"services"`
	Languages       []string  `json:"languages"`
	Licenses        []License `json:"licenses,omitempty"`
	NoLicenseReason string    `json:"noLicenseReason,omitempty"`
}

// FieldErrors accumulates field -> message entries during validation.
type FieldErrors map[string]string

func (f FieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		f[field] = "is required"
	}
}

// Validate checks required personal fields.
func (p Personal) Validate(errs FieldErrors) {
	errs.require("personal.firstName", p.FirstName)
	errs.require("personal.lastName", p.LastName)
	errs.require("personal.phone", p.Phone)
	if strings.TrimSpace(p.Email) == "" {
		errs["personal.email"] = "is required"
	} else if !email.Valid(p.Email) {
		errs["personal.email"] = "must be a valid email address"
	}
}

// Validate checks optional professional fields that were supplied.
func (p Professional) Validate(errs FieldErrors) {
	if p.PreferredLanguage != "" && !p.PreferredLanguage.IsValid() {
		errs["professional.preferredLanguage"] = "must be english, spanish, portuguese or other"
	}
}

// Validate checks the student education record.
func (e *Education) Validate(errs FieldErrors) {
	if e == nil {
		errs["education"] = "is required for students"
		return
	}
	errs.require("education.school", e.School)
	errs.require("education.program", e.Program)
	errs.require("education.degree", e.Degree)
	if e.GraduationYear <= 0 {
		errs["education.graduationYear"] = "is required"
	}
}

// Validate checks the associate record.
func (a *AssociateInfo) Validate(errs FieldErrors) {
	if a == nil {
		errs["associate"] = "is required for associate members"
		return
	}
	errs.require("associate.organization", a.Organization)
	errs.require("associate.specialization", a.Specialization)
}

// Validate checks the clinic sub-record of an admission request.
func (c *Clinic) Validate(errs FieldErrors) {
	if c == nil {
		errs["clinic"] = "is required"
		return
	}
	errs.require("clinic.institution", c.Institution)
	errs.require("clinic.degree", c.Degree)
	errs.require("clinic.name", c.Name)
	if strings.TrimSpace(c.URL) == "" {
		errs["clinic.url"] = "is required"
	} else if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs["clinic.url"] = "must be an http(s) URL"
	}
	errs.require("clinic.location.address", c.Location.Address)
	errs.require("clinic.location.city", c.Location.City)
	errs.require("clinic.location.country", c.Location.Country)
	if strings.TrimSpace(c.WorkContact.Email) == "" {
		errs["clinic.workContact.email"] = "is required"
	} else if !email.Valid(c.WorkContact.Email) {
		errs["clinic.workContact.email"] = "must be a valid email address"
	}
	errs.require("clinic.workContact.phone", c.WorkContact.Phone)
}

// Validate checks the display sub-record of an admission request.
func (d *Display) Validate(errs FieldErrors) {
	if d == nil {
		errs["display"] = "is required"
		return
	}
	if len(d.Services) == 0 {
		errs["display.services"] = "at least one service is required"
	}
	if len(d.Languages) == 0 {
		errs["display.languages"] = "at least one language is required"
	}
	for _, l := range d.Licenses {
		if strings.TrimSpace(l.Region) == "" || strings.TrimSpace(l.Number) == "" {
			errs["display.licenses"] = "each license needs a region and number"
			break
		}
	}
	if len(d.Licenses) == 0 && strings.TrimSpace(d.NoLicenseReason) == "" {
		errs["display.licenses"] = "provide a license or a reason for not having one"
	}
}
