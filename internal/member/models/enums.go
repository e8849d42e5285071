package models

import (
	"encoding/json"
	"fmt"
)

// Role is the caller's permission level.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsAdmin is true for admin and superadmin; most permission checks treat them alike.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// Category is the membership category produced by the classification questionnaire.
type Category string

const (
	CategoryStudent            Category = "student"
	CategoryGeneticCounselor   Category = "geneticCounselor"
	CategoryHealthcareProvider Category = "healthcareProvider"
	CategoryAssociate          Category = "associate"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryStudent, CategoryGeneticCounselor, CategoryHealthcareProvider, CategoryAssociate:
		return true
	}
	return false
}

// DirectoryEligible reports whether members of this category may request a
// public directory listing.
func (c Category) DirectoryEligible() bool {
	return c == CategoryGeneticCounselor
}

// AdmissionStatus is the directory admission lifecycle.
//
//	none -> pending -> approved
//	             \---> denied -> pending (resubmit)
type AdmissionStatus string

const (
	AdmissionNone     AdmissionStatus = "none"
	AdmissionPending  AdmissionStatus = "pending"
	AdmissionApproved AdmissionStatus = "approved"
	AdmissionDenied   AdmissionStatus = "denied"
)

func (s AdmissionStatus) IsValid() bool {
	switch s {
	case AdmissionNone, AdmissionPending, AdmissionApproved, AdmissionDenied:
		return true
	}
	return false
}

// CanTransitionTo encodes the legal admission transitions.
func (s AdmissionStatus) CanTransitionTo(next AdmissionStatus) bool {
	switch s {
	case AdmissionNone, AdmissionDenied:
		return next == AdmissionPending
	case AdmissionPending:
		return next == AdmissionApproved || next == AdmissionDenied
	}
	return false
}

// Listed is true only for approved members.
func (s AdmissionStatus) Listed() bool {
	return s == AdmissionApproved
}

// Flag projects the status onto the public tri-state inDirectory value.
func (s AdmissionStatus) Flag() DirectoryFlag {
	switch s {
	case AdmissionPending:
		return FlagPending
	case AdmissionApproved:
		return FlagTrue
	}
	return FlagFalse
}

// DirectoryFlag is the tri-state inDirectory value exposed to clients:
// false (not requested or denied), "pending", or true (approved).
type DirectoryFlag string

const (
	FlagFalse   DirectoryFlag = "false"
	FlagPending DirectoryFlag = "pending"
	FlagTrue    DirectoryFlag = "true"
)

// ParseDirectoryFlag parses the query/wire spelling of inDirectory.
func ParseDirectoryFlag(v string) (DirectoryFlag, error) {
	switch DirectoryFlag(v) {
	case FlagFalse, FlagPending, FlagTrue:
		return DirectoryFlag(v), nil
	}
	return "", fmt.Errorf("inDirectory must be true, false or pending, got %q", v)
}

// MarshalJSON writes true/false as JSON booleans and pending as a string.
func (f DirectoryFlag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("true"), nil
	case FlagPending:
		return []byte(`"pending"`), nil
	}
	return []byte("false"), nil
}

func (f *DirectoryFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*f = FlagTrue
		} else {
			*f = FlagFalse
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("inDirectory: %w", err)
	}
	parsed, err := ParseDirectoryFlag(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Language is a preferred communication language.
type Language string

const (
	LanguageEnglish    Language = "english"
	LanguageSpanish    Language = "spanish"
	LanguagePortuguese Language = "portuguese"
	LanguageOther      Language = "other"
)

func (l Language) IsValid() bool {
	switch l {
	case LanguageEnglish, LanguageSpanish, LanguagePortuguese, LanguageOther:
		return true
	}
	return false
}
