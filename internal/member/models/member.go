package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "memberdir/pkg/domain-errors"
)

// Account carries the membership classification and directory admission state.
// Version increases on every admission write and backs compare-and-set updates.
type Account struct {
	Membership Category        `json:"membership"`
	Admission  AdmissionStatus `json:"admissionStatus"`
	Version    int64           `json:"version"`
}

// Member is the aggregate root for an association member.
//
// Invariants:
//   - Subject is non-empty and immutable (one member per external identity)
//   - Personal name, email and phone are present
//   - Membership is a valid category; Education is set iff student,
//     Associate is set iff associate
//   - Admission changes only through the Can*/Apply* transition pairs
//   - Clinic and Display are set once an admission request has been submitted,
//     so an approved member always has them
type Member struct {
	ID           uuid.UUID      `json:"id"`
	Subject      string         `json:"-"`
	Role         Role           `json:"role"`
	Account      Account        `json:"account"`
	Personal     Personal       `json:"personal"`
	Professional Professional   `json:"professional"`
	Education    *Education     `json:"education,omitempty"`
	Associate    *AssociateInfo `json:"associate,omitempty"`
	Clinic       *Clinic        `json:"clinic,omitempty"`
	Display      *Display       `json:"display,omitempty"`
	Answers      Answers        `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Classification is the resolved outcome of the questionnaire plus the
// category-specific sub-record it requires.
type Classification struct {
	Category  Category
	Answers   Answers
	Education *Education
	Associate *AssociateInfo
}

// NewMember constructs a member at signup: role member, admission none.
func NewMember(memberID uuid.UUID, subject string, personal Personal, professional Professional, c Classification, now time.Time) (*Member, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject cannot be empty")
	}
	errs := FieldErrors{}
	personal.Validate(errs)
	professional.Validate(errs)
	if len(errs) > 0 {
		return nil, dErrors.Validation("invalid member profile", errs)
	}
	m := &Member{
		ID:           memberID,
		Subject:      subject,
		Role:         RoleMember,
		Personal:     personal,
		Professional: professional,
		Account:      Account{Admission: AdmissionNone},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.ApplyClassification(c, now); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplyClassification replaces the category and its sub-record. The sub-record
// of any other category is cleared so no stale data survives a category change.
func (m *Member) ApplyClassification(c Classification, now time.Time) error {
	if !c.Category.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid membership category")
	}
	m.Account.Membership = c.Category
	m.Answers = c.Answers.Clone()
	m.Education = nil
	m.Associate = nil
	switch c.Category {
	case CategoryStudent:
		m.Education = c.Education
	case CategoryAssociate:
		m.Associate = c.Associate
	}
	m.UpdatedAt = now
	return nil
}

// HasPersonalProfile reports whether the member can be addressed by email.
func (m *Member) HasPersonalProfile() bool {
	return m.Personal.FirstName != "" && m.Personal.Email != ""
}

// InDirectory is the public tri-state projection of the admission status.
func (m *Member) InDirectory() DirectoryFlag {
	return m.Account.Admission.Flag()
}

// Services returns the services offered, as captured by the display record.
func (m *Member) Services() []string {
	if m.Display == nil {
		return nil
	}
	return m.Display.Services
}

// CanSubmitAdmission checks the member may (re)enter the pending state.
func (m *Member) CanSubmitAdmission() error {
	if !m.Account.Membership.DirectoryEligible() {
		return dErrors.Validation("membership category is not eligible for the directory",
			map[string]string{"membership": "not eligible for directory listing"})
	}
	switch m.Account.Admission {
	case AdmissionPending:
		return dErrors.New(dErrors.CodeConflict, "an admission request is already pending")
	case AdmissionApproved:
		return dErrors.New(dErrors.CodeConflict, "member is already listed in the directory")
	}
	return nil
}

// ApplyAdmissionRequest stores the sub-records and moves to pending.
// Call CanSubmitAdmission first.
func (m *Member) ApplyAdmissionRequest(clinic Clinic, display Display, now time.Time) {
	m.Clinic = &clinic
	m.Display = &display
	m.Account.Admission = AdmissionPending
	m.Account.Version++
	m.UpdatedAt = now
}

// CanDecideAdmission checks the member is awaiting review and can be notified.
func (m *Member) CanDecideAdmission(next AdmissionStatus) error {
	if !m.HasPersonalProfile() {
		return dErrors.New(dErrors.CodeInvariantViolation, "member has no personal profile")
	}
	if !m.Account.Admission.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeConflict, "admission is "+string(m.Account.Admission)+", cannot become "+string(next))
	}
	if next == AdmissionApproved && (m.Clinic == nil || m.Display == nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "approved members need clinic and display records")
	}
	return nil
}

// ApplyAdmissionDecision moves a pending member to approved or denied.
// Call CanDecideAdmission first.
func (m *Member) ApplyAdmissionDecision(next AdmissionStatus, now time.Time) {
	m.Account.Admission = next
	m.Account.Version++
	m.UpdatedAt = now
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	c := *m
	c.Answers = m.Answers.Clone()
	if m.Education != nil {
		e := *m.Education
		c.Education = &e
	}
	if m.Associate != nil {
		a := *m.Associate
		c.Associate = &a
	}
	if m.Clinic != nil {
		cl := *m.Clinic
		c.Clinic = &cl
	}
	if m.Display != nil {
		d := *m.Display
		d.Services = append([]string(nil), m.Display.Services...)
		d.Languages = append([]string(nil), m.Display.Languages...)
		d.Licenses = append([]License(nil), m.Display.Licenses...)
		c.Display = &d
	}
	return &c
}
