package models

import (
	"errors"

	"github.com/google/uuid"

	memberModels "memberdir/internal/member/models"
	dErrors "memberdir/pkg/domain-errors"
)

// Decision is the target state of an admin review.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Status returns the admission status a decision moves a member to.
func (d Decision) Status() memberModels.AdmissionStatus {
	if d == DecisionApprove {
		return memberModels.AdmissionApproved
	}
	return memberModels.AdmissionDenied
}

// OutcomeError is the failure reported for one member of a batch.
type OutcomeError struct {
	Code    dErrors.Code `json:"code"`
	Message string       `json:"message"`
}

// Outcome is the per-member result of an approve or deny batch. A member can
// reach the new status and still carry an error when the notification failed.
type Outcome struct {
	MemberID uuid.UUID                    `json:"memberId"`
	Status   memberModels.AdmissionStatus `json:"status,omitempty"`
	Notified bool                         `json:"notified"`
	Error    *OutcomeError                `json:"error,omitempty"`
}

// Transitioned reports whether the member reached the decided status.
func (o Outcome) Transitioned() bool {
	return o.Status != ""
}

// Failed builds the outcome for a member that could not be transitioned.
// Internal error details are not exposed.
func Failed(memberID uuid.UUID, err error) Outcome {
	oe := &OutcomeError{Code: dErrors.CodeInternal, Message: "internal error"}
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		oe = &OutcomeError{Code: de.Code, Message: de.Message}
	}
	return Outcome{MemberID: memberID, Error: oe}
}

// BatchResult collects the outcomes in request order.
type BatchResult struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Succeeded counts members that reached the decided status.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Transitioned() {
			n++
		}
	}
	return n
}
