package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// MemberID is the member the action applies to.
	MemberID string `json:"memberId"`
	// ActorID is who performed the action when different from MemberID,
	// e.g. the admin deciding an admission request.
	ActorID   string `json:"actorId,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type EventType string

const (
	EventMemberRegistered    EventType = "member_registered"
	EventMembershipChanged   EventType = "membership_changed"
	EventAdmissionRequested  EventType = "admission_requested"
	EventAdmissionApproved   EventType = "admission_approved"
	EventAdmissionDenied     EventType = "admission_denied"
	EventNotificationFailed  EventType = "admission_notification_failed"
	EventAnnouncementCreated EventType = "announcement_created"
)
