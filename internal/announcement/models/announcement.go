package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"memberdir/internal/announcement/recipients"
	dErrors "memberdir/pkg/domain-errors"
)

const (
	maxTitleLength = 200
	maxBodyLength  = 20000
)

// Announcement is a message authored by a member for a validated audience.
// Recipients holds the canonical audience spec and is never empty.
type Announcement struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"ownerId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Recipients []string  `json:"recipients"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewAnnouncement(id, ownerID uuid.UUID, title, body string, audience recipients.Recipients, now time.Time) (*Announcement, error) {
	errs := map[string]string{}
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		errs["title"] = "is required"
	case len(title) > maxTitleLength:
		errs["title"] = "is too long"
	}
	switch {
	case strings.TrimSpace(body) == "":
		errs["body"] = "is required"
	case len(body) > maxBodyLength:
		errs["body"] = "is too long"
	}
	if len(errs) > 0 {
		return nil, dErrors.Validation("invalid announcement", errs)
	}
	values := audience.Values()
	if len(values) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "announcement needs resolved recipients")
	}
	return &Announcement{
		ID:         id,
		OwnerID:    ownerID,
		Title:      title,
		Body:       body,
		Recipients: values,
		CreatedAt:  now,
	}, nil
}

// Audience re-validates the stored recipients.
func (a *Announcement) Audience() (recipients.Recipients, error) {
	return recipients.Resolve(a.Recipients)
}

// Delivery summarizes one send of an announcement.
type Delivery struct {
	AnnouncementID uuid.UUID `json:"announcementId"`
	Sent           int       `json:"sent"`
	Failed         []string  `json:"failed,omitempty"`
}
