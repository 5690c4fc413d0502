package tickets

import "time"

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPending Status = "pending"
	StatusClosed  Status = "closed"
)

// CountsAsOpen reports whether the status counts toward the per-user
// open limit and is eligible for inactivity auto-delete. Pending
// tickets are treated the same as open ones.
func (s Status) CountsAsOpen() bool {
	return s == StatusOpen || s == StatusPending
}

// Ticket is one durable ticket record bound to exactly one backing
// Discord resource (channel or thread). Records are created by the
// engine, mutated in place by close/reopen/activity, and removed only
// by the cleanup sweeper.
type Ticket struct {
	ID            string     `gorm:"primaryKey;size:96" json:"ticket_id"`
	GuildID       string     `gorm:"size:32;index" json:"-"`
	PanelIndex    int        `json:"panel_index"`
	UserID        string     `gorm:"size:32;index" json:"user_id"`
	Status        Status     `gorm:"size:16" json:"status"`
	Type          string     `gorm:"size:64" json:"type"`
	Urgency       string     `gorm:"size:64" json:"urgency"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt time.Time  `json:"last_message_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ReopenedAt    *time.Time `json:"reopened_at,omitempty"`
	ChannelID     string     `gorm:"size:32;index" json:"channel_id,omitempty"`
	ThreadID      string     `gorm:"size:32;index" json:"thread_id,omitempty"`
}

// ResourceID returns the bound channel or thread ID, or "" for an
// orphaned ticket.
func (t *Ticket) ResourceID() string {
	if t.ChannelID != "" {
		return t.ChannelID
	}
	return t.ThreadID
}
