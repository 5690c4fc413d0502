package tickets

import (
	"time"

	"github.com/lumehq/lumebot/src/guildcfg"
)

// CheckRateLimit answers "may this user open a ticket under this panel
// right now". Pure: it only inspects the given snapshot of tickets and
// never mutates anything, so it is safe to call repeatedly.
//
// The open-limit counts tickets with status open or pending for the
// (user, panel) pair. The cooldown looks at the most recent created_at
// among the user's tickets for the panel regardless of status; the
// returned wait is the remaining time rounded up to whole minutes.
func CheckRateLimit(panel *guildcfg.Panel, existing []Ticket, userID string, panelIndex int, now time.Time) *RateLimitedError {
	openCount := 0
	var lastCreated time.Time

	for i := range existing {
		t := &existing[i]
		if t.UserID != userID || t.PanelIndex != panelIndex {
			continue
		}
		if t.Status.CountsAsOpen() {
			openCount++
		}
		if t.CreatedAt.After(lastCreated) {
			lastCreated = t.CreatedAt
		}
	}

	if openCount >= panel.Limits.MaxOpenPerUser {
		return &RateLimitedError{Kind: DenyLimit, Limit: panel.Limits.MaxOpenPerUser}
	}

	if panel.Limits.CooldownMinutes > 0 && !lastCreated.IsZero() {
		cooldown := time.Duration(panel.Limits.CooldownMinutes) * time.Minute
		elapsed := now.Sub(lastCreated)
		if elapsed < cooldown {
			remaining := cooldown - elapsed
			wait := int((remaining + time.Minute - 1) / time.Minute)
			if wait < 1 {
				wait = 1
			}
			return &RateLimitedError{Kind: DenyCooldown, WaitMinutes: wait}
		}
	}

	return nil
}
