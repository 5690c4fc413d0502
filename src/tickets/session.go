package tickets

import (
	"sync"
	"time"
)

// Multi-step creation is a short-lived cooperative workflow: the user
// picks type and urgency, then submits the body form. The in-progress
// state lives in a draft scoped to (guild, user) with a hard expiry;
// abandoning the flow leaves no ticket record and no resource.
const (
	draftTTL        = 2 * time.Minute
	confirmTTL      = 1 * time.Minute
	sessionPurgeMin = 32
)

// Draft is the state of one in-progress creation flow.
type Draft struct {
	PanelIndex      int
	Type            string
	Urgency         string
	OriginChannelID string
	expiresAt       time.Time
}

// PendingClose is a close awaiting explicit confirmation.
type PendingClose struct {
	TicketID  string
	expiresAt time.Time
}

// SessionTable holds per-(guild,user) workflow state with bounded
// lifetime. It is purged opportunistically on access once it grows.
type SessionTable struct {
	mu       sync.Mutex
	drafts   map[string]*Draft
	confirms map[string]*PendingClose
	now      func() time.Time
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		drafts:   make(map[string]*Draft),
		confirms: make(map[string]*PendingClose),
		now:      time.Now,
	}
}

func sessionKey(guildID, userID string) string { return guildID + ":" + userID }

// PutDraft starts or replaces the creation draft for (guild, user).
func (st *SessionTable) PutDraft(guildID, userID string, d *Draft) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.purgeLocked()
	d.expiresAt = st.now().Add(draftTTL)
	st.drafts[sessionKey(guildID, userID)] = d
}

// Draft returns the live draft for (guild, user), or nil when absent
// or expired.
func (st *SessionTable) Draft(guildID, userID string) *Draft {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := sessionKey(guildID, userID)
	d, ok := st.drafts[key]
	if !ok {
		return nil
	}
	if st.now().After(d.expiresAt) {
		delete(st.drafts, key)
		return nil
	}
	return d
}

// DropDraft discards the draft on completion or cancel.
func (st *SessionTable) DropDraft(guildID, userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.drafts, sessionKey(guildID, userID))
}

// PutConfirm records a close awaiting confirmation.
func (st *SessionTable) PutConfirm(guildID, userID, ticketID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.purgeLocked()
	st.confirms[sessionKey(guildID, userID)] = &PendingClose{
		TicketID:  ticketID,
		expiresAt: st.now().Add(confirmTTL),
	}
}

// TakeConfirm consumes the pending close for (guild, user). Returns ""
// when nothing is pending or the dialog expired.
func (st *SessionTable) TakeConfirm(guildID, userID string) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := sessionKey(guildID, userID)
	c, ok := st.confirms[key]
	if !ok {
		return ""
	}
	delete(st.confirms, key)
	if st.now().After(c.expiresAt) {
		return ""
	}
	return c.TicketID
}

func (st *SessionTable) purgeLocked() {
	if len(st.drafts)+len(st.confirms) < sessionPurgeMin {
		return
	}
	now := st.now()
	for k, d := range st.drafts {
		if now.After(d.expiresAt) {
			delete(st.drafts, k)
		}
	}
	for k, c := range st.confirms {
		if now.After(c.expiresAt) {
			delete(st.confirms, k)
		}
	}
}
