package tickets

import (
	"testing"
	"time"
)

func TestSessionTable_DraftLifecycle(t *testing.T) {
	st := NewSessionTable()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	st.PutDraft("g1", "u1", &Draft{PanelIndex: 2, Type: "report"})

	d := st.Draft("g1", "u1")
	if d == nil || d.PanelIndex != 2 {
		t.Fatalf("draft = %+v, want live draft for panel 2", d)
	}
	if st.Draft("g1", "u2") != nil {
		t.Error("drafts must be scoped per user")
	}
	if st.Draft("g2", "u1") != nil {
		t.Error("drafts must be scoped per guild")
	}

	st.DropDraft("g1", "u1")
	if st.Draft("g1", "u1") != nil {
		t.Error("dropped draft still resolvable")
	}
}

func TestSessionTable_DraftExpires(t *testing.T) {
	st := NewSessionTable()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	st.PutDraft("g1", "u1", &Draft{PanelIndex: 0})

	now = now.Add(draftTTL + time.Second)
	if st.Draft("g1", "u1") != nil {
		t.Error("draft should expire after its TTL")
	}
}

func TestSessionTable_ConfirmConsumedOnce(t *testing.T) {
	st := NewSessionTable()
	st.PutConfirm("g1", "u1", "ticket-1")

	if got := st.TakeConfirm("g1", "u1"); got != "ticket-1" {
		t.Fatalf("take = %q, want ticket-1", got)
	}
	if got := st.TakeConfirm("g1", "u1"); got != "" {
		t.Errorf("second take = %q, want empty (consumed)", got)
	}
}

func TestSessionTable_ConfirmExpires(t *testing.T) {
	st := NewSessionTable()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	st.PutConfirm("g1", "u1", "ticket-1")
	now = now.Add(confirmTTL + time.Second)

	if got := st.TakeConfirm("g1", "u1"); got != "" {
		t.Errorf("take = %q, want empty after expiry", got)
	}
}
