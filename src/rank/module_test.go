package rank

import "testing"

func TestLeaderboardRows(t *testing.T) {
	entries := map[string]string{
		"u1": "300",
		"u2": "100",
		"u3": "garbage",
		"u4": "900",
	}

	rows := leaderboardRows(entries)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (unparseable entry skipped)", len(rows))
	}
	if rows[0].userID != "u4" || rows[1].userID != "u1" || rows[2].userID != "u2" {
		t.Errorf("order = %v, want u4, u1, u2", rows)
	}
}

func TestLeaderboardRows_Truncates(t *testing.T) {
	entries := map[string]string{
		"a": "1", "b": "2", "c": "3", "d": "4", "e": "5", "f": "6", "g": "7",
	}
	rows := leaderboardRows(entries)
	if len(rows) != leaderboardSize {
		t.Fatalf("rows = %d, want %d", len(rows), leaderboardSize)
	}
	if rows[0].xp != 7 {
		t.Errorf("top xp = %d, want 7", rows[0].xp)
	}
}
