package tickets

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lumehq/lumebot/src/guildcfg"
)

type fakePlatform struct {
	nextID       int
	channels     []string
	threads      []string
	deleted      []string
	moved        map[string]string
	posts        int
	failCreate   bool
	failDelete   bool
	textChannels map[string]bool
	categories   map[string]bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		moved:        make(map[string]string),
		textChannels: make(map[string]bool),
		categories:   make(map[string]bool),
	}
}

func (f *fakePlatform) CreateTicketChannel(ctx context.Context, guildID, name, categoryID, requesterID string, staffRoleIDs []string) (string, error) {
	if f.failCreate {
		return "", errors.New("api down")
	}
	f.nextID++
	id := fmt.Sprintf("chan-%d", f.nextID)
	f.channels = append(f.channels, id)
	return id, nil
}

func (f *fakePlatform) CreateTicketThread(ctx context.Context, parentID, name, requesterID string) (string, error) {
	if f.failCreate {
		return "", errors.New("api down")
	}
	f.nextID++
	id := fmt.Sprintf("thread-%d", f.nextID)
	f.threads = append(f.threads, id)
	return id, nil
}

func (f *fakePlatform) IsTextChannel(guildID, id string) bool { return f.textChannels[id] }
func (f *fakePlatform) IsCategory(guildID, id string) bool    { return f.categories[id] }

func (f *fakePlatform) MoveToCategory(ctx context.Context, channelID, categoryID string) error {
	f.moved[channelID] = categoryID
	return nil
}

func (f *fakePlatform) DeleteResource(ctx context.Context, resourceID string) error {
	if f.failDelete {
		return errors.New("missing permissions")
	}
	f.deleted = append(f.deleted, resourceID)
	return nil
}

func (f *fakePlatform) PostOpening(ctx context.Context, targetID string, post *OpeningPost) (string, error) {
	f.posts++
	return fmt.Sprintf("msg-%d", f.posts), nil
}

func testConfig(panels ...guildcfg.Panel) *guildcfg.GuildConfig {
	cfg := guildcfg.Defaults()
	if len(panels) > 0 {
		cfg.Ticket.Panels = panels
	}
	return &cfg
}

func newTestEngine() (*Engine, *MemoryStore, *fakePlatform) {
	store := NewMemoryStore()
	platform := newFakePlatform()
	engine := NewEngine(store, platform)
	return engine, store, platform
}

func createReq(panelIndex int, userID string) CreateRequest {
	return CreateRequest{
		GuildID:    "g1",
		PanelIndex: panelIndex,
		UserID:     userID,
		Username:   "alice",
		Type:       "question",
		Urgency:    "low",
		Body:       "help me",
	}
}

func TestCreate_ChannelMode(t *testing.T) {
	engine, store, platform := newTestEngine()
	cfg := testConfig()

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Ticket.Status != StatusOpen {
		t.Errorf("status = %s, want open", res.Ticket.Status)
	}
	if res.Ticket.ChannelID == "" || res.Ticket.ThreadID != "" {
		t.Errorf("want exactly channel_id set, got channel=%q thread=%q", res.Ticket.ChannelID, res.Ticket.ThreadID)
	}
	if !res.Ticket.CreatedAt.Equal(res.Ticket.LastMessageAt) {
		t.Error("created_at and last_message_at should start equal")
	}
	if platform.posts != 1 {
		t.Errorf("opening posts = %d, want 1", platform.posts)
	}

	stored, err := store.Get("g1", res.Ticket.ID)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.PanelIndex != 0 || stored.UserID != "u1" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCreate_ThreadMode(t *testing.T) {
	engine, _, platform := newTestEngine()
	platform.textChannels["parent-1"] = true

	panel := guildcfg.DefaultPanel()
	panel.Mode = "thread"
	panel.ThreadParentChannelID = "parent-1"
	cfg := testConfig(panel)

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Ticket.ThreadID == "" || res.Ticket.ChannelID != "" {
		t.Errorf("want exactly thread_id set, got channel=%q thread=%q", res.Ticket.ChannelID, res.Ticket.ThreadID)
	}
}

func TestCreate_ThreadFallsBackToOriginChannel(t *testing.T) {
	engine, _, platform := newTestEngine()
	platform.textChannels["origin-9"] = true

	panel := guildcfg.DefaultPanel()
	panel.Mode = "thread"
	panel.ThreadParentChannelID = "deleted-channel"
	cfg := testConfig(panel)

	req := createReq(0, "u1")
	req.OriginChannelID = "origin-9"
	if _, err := engine.Create(context.Background(), cfg, req); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestCreate_ThreadInvalidParent(t *testing.T) {
	engine, store, _ := newTestEngine()

	panel := guildcfg.DefaultPanel()
	panel.Mode = "thread"
	cfg := testConfig(panel)

	_, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("err = %v, want ErrInvalidParent", err)
	}
	if all, _ := store.List("g1"); len(all) != 0 {
		t.Errorf("no record should be written, got %d", len(all))
	}
}

func TestCreate_InvalidPanel(t *testing.T) {
	engine, _, _ := newTestEngine()
	cfg := testConfig()

	if _, err := engine.Create(context.Background(), cfg, createReq(5, "u1")); !errors.Is(err, ErrInvalidPanel) {
		t.Errorf("out of bounds: err = %v, want ErrInvalidPanel", err)
	}

	cfg.Ticket.Panels[0].Enabled = false
	if _, err := engine.Create(context.Background(), cfg, createReq(0, "u1")); !errors.Is(err, ErrInvalidPanel) {
		t.Errorf("disabled: err = %v, want ErrInvalidPanel", err)
	}
}

func TestCreate_ResourceFailureWritesNoRecord(t *testing.T) {
	engine, store, platform := newTestEngine()
	platform.failCreate = true
	cfg := testConfig()

	_, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if !errors.Is(err, ErrResourceCreateFailed) {
		t.Fatalf("err = %v, want ErrResourceCreateFailed", err)
	}
	if all, _ := store.List("g1"); len(all) != 0 {
		t.Errorf("no record should be written, got %d", len(all))
	}
}

func TestCreate_InvalidTypeAndUrgencyFallBack(t *testing.T) {
	engine, _, _ := newTestEngine()
	cfg := testConfig()

	req := createReq(0, "u1")
	req.Type = "no-such-type"
	req.Urgency = "no-such-urgency"

	res, err := engine.Create(context.Background(), cfg, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	panel := cfg.PanelAt(0)
	if res.Ticket.Type != panel.Types[0] {
		t.Errorf("type = %q, want fallback %q", res.Ticket.Type, panel.Types[0])
	}
	if res.Ticket.Urgency != panel.Form.UrgencyChoices[0] {
		t.Errorf("urgency = %q, want fallback %q", res.Ticket.Urgency, panel.Form.UrgencyChoices[0])
	}
}

func TestCreate_RateLimitDeniedWithoutSideEffects(t *testing.T) {
	engine, store, platform := newTestEngine()

	panel := guildcfg.DefaultPanel()
	panel.Limits = guildcfg.Limits{MaxOpenPerUser: 1, CooldownMinutes: 0}
	cfg := testConfig(panel)

	// A succeeds.
	resA, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create A: %v", err)
	}

	// B immediately after is denied with the limit reason.
	_, err = engine.Create(context.Background(), cfg, createReq(0, "u1"))
	var rl *RateLimitedError
	if !errors.As(err, &rl) || rl.Kind != DenyLimit || rl.Limit != 1 {
		t.Fatalf("err = %v, want limit denial carrying 1", err)
	}
	if len(platform.channels) != 1 {
		t.Errorf("denied create must not touch the platform, channels = %d", len(platform.channels))
	}
	if all, _ := store.List("g1"); len(all) != 1 {
		t.Errorf("denied create must not append, records = %d", len(all))
	}

	// Closing A frees the slot; C succeeds.
	if _, err := engine.Close(context.Background(), cfg, "g1", resA.Ticket.ID); err != nil {
		t.Fatalf("close A: %v", err)
	}
	if _, err := engine.Create(context.Background(), cfg, createReq(0, "u1")); err != nil {
		t.Fatalf("create C after closing A: %v", err)
	}
}

func TestClose_DeletesResourceAndPersistsFirst(t *testing.T) {
	engine, store, platform := newTestEngine()
	cfg := testConfig()

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	outcome, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if outcome != CloseDeleted {
		t.Errorf("outcome = %v, want CloseDeleted", outcome)
	}
	if len(platform.deleted) != 1 || platform.deleted[0] != res.ResourceID {
		t.Errorf("deleted = %v, want [%s]", platform.deleted, res.ResourceID)
	}

	stored, _ := store.Get("g1", res.Ticket.ID)
	if stored.Status != StatusClosed || stored.ClosedAt == nil {
		t.Errorf("stored = %+v, want closed with closed_at", stored)
	}
}

func TestClose_ArchivesWhenCategoryConfigured(t *testing.T) {
	engine, _, platform := newTestEngine()
	platform.categories["closed-cat"] = true

	panel := guildcfg.DefaultPanel()
	panel.Close.ClosedCategoryID = "closed-cat"
	cfg := testConfig(panel)

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	outcome, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if outcome != CloseArchived {
		t.Errorf("outcome = %v, want CloseArchived", outcome)
	}
	if platform.moved[res.Ticket.ChannelID] != "closed-cat" {
		t.Errorf("moved = %v, want channel in closed-cat", platform.moved)
	}
	if len(platform.deleted) != 0 {
		t.Errorf("archived resource must be retained, deleted = %v", platform.deleted)
	}
}

func TestClose_DeleteFailureKeepsStatusChange(t *testing.T) {
	engine, store, platform := newTestEngine()
	cfg := testConfig()

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	platform.failDelete = true
	outcome, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if outcome != CloseDeleteFailed {
		t.Errorf("outcome = %v, want CloseDeleteFailed", outcome)
	}

	stored, _ := store.Get("g1", res.Ticket.ID)
	if stored.Status != StatusClosed {
		t.Errorf("status = %s, deletion failure must not roll back the close", stored.Status)
	}
}

func TestClose_UnknownTicket(t *testing.T) {
	engine, _, _ := newTestEngine()
	cfg := testConfig()

	if _, err := engine.Close(context.Background(), cfg, "g1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClose_DoubleCloseIsNoOp(t *testing.T) {
	engine, _, platform := newTestEngine()
	cfg := testConfig()

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID); err != nil {
		t.Fatalf("first close: %v", err)
	}

	outcome, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if outcome != CloseAlreadyClosed {
		t.Errorf("outcome = %v, want CloseAlreadyClosed", outcome)
	}
	if len(platform.deleted) != 1 {
		t.Errorf("double close must not double-delete, deleted = %v", platform.deleted)
	}
}

func TestReopen_RoundTrip(t *testing.T) {
	engine, store, _ := newTestEngine()

	panel := guildcfg.DefaultPanel()
	panel.Limits = guildcfg.Limits{MaxOpenPerUser: 1, CooldownMinutes: 0}
	panel.Close.AllowReopen = true
	cfg := testConfig(panel)

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := engine.Reopen(cfg, "g1", res.Ticket.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != StatusOpen || reopened.ReopenedAt == nil {
		t.Errorf("reopened = %+v, want open with reopened_at", reopened)
	}

	// The reopened ticket counts toward the open-limit again.
	_, err = engine.Create(context.Background(), cfg, createReq(0, "u1"))
	var rl *RateLimitedError
	if !errors.As(err, &rl) || rl.Kind != DenyLimit {
		t.Errorf("err = %v, want limit denial after reopen", err)
	}

	stored, _ := store.Get("g1", res.Ticket.ID)
	if stored.Status != StatusOpen {
		t.Errorf("stored status = %s, want open", stored.Status)
	}
}

func TestReopen_Disabled(t *testing.T) {
	engine, store, _ := newTestEngine()

	panel := guildcfg.DefaultPanel()
	panel.Close.AllowReopen = false
	cfg := testConfig(panel)

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Close(context.Background(), cfg, "g1", res.Ticket.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := engine.Reopen(cfg, "g1", res.Ticket.ID); !errors.Is(err, ErrReopenDisabled) {
		t.Fatalf("err = %v, want ErrReopenDisabled", err)
	}
	stored, _ := store.Get("g1", res.Ticket.ID)
	if stored.Status != StatusClosed {
		t.Errorf("denied reopen must not mutate status, got %s", stored.Status)
	}
}

func TestReopen_NotClosed(t *testing.T) {
	engine, _, _ := newTestEngine()
	cfg := testConfig()

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Reopen(cfg, "g1", res.Ticket.ID); !errors.Is(err, ErrNotClosed) {
		t.Errorf("err = %v, want ErrNotClosed", err)
	}
}

func TestTouchActivity(t *testing.T) {
	engine, store, _ := newTestEngine()
	cfg := testConfig()

	res, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	later := res.Ticket.CreatedAt.Add(5 * time.Minute)
	engine.now = func() time.Time { return later }
	engine.TouchActivity("g1", res.ResourceID)

	stored, _ := store.Get("g1", res.Ticket.ID)
	if !stored.LastMessageAt.Equal(later) {
		t.Errorf("last_message_at = %v, want %v", stored.LastMessageAt, later)
	}
}

func TestCooldownScenario(t *testing.T) {
	engine, _, _ := newTestEngine()

	panel := guildcfg.DefaultPanel()
	panel.Limits = guildcfg.Limits{MaxOpenPerUser: 5, CooldownMinutes: 30}
	cfg := testConfig(panel)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }

	if _, err := engine.Create(context.Background(), cfg, createReq(0, "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	engine.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err := engine.Create(context.Background(), cfg, createReq(0, "u1"))
	var rl *RateLimitedError
	if !errors.As(err, &rl) || rl.Kind != DenyCooldown {
		t.Fatalf("err = %v, want cooldown denial", err)
	}
	if rl.WaitMinutes <= 0 || rl.WaitMinutes > 30 {
		t.Errorf("wait = %d, want in (0, 30]", rl.WaitMinutes)
	}

	engine.now = func() time.Time { return base.Add(31 * time.Minute) }
	if _, err := engine.Create(context.Background(), cfg, createReq(0, "u1")); err != nil {
		t.Fatalf("create after cooldown: %v", err)
	}
}
