package tickets

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumehq/lumebot/src/guildcfg"
)

// platformCallTimeout bounds every Discord API call made by the
// engine. Creation treats a timeout as failure; close and cleanup
// treat it as best-effort and continue.
const platformCallTimeout = 10 * time.Second

// Engine owns every ticket state transition. All read-modify-write
// sequences against one guild's tickets run under that guild's lock,
// so concurrent interactions (double-click close, create racing a
// cleanup sweep) cannot lose updates. Operations on different guilds
// never contend.
type Engine struct {
	store    Store
	platform Platform

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func NewEngine(store Store, platform Platform) *Engine {
	return &Engine{
		store:    store,
		platform: platform,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

func (e *Engine) guildLock(guildID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[guildID] = l
	}
	return l
}

// CreateRequest carries everything needed to create one ticket.
type CreateRequest struct {
	GuildID    string
	PanelIndex int
	UserID     string
	Username   string
	Type       string
	Urgency    string
	Body       string
	ImageURL   string
	// OriginChannelID is the channel the interaction came from, used
	// as the thread parent fallback.
	OriginChannelID string
}

// CreateResult references the created ticket and its backing resource.
type CreateResult struct {
	Ticket     Ticket
	ResourceID string
	Mode       string
}

// Create runs the full creation protocol: panel resolution, type and
// urgency fallback, rate-limit gate, resource creation, opening post,
// record append. If the backing resource cannot be created no record
// is written.
func (e *Engine) Create(ctx context.Context, cfg *guildcfg.GuildConfig, req CreateRequest) (*CreateResult, error) {
	panel := cfg.PanelAt(req.PanelIndex)
	if panel == nil || !panel.Enabled {
		return nil, ErrInvalidPanel
	}

	ticketType := panel.ResolveType(req.Type)
	urgency := panel.ResolveUrgency(req.Urgency)

	lock := e.guildLock(req.GuildID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.store.List(req.GuildID)
	if err != nil {
		// Unreadable store degrades to empty; the authoritative side
		// effects below are still real.
		log.Printf("tickets: list %s: %v", req.GuildID, err)
		existing = nil
	}

	now := e.now()
	if deny := CheckRateLimit(panel, existing, req.UserID, req.PanelIndex, now); deny != nil {
		return nil, deny
	}

	// Display counter only, not a uniqueness key.
	count := 1
	for i := range existing {
		if existing[i].PanelIndex == req.PanelIndex {
			count++
		}
	}

	vars := TemplateVars{
		Count:     count,
		User:      req.Username,
		UserID:    req.UserID,
		Type:      ticketType,
		Urgency:   urgency,
		CreatedAt: now,
	}
	name := ResourceName(panel.NameTemplate, vars, panel.Mode)

	callCtx, cancel := context.WithTimeout(ctx, platformCallTimeout)
	defer cancel()

	var channelID, threadID string
	switch panel.Mode {
	case "thread":
		parent := panel.ThreadParentChannelID
		if !e.platform.IsTextChannel(req.GuildID, parent) {
			parent = req.OriginChannelID
		}
		if !e.platform.IsTextChannel(req.GuildID, parent) {
			return nil, ErrInvalidParent
		}
		threadID, err = e.platform.CreateTicketThread(callCtx, parent, name, req.UserID)
	default:
		channelID, err = e.platform.CreateTicketChannel(callCtx, req.GuildID, name, panel.ParentCategoryID, req.UserID, panel.Permissions.StaffRoleIDs)
	}
	if err != nil {
		log.Printf("tickets: create resource for %s/%d: %v", req.GuildID, req.PanelIndex, err)
		return nil, fmt.Errorf("%w: %v", ErrResourceCreateFailed, err)
	}

	ticket := Ticket{
		ID:            fmt.Sprintf("%s-%d-%d-%s", req.GuildID, req.PanelIndex, now.UnixMilli(), uuid.NewString()[:8]),
		GuildID:       req.GuildID,
		PanelIndex:    req.PanelIndex,
		UserID:        req.UserID,
		Status:        StatusOpen,
		Type:          ticketType,
		Urgency:       urgency,
		CreatedAt:     now,
		LastMessageAt: now,
		ChannelID:     channelID,
		ThreadID:      threadID,
	}

	post := &OpeningPost{
		PanelName:    panel.Name,
		TicketID:     ticket.ID,
		Body:         req.Body,
		ImageURL:     req.ImageURL,
		TemplateName: RenderTemplate(panel.Post.TemplateSection.Title, vars),
		TemplateDesc: RenderTemplate(panel.Post.TemplateSection.Description, vars),
		RulesName:    RenderTemplate(panel.Post.RulesSection.Title, vars),
		RulesDesc:    RenderTemplate(panel.Post.RulesSection.Description, vars),
		Inline:       panel.Post.Layout == "horizontal",
		PostEnabled:  panel.Post.Enabled,
		AllowReopen:  panel.Close.AllowReopen,
	}
	if _, postErr := e.platform.PostOpening(callCtx, ticket.ResourceID(), post); postErr != nil {
		// The resource exists; record it anyway so close/cleanup can
		// still manage it.
		log.Printf("tickets: opening post in %s: %v", ticket.ResourceID(), postErr)
	}

	if err := e.store.Append(&ticket); err != nil {
		// Resource without record: operator-recoverable orphan.
		log.Printf("tickets: append %s: %v", ticket.ID, err)
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	return &CreateResult{Ticket: ticket, ResourceID: ticket.ResourceID(), Mode: panel.Mode}, nil
}

// Precheck runs panel resolution and the rate-limit gate without
// creating anything. Used to reject a creation flow before showing the
// selection UI; Create repeats the check under the same lock before
// committing.
func (e *Engine) Precheck(cfg *guildcfg.GuildConfig, guildID string, panelIndex int, userID string) error {
	panel := cfg.PanelAt(panelIndex)
	if panel == nil || !panel.Enabled {
		return ErrInvalidPanel
	}

	lock := e.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.store.List(guildID)
	if err != nil {
		log.Printf("tickets: list %s: %v", guildID, err)
		existing = nil
	}
	if deny := CheckRateLimit(panel, existing, userID, panelIndex, e.now()); deny != nil {
		return deny
	}
	return nil
}

// CloseOutcome describes what happened to the backing resource; the
// status transition itself always persists first.
type CloseOutcome int

const (
	CloseArchived CloseOutcome = iota
	CloseDeleted
	CloseDeleteFailed
	CloseRecordOnly
	CloseAlreadyClosed
)

// Close transitions a ticket to closed, persisting the status before
// touching the backing resource so the transition survives platform
// failures. Closing an already-closed ticket is a no-op, which keeps
// double-delivered close interactions from double-deleting.
func (e *Engine) Close(ctx context.Context, cfg *guildcfg.GuildConfig, guildID, ticketID string) (CloseOutcome, error) {
	lock := e.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	t, err := e.store.Get(guildID, ticketID)
	if err != nil {
		return 0, err
	}
	if t.Status == StatusClosed {
		return CloseAlreadyClosed, nil
	}

	panel := cfg.PanelAt(t.PanelIndex)
	if panel == nil {
		// Panel edited away since creation; close with defaults.
		def := guildcfg.DefaultPanel()
		panel = &def
	}

	now := e.now()
	t.Status = StatusClosed
	t.ClosedAt = &now
	if err := e.store.Update(t); err != nil {
		return 0, fmt.Errorf("persist close: %w", err)
	}

	resource := t.ResourceID()
	if resource == "" {
		return CloseRecordOnly, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, platformCallTimeout)
	defer cancel()

	// Archive channels into the closed category when configured;
	// threads are not category-capable.
	if cat := panel.Close.ClosedCategoryID; cat != "" && t.ChannelID != "" && e.platform.IsCategory(guildID, cat) {
		err := e.platform.MoveToCategory(callCtx, t.ChannelID, cat)
		if err == nil {
			return CloseArchived, nil
		}
		log.Printf("tickets: move %s to closed category: %v", t.ChannelID, err)
	}

	if err := e.platform.DeleteResource(callCtx, resource); err != nil {
		// Status change is not rolled back.
		log.Printf("tickets: delete %s on close: %v", resource, err)
		return CloseDeleteFailed, nil
	}

	// Drop the binding so the record reads as orphaned; a later reopen
	// does not resurrect the deleted resource.
	t.ChannelID = ""
	t.ThreadID = ""
	if err := e.store.Update(t); err != nil {
		log.Printf("tickets: clear resource on %s: %v", t.ID, err)
	}
	return CloseDeleted, nil
}

// Reopen returns a closed ticket to open when the owning panel allows
// it. A deleted backing resource is not recreated; the ticket becomes
// an orphan and the next sweep reaps it.
func (e *Engine) Reopen(cfg *guildcfg.GuildConfig, guildID, ticketID string) (*Ticket, error) {
	lock := e.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	t, err := e.store.Get(guildID, ticketID)
	if err != nil {
		return nil, err
	}

	panel := cfg.PanelAt(t.PanelIndex)
	if panel == nil {
		return nil, ErrInvalidPanel
	}
	if !panel.Close.AllowReopen {
		return nil, ErrReopenDisabled
	}
	if t.Status != StatusClosed {
		return nil, ErrNotClosed
	}

	now := e.now()
	t.Status = StatusOpen
	t.ReopenedAt = &now
	if err := e.store.Update(t); err != nil {
		return nil, fmt.Errorf("persist reopen: %w", err)
	}
	return t, nil
}

// TouchActivity records inbound message activity for the ticket bound
// to resourceID. This is the sole input to inactivity auto-delete.
func (e *Engine) TouchActivity(guildID, resourceID string) {
	lock := e.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	t, err := e.store.FindByResource(guildID, resourceID)
	if err != nil {
		return
	}
	t.LastMessageAt = e.now()
	if err := e.store.Update(t); err != nil {
		log.Printf("tickets: touch %s: %v", t.ID, err)
	}
}

// FindByResource resolves the ticket bound to a channel or thread.
func (e *Engine) FindByResource(guildID, resourceID string) (*Ticket, error) {
	lock := e.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()
	return e.store.FindByResource(guildID, resourceID)
}
