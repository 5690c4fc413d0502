package tickets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	shareddiscord "github.com/lumehq/lumebot/src/discord"
	"github.com/lumehq/lumebot/src/guildcfg"
)

// Module wires the ticket engine to Discord: panel buttons, the
// selection/form creation flow, close and reopen controls, activity
// tracking, and the cleanup sweeper.
type Module struct {
	session  *discordgo.Session
	cfgStore *guildcfg.Store
	engine   *Engine
	sweeper  *Sweeper
	sessions *SessionTable

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewModule(session *discordgo.Session, cfgStore *guildcfg.Store, store Store) *Module {
	engine := NewEngine(store, NewDiscordPlatform(session))
	return &Module{
		session:  session,
		cfgStore: cfgStore,
		engine:   engine,
		sweeper:  NewSweeper(engine),
		sessions: NewSessionTable(),
	}
}

func (m *Module) Name() string { return "tickets" }

// Engine exposes the lifecycle engine to collaborators (webadmin).
func (m *Module) Engine() *Engine { return m.engine }

func (m *Module) Start(ctx context.Context) error {
	m.session.AddHandler(m.onInteractionCreate)
	m.session.AddHandler(m.onMessageCreate)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweeper.Run(runCtx, m.listGuilds, m.loadSnapshot)
	}()

	log.Printf("tickets: module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Module) listGuilds() []string {
	guilds := m.session.State.Guilds
	out := make([]string, 0, len(guilds))
	for _, g := range guilds {
		out = append(out, g.ID)
	}
	return out
}

func (m *Module) loadSnapshot(guildID string) (*ConfigSnapshot, error) {
	cfg, err := m.cfgStore.Load(guildID)
	if err != nil {
		return nil, err
	}
	return &ConfigSnapshot{GuildID: guildID, Config: cfg}, nil
}

// DeployPanel posts the panel message with its create button into a
// channel. Called from the admin panel.
func (m *Module) DeployPanel(guildID, channelID string, panelIndex int) error {
	cfg, err := m.cfgStore.Load(guildID)
	if err != nil {
		return err
	}
	panel := cfg.PanelAt(panelIndex)
	if panel == nil {
		return ErrInvalidPanel
	}

	_, err = m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎫 " + panel.Name,
			Description: "Press the button below to open a ticket.",
			Color:       embedColor,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Create ticket",
					Style:    discordgo.PrimaryButton,
					CustomID: fmt.Sprintf("ticket_create:%d", panelIndex),
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("deploy panel: %w", err)
	}
	return nil
}

// onMessageCreate tracks activity inside ticket resources.
func (m *Module) onMessageCreate(s *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.GuildID == "" || msg.Author == nil || msg.Author.Bot {
		return
	}
	m.engine.TouchActivity(msg.GuildID, msg.ChannelID)
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		m.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		m.handleModal(s, i)
	}
}

func (m *Module) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	action, arg, _ := strings.Cut(customID, ":")

	switch action {
	case "ticket_create":
		m.handleCreateButton(s, i, arg)
	case "ticket_type":
		m.handleTypeSelect(s, i)
	case "ticket_urgency":
		m.handleUrgencySelect(s, i)
	case "ticket_next":
		m.handleNextButton(s, i)
	case "ticket_close":
		m.handleCloseButton(s, i, arg)
	case "ticket_close_confirm":
		m.handleCloseConfirm(s, i)
	case "ticket_close_cancel":
		m.sessions.TakeConfirm(i.GuildID, i.Member.User.ID)
		shareddiscord.RespondEphemeral(s, i.Interaction, "Close cancelled.")
	case "ticket_reopen":
		m.handleReopenButton(s, i, arg)
	}
}

func (m *Module) handleCreateButton(s *discordgo.Session, i *discordgo.InteractionCreate, arg string) {
	panelIndex, err := strconv.Atoi(arg)
	if err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "This panel button is broken.")
		return
	}

	// Config is re-read at use time; captured panel data may be stale.
	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil {
		log.Printf("tickets: config %s: %v", i.GuildID, err)
		shareddiscord.RespondEphemeral(s, i.Interaction, "Something went wrong, try again.")
		return
	}
	panel := cfg.PanelAt(panelIndex)
	if panel == nil || !panel.Enabled {
		shareddiscord.RespondEphemeral(s, i.Interaction, "This panel is no longer available.")
		return
	}

	if err := m.engine.Precheck(cfg, i.GuildID, panelIndex, i.Member.User.ID); err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, denialMessage(err))
		return
	}

	if !panel.Form.BodyEnabled {
		// No form: create immediately with panel defaults.
		if err := shareddiscord.DeferEphemeral(s, i.Interaction); err != nil {
			return
		}
		m.createAndReply(s, i, cfg, CreateRequest{
			GuildID:         i.GuildID,
			PanelIndex:      panelIndex,
			UserID:          i.Member.User.ID,
			Username:        i.Member.User.Username,
			Body:            "(no body submitted)",
			OriginChannelID: i.ChannelID,
		})
		return
	}

	m.sessions.PutDraft(i.GuildID, i.Member.User.ID, &Draft{
		PanelIndex:      panelIndex,
		Type:            panel.DefaultType(),
		Urgency:         panel.DefaultUrgency(),
		OriginChannelID: i.ChannelID,
	})

	var rows []discordgo.MessageComponent
	if panel.Form.GenreEnabled {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			selectMenu("ticket_type", "Pick a category", panel.Types),
		}})
	}
	if panel.Form.UrgencyEnabled {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			selectMenu("ticket_urgency", "Pick an urgency", panel.Form.UrgencyChoices),
		}})
	}
	rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Next (enter details)",
			Style:    discordgo.PrimaryButton,
			CustomID: fmt.Sprintf("ticket_next:%d", panelIndex),
		},
	}})

	shareddiscord.RespondEphemeralComponents(s, i.Interaction, "Choose the ticket details.", rows)
}

func selectMenu(customID, placeholder string, values []string) discordgo.SelectMenu {
	// Discord caps select menus at 25 options.
	if len(values) > 25 {
		values = values[:25]
	}
	opts := make([]discordgo.SelectMenuOption, 0, len(values))
	for _, v := range values {
		opts = append(opts, discordgo.SelectMenuOption{Label: v, Value: v})
	}
	return discordgo.SelectMenu{
		CustomID:    customID,
		Placeholder: placeholder,
		Options:     opts,
	}
}

func (m *Module) handleTypeSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if d := m.sessions.Draft(i.GuildID, i.Member.User.ID); d != nil {
		if vals := i.MessageComponentData().Values; len(vals) > 0 {
			d.Type = vals[0]
		}
	}
	shareddiscord.AckComponent(s, i.Interaction)
}

func (m *Module) handleUrgencySelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if d := m.sessions.Draft(i.GuildID, i.Member.User.ID); d != nil {
		if vals := i.MessageComponentData().Values; len(vals) > 0 {
			d.Urgency = vals[0]
		}
	}
	shareddiscord.AckComponent(s, i.Interaction)
}

func (m *Module) handleNextButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	draft := m.sessions.Draft(i.GuildID, i.Member.User.ID)
	if draft == nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "This creation flow expired, press the panel button again.")
		return
	}

	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "Something went wrong, try again.")
		return
	}
	panel := cfg.PanelAt(draft.PanelIndex)
	if panel == nil || !panel.Enabled {
		m.sessions.DropDraft(i.GuildID, i.Member.User.ID)
		shareddiscord.RespondEphemeral(s, i.Interaction, "This panel is no longer available.")
		return
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  "body",
				Label:     "Details",
				Style:     discordgo.TextInputParagraph,
				Required:  true,
				MaxLength: 1500,
			},
		}},
	}
	if panel.Form.ImageEnabled {
		components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  "image_url",
				Label:     "Reference image URL (optional)",
				Style:     discordgo.TextInputShort,
				Required:  false,
				MaxLength: 300,
			},
		}})
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   fmt.Sprintf("ticket_form:%d", draft.PanelIndex),
			Title:      "Ticket details",
			Components: components,
		},
	})
	if err != nil {
		log.Printf("tickets: open modal: %v", err)
	}
}

func (m *Module) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	action, arg, _ := strings.Cut(data.CustomID, ":")
	if action != "ticket_form" {
		return
	}
	panelIndex, err := strconv.Atoi(arg)
	if err != nil {
		return
	}

	draft := m.sessions.Draft(i.GuildID, i.Member.User.ID)
	m.sessions.DropDraft(i.GuildID, i.Member.User.ID)

	req := CreateRequest{
		GuildID:         i.GuildID,
		PanelIndex:      panelIndex,
		UserID:          i.Member.User.ID,
		Username:        i.Member.User.Username,
		OriginChannelID: i.ChannelID,
	}
	if draft != nil {
		req.Type = draft.Type
		req.Urgency = draft.Urgency
		req.OriginChannelID = draft.OriginChannelID
	}
	req.Body = modalValue(data, "body")
	req.ImageURL = strings.TrimSpace(modalValue(data, "image_url"))

	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "Something went wrong, try again.")
		return
	}

	if err := shareddiscord.DeferEphemeral(s, i.Interaction); err != nil {
		return
	}
	m.createAndReply(s, i, cfg, req)
}

func modalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range ar.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

func (m *Module) createAndReply(s *discordgo.Session, i *discordgo.InteractionCreate, cfg *guildcfg.GuildConfig, req CreateRequest) {
	res, err := m.engine.Create(context.Background(), cfg, req)
	if err != nil {
		shareddiscord.FollowupEphemeral(s, i.Interaction, denialMessage(err))
		return
	}
	shareddiscord.FollowupEphemeral(s, i.Interaction, fmt.Sprintf("Ticket created: <#%s>", res.ResourceID))
}

func (m *Module) handleCloseButton(s *discordgo.Session, i *discordgo.InteractionCreate, ticketID string) {
	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "Something went wrong, try again.")
		return
	}

	ticket := m.resolveTicket(i.GuildID, ticketID, i.ChannelID)
	if ticket == nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "This place is not registered as a ticket.")
		return
	}

	panel := cfg.PanelAt(ticket.PanelIndex)
	if panel != nil && panel.Close.ConfirmRequired {
		m.sessions.PutConfirm(i.GuildID, i.Member.User.ID, ticket.ID)
		shareddiscord.RespondEphemeralComponents(s, i.Interaction, "Really close this ticket?", []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Close it", Style: discordgo.DangerButton, CustomID: "ticket_close_confirm"},
				discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: "ticket_close_cancel"},
			}},
		})
		return
	}

	if err := shareddiscord.DeferEphemeral(s, i.Interaction); err != nil {
		return
	}
	m.closeAndReply(s, i, cfg, ticket.ID)
}

func (m *Module) handleCloseConfirm(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ticketID := m.sessions.TakeConfirm(i.GuildID, i.Member.User.ID)
	if ticketID == "" {
		shareddiscord.RespondEphemeral(s, i.Interaction, "This confirmation expired.")
		return
	}

	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "Something went wrong, try again.")
		return
	}

	if err := shareddiscord.DeferEphemeral(s, i.Interaction); err != nil {
		return
	}
	m.closeAndReply(s, i, cfg, ticketID)
}

func (m *Module) closeAndReply(s *discordgo.Session, i *discordgo.InteractionCreate, cfg *guildcfg.GuildConfig, ticketID string) {
	outcome, err := m.engine.Close(context.Background(), cfg, i.GuildID, ticketID)
	if err != nil {
		shareddiscord.FollowupEphemeral(s, i.Interaction, denialMessage(err))
		return
	}

	var msg string
	switch outcome {
	case CloseArchived:
		msg = "Closed and moved to the archive category."
	case CloseDeleted:
		msg = "Closed and deleted."
	case CloseDeleteFailed:
		msg = "Closed, but the channel could not be deleted (check permissions)."
	case CloseRecordOnly:
		msg = "Closed (resource already gone, record updated)."
	case CloseAlreadyClosed:
		msg = "This ticket is already closed."
	}
	shareddiscord.FollowupEphemeral(s, i.Interaction, msg)
}

func (m *Module) handleReopenButton(s *discordgo.Session, i *discordgo.InteractionCreate, ticketID string) {
	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "Something went wrong, try again.")
		return
	}

	ticket := m.resolveTicket(i.GuildID, ticketID, i.ChannelID)
	if ticket == nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, "This place is not registered as a ticket.")
		return
	}

	if _, err := m.engine.Reopen(cfg, i.GuildID, ticket.ID); err != nil {
		shareddiscord.RespondEphemeral(s, i.Interaction, denialMessage(err))
		return
	}
	shareddiscord.RespondEphemeral(s, i.Interaction, "Ticket reopened.")
}

// resolveTicket looks a ticket up by ID first, then by the channel the
// interaction came from. Buttons can outlive the records they point
// at, so the ID on a control is treated as a hint, not truth.
func (m *Module) resolveTicket(guildID, ticketID, channelID string) *Ticket {
	if ticketID != "" {
		if t, err := m.engine.store.Get(guildID, ticketID); err == nil {
			return t
		}
	}
	t, err := m.engine.FindByResource(guildID, channelID)
	if err != nil {
		return nil
	}
	return t
}

func denialMessage(err error) string {
	var rl *RateLimitedError
	switch {
	case errors.As(err, &rl):
		if rl.Kind == DenyCooldown {
			return fmt.Sprintf("You are creating tickets too quickly. Try again in about %d minute(s).", rl.WaitMinutes)
		}
		return fmt.Sprintf("You have reached the limit of %d open tickets for this panel.", rl.Limit)
	case errors.Is(err, ErrInvalidPanel):
		return "This panel is no longer available."
	case errors.Is(err, ErrInvalidParent):
		return "The configured thread parent is not a text channel."
	case errors.Is(err, ErrNotFound):
		return "Ticket not found."
	case errors.Is(err, ErrNotClosed):
		return "This ticket is not closed."
	case errors.Is(err, ErrReopenDisabled):
		return "Reopening tickets is disabled for this panel."
	case errors.Is(err, ErrResourceCreateFailed):
		return "Could not create the ticket channel. Please contact a moderator."
	default:
		return "Something went wrong, try again."
	}
}
