package tickets

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// Platform is the capability surface the engine needs from Discord.
// Every call is fallible and bounded by the caller's context; the
// engine never assumes a call succeeded.
type Platform interface {
	// CreateTicketChannel creates a text channel hidden from everyone
	// except the requester and the staff roles. categoryID may be ""
	// or invalid, in which case the channel is created at guild root.
	CreateTicketChannel(ctx context.Context, guildID, name, categoryID, requesterID string, staffRoleIDs []string) (string, error)

	// CreateTicketThread creates a private thread under parentID and
	// adds the requester as a member.
	CreateTicketThread(ctx context.Context, parentID, name, requesterID string) (string, error)

	// IsTextChannel reports whether id resolves to a text-capable
	// channel in the guild.
	IsTextChannel(guildID, id string) bool

	// IsCategory reports whether id resolves to a category channel.
	IsCategory(guildID, id string) bool

	// MoveToCategory re-parents a channel under a category.
	MoveToCategory(ctx context.Context, channelID, categoryID string) error

	// DeleteResource deletes a channel or thread.
	DeleteResource(ctx context.Context, resourceID string) error

	// PostOpening sends the opening message with control buttons into
	// the new resource and returns the message ID.
	PostOpening(ctx context.Context, targetID string, post *OpeningPost) (string, error)
}

// OpeningPost is the content of the first message in a ticket resource.
type OpeningPost struct {
	PanelName    string
	TicketID     string
	Body         string
	ImageURL     string
	TemplateName string
	TemplateDesc string
	RulesName    string
	RulesDesc    string
	Inline       bool
	PostEnabled  bool
	AllowReopen  bool
}

const embedColor = 0x5865F2

// discordPlatform implements Platform over a discordgo session.
type discordPlatform struct {
	s *discordgo.Session
}

// NewDiscordPlatform wraps a discordgo session as a Platform.
func NewDiscordPlatform(s *discordgo.Session) Platform {
	return &discordPlatform{s: s}
}

func (d *discordPlatform) CreateTicketChannel(ctx context.Context, guildID, name, categoryID, requesterID string, staffRoleIDs []string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			// The @everyone role ID equals the guild ID.
			ID:   guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    requesterID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
	}
	for _, roleID := range staffRoleIDs {
		if roleID == "" {
			continue
		}
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    roleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory | discordgo.PermissionManageChannels,
		})
	}

	create := discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		PermissionOverwrites: overwrites,
	}
	if categoryID != "" && d.IsCategory(guildID, categoryID) {
		create.ParentID = categoryID
	}

	ch, err := d.s.GuildChannelCreateComplex(guildID, create, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel: %w", err)
	}
	return ch.ID, nil
}

func (d *discordPlatform) CreateTicketThread(ctx context.Context, parentID, name, requesterID string) (string, error) {
	th, err := d.s.ThreadStartComplex(parentID, &discordgo.ThreadStart{
		Name: name,
		Type: discordgo.ChannelTypeGuildPrivateThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if err := d.s.ThreadMemberAdd(th.ID, requesterID, discordgo.WithContext(ctx)); err != nil {
		// Requester can still be pulled in via mention; not fatal.
		log.Printf("tickets: add thread member %s to %s: %v", requesterID, th.ID, err)
	}
	return th.ID, nil
}

func (d *discordPlatform) channel(guildID, id string) *discordgo.Channel {
	if id == "" {
		return nil
	}
	ch, err := d.s.State.Channel(id)
	if err != nil || ch == nil {
		ch, err = d.s.Channel(id)
		if err != nil {
			return nil
		}
	}
	if guildID != "" && ch.GuildID != guildID {
		return nil
	}
	return ch
}

func (d *discordPlatform) IsTextChannel(guildID, id string) bool {
	ch := d.channel(guildID, id)
	return ch != nil && ch.Type == discordgo.ChannelTypeGuildText
}

func (d *discordPlatform) IsCategory(guildID, id string) bool {
	ch := d.channel(guildID, id)
	return ch != nil && ch.Type == discordgo.ChannelTypeGuildCategory
}

func (d *discordPlatform) MoveToCategory(ctx context.Context, channelID, categoryID string) error {
	_, err := d.s.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		ParentID: categoryID,
	}, discordgo.WithContext(ctx))
	return err
}

func (d *discordPlatform) DeleteResource(ctx context.Context, resourceID string) error {
	_, err := d.s.ChannelDelete(resourceID, discordgo.WithContext(ctx))
	return err
}

func (d *discordPlatform) PostOpening(ctx context.Context, targetID string, post *OpeningPost) (string, error) {
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: ticketControls(post.TicketID, post.AllowReopen),
		},
	}

	send := &discordgo.MessageSend{Components: components}
	if post.PostEnabled {
		send.Embeds = []*discordgo.MessageEmbed{openingEmbed(post)}
	} else {
		send.Content = "Ticket created."
	}

	msg, err := d.s.ChannelMessageSendComplex(targetID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("post opening: %w", err)
	}
	return msg.ID, nil
}

func openingEmbed(post *OpeningPost) *discordgo.MessageEmbed {
	body := post.Body
	if len(body) > 1800 {
		body = body[:1800]
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   post.TemplateName,
			Value:  post.TemplateDesc + "\n\nBody:\n```\n" + body + "\n```",
			Inline: post.Inline,
		},
	}
	if post.ImageURL != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Reference image",
			Value: post.ImageURL,
		})
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:   post.RulesName,
		Value:  post.RulesDesc,
		Inline: post.Inline,
	})

	return &discordgo.MessageEmbed{
		Title:  "🎫 " + post.PanelName,
		Color:  embedColor,
		Fields: fields,
	}
}

func ticketControls(ticketID string, allowReopen bool) []discordgo.MessageComponent {
	controls := []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Close",
			Style:    discordgo.DangerButton,
			CustomID: "ticket_close:" + ticketID,
		},
	}
	if allowReopen {
		controls = append(controls, discordgo.Button{
			Label:    "Reopen",
			Style:    discordgo.SecondaryButton,
			CustomID: "ticket_reopen:" + ticketID,
		})
	}
	return controls
}
