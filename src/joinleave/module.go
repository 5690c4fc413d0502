package joinleave

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	shareddiscord "github.com/lumehq/lumebot/src/discord"
	"github.com/lumehq/lumebot/src/guildcfg"
)

const defaultColor = 0x5865F2

// Module announces member joins and leaves with configured embeds and
// optionally assigns an auto-role on join.
type Module struct {
	session  *discordgo.Session
	cfgStore *guildcfg.Store
}

func NewModule(session *discordgo.Session, cfgStore *guildcfg.Store) *Module {
	return &Module{session: session, cfgStore: cfgStore}
}

func (m *Module) Name() string { return "joinleave" }

func (m *Module) Start(ctx context.Context) error {
	m.session.AddHandler(m.onMemberAdd)
	m.session.AddHandler(m.onMemberRemove)
	return nil
}

func (m *Module) Stop(ctx context.Context) {}

func (m *Module) onMemberAdd(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	cfg, err := m.cfgStore.Load(e.GuildID)
	if err != nil {
		log.Printf("joinleave: config %s: %v", e.GuildID, err)
		return
	}
	jl := cfg.JL
	if !jl.Enabled {
		return
	}
	if e.User.Bot && jl.IgnoreBots {
		return
	}

	if jl.ChannelJoin != "" {
		embed := renderEmbed(s, jl.JoinEmbed, e.GuildID, e.User)
		if _, err := s.ChannelMessageSendEmbed(jl.ChannelJoin, embed); err != nil {
			log.Printf("joinleave: join announce %s: %v", e.GuildID, err)
		}
	}

	if jl.AutoRoleID != "" {
		if err := s.GuildMemberRoleAdd(e.GuildID, e.User.ID, jl.AutoRoleID); err != nil {
			log.Printf("joinleave: auto role %s: %v", e.GuildID, err)
		}
	}
}

func (m *Module) onMemberRemove(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
	cfg, err := m.cfgStore.Load(e.GuildID)
	if err != nil {
		log.Printf("joinleave: config %s: %v", e.GuildID, err)
		return
	}
	jl := cfg.JL
	if !jl.Enabled || jl.ChannelLeave == "" {
		return
	}
	if e.User.Bot && jl.IgnoreBots {
		return
	}

	embed := renderEmbed(s, jl.LeaveEmbed, e.GuildID, e.User)
	if _, err := s.ChannelMessageSendEmbed(jl.ChannelLeave, embed); err != nil {
		log.Printf("joinleave: leave announce %s: %v", e.GuildID, err)
	}
}

func renderEmbed(s *discordgo.Session, ec guildcfg.EmbedConfig, guildID string, user *discordgo.User) *discordgo.MessageEmbed {
	guildName := guildID
	memberCount := ""
	if g, err := s.State.Guild(guildID); err == nil {
		guildName = g.Name
		memberCount = strconv.Itoa(g.MemberCount)
	}

	vars := map[string]string{
		"{user}":         user.Username,
		"{mention}":      user.Mention(),
		"{guild}":        guildName,
		"{member_count}": memberCount,
	}

	embed := &discordgo.MessageEmbed{
		Title:       apply(ec.Title, vars),
		Description: apply(ec.Description, vars),
		Color:       shareddiscord.ParseHexColor(ec.Color, defaultColor),
	}
	if ec.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: apply(ec.Footer, vars)}
	}
	return embed
}

func apply(text string, vars map[string]string) string {
	for k, v := range vars {
		text = strings.ReplaceAll(text, k, v)
	}
	return text
}
