package discord

import (
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HasRole reports whether the guild member carries the given role.
func HasRole(s *discordgo.Session, guildID, userID, roleID string) bool {
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

// RespondEphemeral sends an ephemeral text reply to an interaction.
func RespondEphemeral(s *discordgo.Session, i *discordgo.Interaction, content string) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("discord: interaction respond: %v", err)
	}
}

// RespondEphemeralComponents sends an ephemeral reply with components.
func RespondEphemeralComponents(s *discordgo.Session, i *discordgo.Interaction, content string, components []discordgo.MessageComponent) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: components,
		},
	})
	if err != nil {
		log.Printf("discord: interaction respond: %v", err)
	}
}

// DeferEphemeral acknowledges an interaction so a slow operation can
// follow up later.
func DeferEphemeral(s *discordgo.Session, i *discordgo.Interaction) error {
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

// FollowupEphemeral completes a deferred interaction.
func FollowupEphemeral(s *discordgo.Session, i *discordgo.Interaction, content string) {
	_, err := s.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Printf("discord: followup: %v", err)
	}
}

// AckComponent acknowledges a component interaction without visible
// output (select-menu updates).
func AckComponent(s *discordgo.Session, i *discordgo.Interaction) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("discord: component ack: %v", err)
	}
}

// ParseHexColor converts "#RRGGBB" into a Discord embed color value.
func ParseHexColor(v string, fallback int) int {
	s := strings.TrimPrefix(strings.TrimSpace(v), "#")
	if len(s) != 6 {
		return fallback
	}
	n, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return fallback
	}
	return int(n)
}
