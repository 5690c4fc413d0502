package rank

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"

	shareddiscord "github.com/lumehq/lumebot/src/discord"
	"github.com/lumehq/lumebot/src/guildcfg"
)

const (
	xpPerMessage    = 10
	leaderboardSize = 5
	defaultColor    = 0x6D7CFF
)

func xpKey(guildID string) string          { return "rank:xp:" + guildID }
func voiceKey(guildID string) string       { return "rank:vc:" + guildID }
func cooldownKey(g, u string) string       { return "rank:cd:" + g + ":" + u }
func leaderboardTag(guildID string) string { return "rank:lb:" + guildID }

// Module tracks message XP and voice time per guild member. Counters
// live in Redis hashes; in-flight voice sessions are explicit
// per-(guild,user) state flushed when the member leaves voice.
type Module struct {
	session  *discordgo.Session
	cfgStore *guildcfg.Store
	rdb      *redis.Client

	mu       sync.Mutex
	voiceses map[string]time.Time // guild:user -> join time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewModule(session *discordgo.Session, cfgStore *guildcfg.Store, rdb *redis.Client) *Module {
	return &Module{
		session:  session,
		cfgStore: cfgStore,
		rdb:      rdb,
		voiceses: make(map[string]time.Time),
	}
}

func (m *Module) Name() string { return "rank" }

func (m *Module) Start(ctx context.Context) error {
	m.session.AddHandler(m.onMessageCreate)
	m.session.AddHandler(m.onVoiceStateUpdate)
	m.session.AddHandler(m.onInteractionCreate)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.leaderboardLoop(runCtx)
	}()
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Module) onMessageCreate(s *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.GuildID == "" || msg.Author == nil || msg.Author.Bot {
		return
	}

	cfg, err := m.cfgStore.Load(msg.GuildID)
	if err != nil || !cfg.Rank.Enabled {
		return
	}

	ctx := context.Background()
	cooldown := time.Duration(cfg.Rank.CooldownSeconds) * time.Second
	if cooldown > 0 {
		ok, err := m.rdb.SetNX(ctx, cooldownKey(msg.GuildID, msg.Author.ID), 1, cooldown).Result()
		if err != nil {
			log.Printf("rank: cooldown %s: %v", msg.GuildID, err)
			return
		}
		if !ok {
			return
		}
	}

	if err := m.rdb.HIncrBy(ctx, xpKey(msg.GuildID), msg.Author.ID, xpPerMessage).Err(); err != nil {
		log.Printf("rank: xp incr %s: %v", msg.GuildID, err)
	}
}

func (m *Module) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.GuildID == "" {
		return
	}
	key := v.GuildID + ":" + v.UserID

	joined := v.ChannelID != ""
	wasIn := v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != ""

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case joined && !wasIn:
		m.voiceses[key] = time.Now()
	case !joined && wasIn:
		start, ok := m.voiceses[key]
		if !ok {
			return
		}
		delete(m.voiceses, key)
		secs := int64(time.Since(start).Seconds())
		if secs <= 0 {
			return
		}
		if err := m.rdb.HIncrBy(context.Background(), voiceKey(v.GuildID), v.UserID, secs).Err(); err != nil {
			log.Printf("rank: voice incr %s: %v", v.GuildID, err)
		}
	}
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID == "" || i.Member == nil {
		return
	}
	if i.ApplicationCommandData().Name != "rank" {
		return
	}

	cfg, err := m.cfgStore.Load(i.GuildID)
	if err != nil || !cfg.Rank.Enabled {
		shareddiscord.RespondEphemeral(s, i.Interaction, "Ranking is disabled on this server.")
		return
	}

	ctx := context.Background()
	userID := i.Member.User.ID
	xp, _ := m.rdb.HGet(ctx, xpKey(i.GuildID), userID).Int64()
	voice, _ := m.rdb.HGet(ctx, voiceKey(i.GuildID), userID).Int64()
	level, next := LevelFromXP(xp)

	vars := map[string]string{"{user}": i.Member.User.Username}
	embed := &discordgo.MessageEmbed{
		Title:       applyVars(cfg.Rank.Embed.Title, vars),
		Description: applyVars(cfg.Rank.Embed.Description, vars),
		Color:       shareddiscord.ParseHexColor(cfg.Rank.Embed.Color, defaultColor),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: fmt.Sprintf("%d (%d / %d XP)", level, xp, next), Inline: true},
			{Name: "Voice", Value: FormatVoice(voice), Inline: true},
		},
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("rank: respond: %v", err)
	}
}

func (m *Module) leaderboardLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, g := range m.session.State.Guilds {
				m.maybeUpdateLeaderboard(ctx, g.ID)
			}
		}
	}
}

// maybeUpdateLeaderboard re-renders the pinned leaderboard message at
// the configured interval. The last update time is tracked in Redis so
// restarts do not spam edits.
func (m *Module) maybeUpdateLeaderboard(ctx context.Context, guildID string) {
	cfg, err := m.cfgStore.Load(guildID)
	if err != nil {
		return
	}
	lb := cfg.Rank.Leaderboard
	if !cfg.Rank.Enabled || !lb.Enabled || lb.ChannelID == "" {
		return
	}

	interval := time.Duration(lb.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ok, err := m.rdb.SetNX(ctx, leaderboardTag(guildID), 1, interval).Result()
	if err != nil || !ok {
		return
	}

	entries, err := m.rdb.HGetAll(ctx, xpKey(guildID)).Result()
	if err != nil {
		log.Printf("rank: leaderboard read %s: %v", guildID, err)
		return
	}
	rows := leaderboardRows(entries)

	var b strings.Builder
	for i, r := range rows {
		level, _ := LevelFromXP(r.xp)
		fmt.Fprintf(&b, "%d. <@%s> - level %d (%d XP)\n", i+1, r.userID, level, r.xp)
	}
	if b.Len() == 0 {
		b.WriteString("No activity yet.")
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Leaderboard",
		Description: b.String(),
		Color:       defaultColor,
	}

	if lb.MessageID != "" {
		if _, err := m.session.ChannelMessageEditEmbed(lb.ChannelID, lb.MessageID, embed); err == nil {
			return
		}
	}
	msg, err := m.session.ChannelMessageSendEmbed(lb.ChannelID, embed)
	if err != nil {
		log.Printf("rank: leaderboard post %s: %v", guildID, err)
		return
	}
	cfg.Rank.Leaderboard.MessageID = msg.ID
	if err := m.cfgStore.Save(guildID, cfg); err != nil {
		log.Printf("rank: save leaderboard message id %s: %v", guildID, err)
	}
}

type lbRow struct {
	userID string
	xp     int64
}

// leaderboardRows turns raw XP hash entries into the top rows, highest
// XP first. Unparseable values are logged and skipped.
func leaderboardRows(entries map[string]string) []lbRow {
	rows := make([]lbRow, 0, len(entries))
	for userID, raw := range entries {
		xp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("rank: leaderboard entry %s: %v", userID, err)
			continue
		}
		rows = append(rows, lbRow{userID, xp})
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].xp > rows[b].xp })
	if len(rows) > leaderboardSize {
		rows = rows[:leaderboardSize]
	}
	return rows
}

func applyVars(text string, vars map[string]string) string {
	for k, v := range vars {
		text = strings.ReplaceAll(text, k, v)
	}
	return text
}

// RegisterCommands creates the /rank slash command.
func RegisterCommands(s *discordgo.Session) error {
	_, err := s.ApplicationCommandCreate(s.State.User.ID, "", &discordgo.ApplicationCommand{
		Name:        "rank",
		Description: "Show your activity rank",
	})
	if err != nil {
		return fmt.Errorf("register /rank: %w", err)
	}
	return nil
}
