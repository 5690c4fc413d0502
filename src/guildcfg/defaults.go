package guildcfg

import "encoding/json"

// Defaults returns the complete default guild configuration. Every
// stored document is merged over a fresh copy of this value.
func Defaults() GuildConfig {
	return GuildConfig{
		Lang: "en",
		JL: JoinLeaveConfig{
			Enabled:    false,
			IgnoreBots: true,
			JoinEmbed: EmbedConfig{
				Title:       "Welcome!",
				Description: "{user} just joined {guild}.",
				Color:       "#57F287",
			},
			LeaveEmbed: EmbedConfig{
				Title:       "Goodbye",
				Description: "{user} left the server.",
				Color:       "#ED4245",
			},
		},
		Ticket: TicketConfig{
			Panels: []Panel{DefaultPanel()},
		},
		Rank: RankConfig{
			Enabled:         true,
			CooldownSeconds: 60,
			Embed: EmbedConfig{
				Title:       "Rank - {user}",
				Description: "Your current activity stats.",
				Color:       "#6D7CFF",
			},
			Leaderboard: Leaderboard{
				Enabled:         false,
				IntervalMinutes: 10,
			},
		},
	}
}

// DefaultPanel returns the default ticket panel. It is also used to
// backfill missing fields on stored panels.
func DefaultPanel() Panel {
	return Panel{
		Name:         "Support",
		Enabled:      true,
		Mode:         "channel",
		NameTemplate: "ticket-{count}-{user}",
		Types:        []string{"question", "report", "other"},
		Limits: Limits{
			MaxOpenPerUser:  5,
			CooldownMinutes: 30,
		},
		Form: Form{
			GenreEnabled:   true,
			BodyEnabled:    true,
			ImageEnabled:   true,
			UrgencyEnabled: true,
			UrgencyChoices: []string{"low", "high", "urgent"},
		},
		Post: Post{
			Enabled: true,
			Layout:  "vertical",
			TemplateSection: Section{
				Title:       "Request",
				Description: "Type: {type}\nUrgency: {urgency}",
			},
			RulesSection: Section{
				Title:       "Rules",
				Description: "Do not post personal information.\nNo @everyone mentions.",
			},
		},
		Close: ClosePolicy{
			ConfirmRequired: true,
			AllowReopen:     true,
			DeleteAfterDays: 14,
		},
		AutoDelete: AutoDelete{
			Enabled:         false,
			InactiveMinutes: 0,
		},
	}
}

// ApplyDefaults merges a sparse JSON document over the default
// configuration and returns the completed typed config. Unknown keys
// are ignored; invalid JSON yields the defaults and an error so the
// caller can decide to re-seed. This is the only place defaulting
// happens; business logic always receives a complete document.
func ApplyDefaults(raw []byte) (GuildConfig, error) {
	base := toMap(Defaults())

	var doc map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			cfg := Defaults()
			return cfg, err
		}
	}

	merged := deepMerge(base, doc)
	mergePanelDefaults(merged)

	var cfg GuildConfig
	buf, err := json.Marshal(merged)
	if err != nil {
		return Defaults(), err
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return Defaults(), err
	}

	normalizePanels(&cfg)
	return cfg, nil
}

// mergePanelDefaults merges every stored panel entry element-wise over
// the default panel at the map level. deepMerge replaces arrays
// wholesale, and after unmarshal an absent boolean is indistinguishable
// from an explicit false, so this is the only point where a sparse
// panel can keep defaults like enabled or confirm_required.
func mergePanelDefaults(merged map[string]any) {
	ticket, ok := merged["ticket"].(map[string]any)
	if !ok {
		return
	}
	panels, ok := ticket["panels"].([]any)
	if !ok {
		return
	}
	def := toPanelMap(DefaultPanel())
	for i, p := range panels {
		if pm, ok := p.(map[string]any); ok {
			panels[i] = deepMerge(def, pm)
		}
	}
	ticket["panels"] = panels
}

// normalizePanels guarantees at least one panel and validates each
// panel's vocabulary fields and numeric bounds.
func normalizePanels(cfg *GuildConfig) {
	if len(cfg.Ticket.Panels) == 0 {
		cfg.Ticket.Panels = []Panel{DefaultPanel()}
		return
	}
	def := DefaultPanel()
	for i := range cfg.Ticket.Panels {
		p := &cfg.Ticket.Panels[i]
		if p.Mode != "channel" && p.Mode != "thread" {
			p.Mode = def.Mode
		}
		if p.Name == "" {
			p.Name = def.Name
		}
		if p.NameTemplate == "" {
			p.NameTemplate = def.NameTemplate
		}
		if len(p.Types) == 0 {
			p.Types = append([]string(nil), def.Types...)
		}
		if len(p.Form.UrgencyChoices) == 0 {
			p.Form.UrgencyChoices = append([]string(nil), def.Form.UrgencyChoices...)
		}
		if p.Limits.MaxOpenPerUser < 0 {
			p.Limits.MaxOpenPerUser = 0
		}
		if p.Limits.CooldownMinutes < 0 {
			p.Limits.CooldownMinutes = 0
		}
		if p.Close.DeleteAfterDays < 0 {
			p.Close.DeleteAfterDays = 0
		}
		if p.AutoDelete.InactiveMinutes < 0 {
			p.AutoDelete.InactiveMinutes = 0
		}
		if p.Post.Layout != "vertical" && p.Post.Layout != "horizontal" {
			p.Post.Layout = def.Post.Layout
		}
	}
}

// deepMerge overlays src on top of dst, recursing into nested objects.
// Arrays and scalars in src replace dst wholesale, matching the
// original document semantics.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if dv, ok := out[k].(map[string]any); ok {
			if sv, ok := v.(map[string]any); ok {
				out[k] = deepMerge(dv, sv)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func toMap(cfg GuildConfig) map[string]any {
	buf, _ := json.Marshal(cfg)
	var m map[string]any
	_ = json.Unmarshal(buf, &m)
	return m
}

func toPanelMap(p Panel) map[string]any {
	buf, _ := json.Marshal(p)
	var m map[string]any
	_ = json.Unmarshal(buf, &m)
	return m
}
