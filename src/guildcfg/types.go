package guildcfg

// GuildConfig is the complete per-guild configuration document. Stored
// documents may be sparse; Load deep-merges them over Defaults so the
// rest of the codebase only ever sees a fully populated config.
type GuildConfig struct {
	Lang   string          `json:"lang"`
	JL     JoinLeaveConfig `json:"jl"`
	Ticket TicketConfig    `json:"ticket"`
	Rank   RankConfig      `json:"rank"`
}

type JoinLeaveConfig struct {
	Enabled      bool        `json:"enabled"`
	IgnoreBots   bool        `json:"ignore_bots"`
	ChannelJoin  string      `json:"channel_join"`
	ChannelLeave string      `json:"channel_leave"`
	AutoRoleID   string      `json:"auto_role_id"`
	JoinEmbed    EmbedConfig `json:"join_embed"`
	LeaveEmbed   EmbedConfig `json:"leave_embed"`
}

type EmbedConfig struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Footer      string `json:"footer"`
}

type RankConfig struct {
	Enabled         bool        `json:"enabled"`
	CooldownSeconds int         `json:"cooldown"`
	Embed           EmbedConfig `json:"embed"`
	Leaderboard     Leaderboard `json:"leaderboard"`
}

type Leaderboard struct {
	Enabled         bool   `json:"enabled"`
	ChannelID       string `json:"channel_id"`
	IntervalMinutes int    `json:"interval_minutes"`
	MessageID       string `json:"message_id"`
}

type TicketConfig struct {
	LogChannelID string  `json:"log_channel_id"`
	Panels       []Panel `json:"panels"`
}

// Panel is one configured ticket entry point. Panels are addressed by
// their index in TicketConfig.Panels; index 0 is the guild's permanent
// default panel and can only be disabled, never removed.
type Panel struct {
	Name                  string      `json:"panel_name"`
	Enabled               bool        `json:"enabled"`
	Mode                  string      `json:"mode"` // "channel" or "thread"
	NameTemplate          string      `json:"name_template"`
	Types                 []string    `json:"types"`
	Limits                Limits      `json:"limits"`
	Permissions           Permissions `json:"permissions"`
	Form                  Form        `json:"form"`
	Post                  Post        `json:"post"`
	Close                 ClosePolicy `json:"close"`
	AutoDelete            AutoDelete  `json:"auto_delete"`
	ParentCategoryID      string      `json:"parent_category_id"`
	ThreadParentChannelID string      `json:"thread_parent_channel_id"`
}

type Limits struct {
	MaxOpenPerUser  int `json:"max_open_per_user"`
	CooldownMinutes int `json:"cooldown_minutes"`
}

type Permissions struct {
	StaffRoleIDs []string `json:"staff_role_ids"`
}

type Form struct {
	GenreEnabled   bool     `json:"genre_enabled"`
	BodyEnabled    bool     `json:"body_enabled"`
	ImageEnabled   bool     `json:"image_enabled"`
	UrgencyEnabled bool     `json:"urgency_enabled"`
	UrgencyChoices []string `json:"urgency_choices"`
}

type Post struct {
	Enabled         bool    `json:"enabled"`
	Layout          string  `json:"layout"` // "vertical" or "horizontal"
	TemplateSection Section `json:"template_section"`
	RulesSection    Section `json:"rules_section"`
}

type Section struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ClosePolicy struct {
	ConfirmRequired  bool   `json:"confirm_required"`
	ClosedCategoryID string `json:"closed_category_id"`
	AllowReopen      bool   `json:"allow_reopen"`
	DeleteAfterDays  int    `json:"delete_after_days"`
}

type AutoDelete struct {
	Enabled         bool `json:"enabled"`
	InactiveMinutes int  `json:"inactive_minutes"`
}

// PanelAt returns the panel at index, or nil when the index is out of
// bounds. Callers must treat a nil panel as "panel no longer exists";
// admin edits can remove panels between interactions.
func (c *GuildConfig) PanelAt(index int) *Panel {
	if index < 0 || index >= len(c.Ticket.Panels) {
		return nil
	}
	return &c.Ticket.Panels[index]
}

// DefaultType returns the type label to fall back to for this panel.
func (p *Panel) DefaultType() string {
	if len(p.Types) > 0 {
		return p.Types[0]
	}
	return "question"
}

// ResolveType validates a requested type against the panel's type list.
func (p *Panel) ResolveType(requested string) string {
	for _, t := range p.Types {
		if t == requested {
			return requested
		}
	}
	return p.DefaultType()
}

// DefaultUrgency returns the urgency label to fall back to.
func (p *Panel) DefaultUrgency() string {
	if len(p.Form.UrgencyChoices) > 0 {
		return p.Form.UrgencyChoices[0]
	}
	return "low"
}

// ResolveUrgency validates a requested urgency against the panel choices.
func (p *Panel) ResolveUrgency(requested string) string {
	for _, u := range p.Form.UrgencyChoices {
		if u == requested {
			return requested
		}
	}
	return p.DefaultUrgency()
}
