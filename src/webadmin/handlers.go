package webadmin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lumehq/lumebot/src/guildcfg"
)

// PanelDeployer posts a ticket panel message into a channel. Satisfied
// by the tickets module.
type PanelDeployer interface {
	DeployPanel(guildID, channelID string, panelIndex int) error
}

// Guilds serves the per-guild configuration API consumed by the admin
// UI. All free-form strings pass through a strict sanitizer before
// they are persisted; the bot renders them into embeds verbatim.
type Guilds struct {
	cfgStore *guildcfg.Store
	deployer PanelDeployer
	policy   *bluemonday.Policy
}

func NewGuilds(cfgStore *guildcfg.Store, deployer PanelDeployer) Guilds {
	return Guilds{
		cfgStore: cfgStore,
		deployer: deployer,
		policy:   bluemonday.StrictPolicy(),
	}
}

// GetConfig returns the complete (defaulted) configuration document.
func (g Guilds) GetConfig(c *gin.Context) {
	cfg, err := g.cfgStore.Load(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "config load failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PutConfig replaces the configuration document. The submitted
// document may be sparse: it is merged over defaults exactly like a
// stored document, then validated and sanitized.
func (g Guilds) PutConfig(c *gin.Context) {
	guildID := c.Param("id")

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "unreadable body"})
		return
	}
	if !json.Valid(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid json"})
		return
	}

	cfg, err := guildcfg.ApplyDefaults(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid document"})
		return
	}
	if len(cfg.Ticket.Panels) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "at least one panel is required"})
		return
	}

	g.sanitize(&cfg)

	if err := g.cfgStore.Save(guildID, &cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "config save failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeletePanel removes a panel by index. The default panel at index 0
// is permanent and can only be disabled.
func (g Guilds) DeletePanel(c *gin.Context) {
	guildID := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad panel index"})
		return
	}
	if index == 0 {
		c.JSON(http.StatusForbidden, gin.H{"err": "the default panel cannot be deleted, only disabled"})
		return
	}

	cfg, err := g.cfgStore.Load(guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "config load failed"})
		return
	}
	if index < 0 || index >= len(cfg.Ticket.Panels) {
		c.JSON(http.StatusNotFound, gin.H{"err": "no such panel"})
		return
	}

	cfg.Ticket.Panels = append(cfg.Ticket.Panels[:index], cfg.Ticket.Panels[index+1:]...)
	if err := g.cfgStore.Save(guildID, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "config save failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeployPanel posts the panel message into the requested channel.
func (g Guilds) DeployPanel(c *gin.Context) {
	guildID := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad panel index"})
		return
	}

	var req struct {
		ChannelID string `json:"channel_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	if err := g.deployer.DeployPanel(guildID, req.ChannelID, index); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (g Guilds) sanitize(cfg *guildcfg.GuildConfig) {
	clean := func(s *string) { *s = g.policy.Sanitize(*s) }

	for _, e := range []*guildcfg.EmbedConfig{&cfg.JL.JoinEmbed, &cfg.JL.LeaveEmbed, &cfg.Rank.Embed} {
		clean(&e.Title)
		clean(&e.Description)
		clean(&e.Footer)
	}

	for i := range cfg.Ticket.Panels {
		p := &cfg.Ticket.Panels[i]
		clean(&p.Name)
		clean(&p.NameTemplate)
		for j := range p.Types {
			clean(&p.Types[j])
		}
		for j := range p.Form.UrgencyChoices {
			clean(&p.Form.UrgencyChoices[j])
		}
		clean(&p.Post.TemplateSection.Title)
		clean(&p.Post.TemplateSection.Description)
		clean(&p.Post.RulesSection.Title)
		clean(&p.Post.RulesSection.Description)
	}
}
