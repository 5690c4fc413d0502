package tickets

import (
	"context"
	"log"
	"time"

	"github.com/lumehq/lumebot/src/guildcfg"
)

// ConfigSnapshot pairs a guild with the configuration in force for one
// sweep pass.
type ConfigSnapshot struct {
	GuildID string
	Config  *guildcfg.GuildConfig
}

// sweepInterval is how often each guild's tickets are re-evaluated
// against retention policy, independent of request traffic.
const sweepInterval = 60 * time.Second

// Sweeper enforces retention policy: inactivity auto-delete for open
// and pending tickets, and aging out closed tickets. Resource deletion
// and record removal are independent best-effort steps; a failed
// deletion never wedges the sweep.
type Sweeper struct {
	engine *Engine
}

func NewSweeper(engine *Engine) *Sweeper {
	return &Sweeper{engine: engine}
}

// Run sweeps every guild returned by listGuilds on a fixed interval
// until ctx is cancelled. Config is re-read per sweep so admin edits
// take effect without restarts.
func (w *Sweeper) Run(ctx context.Context, listGuilds func() []string, loadConfig func(guildID string) (*ConfigSnapshot, error)) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, guildID := range listGuilds() {
				snap, err := loadConfig(guildID)
				if err != nil {
					log.Printf("tickets: sweep config %s: %v", guildID, err)
					continue
				}
				w.SweepGuild(ctx, snap)
			}
		}
	}
}

// SweepGuild applies retention policy to one guild's tickets.
func (w *Sweeper) SweepGuild(ctx context.Context, snap *ConfigSnapshot) {
	e := w.engine
	lock := e.guildLock(snap.GuildID)
	lock.Lock()
	defer lock.Unlock()

	all, err := e.store.List(snap.GuildID)
	if err != nil {
		log.Printf("tickets: sweep list %s: %v", snap.GuildID, err)
		return
	}

	now := e.now()
	for i := range all {
		t := &all[i]

		// No backing resource left: terminal, reap regardless of policy.
		if t.ResourceID() == "" {
			if err := e.store.Remove(snap.GuildID, t.ID); err != nil {
				log.Printf("tickets: sweep remove %s: %v", t.ID, err)
			}
			continue
		}

		// Panel deleted since creation: fail safe, keep the record.
		panel := snap.Config.PanelAt(t.PanelIndex)
		if panel == nil {
			continue
		}

		reap := false
		switch {
		case panel.AutoDelete.Enabled && t.Status.CountsAsOpen():
			mins := panel.AutoDelete.InactiveMinutes
			if mins > 0 && now.Sub(t.LastMessageAt) > time.Duration(mins)*time.Minute {
				reap = true
			}
		case t.Status == StatusClosed && t.ClosedAt != nil:
			days := int(now.Sub(*t.ClosedAt).Hours() / 24)
			if days >= panel.Close.DeleteAfterDays {
				reap = true
			}
		}
		if !reap {
			continue
		}

		if resource := t.ResourceID(); resource != "" {
			callCtx, cancel := context.WithTimeout(ctx, platformCallTimeout)
			if err := e.platform.DeleteResource(callCtx, resource); err != nil {
				// Record removal still proceeds: forward progress over
				// resource-leak avoidance.
				log.Printf("tickets: sweep delete %s: %v", resource, err)
			}
			cancel()
		}
		if err := e.store.Remove(snap.GuildID, t.ID); err != nil {
			log.Printf("tickets: sweep remove %s: %v", t.ID, err)
		}
	}
}
