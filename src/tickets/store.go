package tickets

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Store is the durable per-guild ticket collection. Implementations
// must keep ticket IDs unique per guild; ordering is not required.
// Callers serialize read-modify-write sequences through Engine's
// per-guild lock, so implementations only need individual operations
// to be safe.
type Store interface {
	List(guildID string) ([]Ticket, error)
	Get(guildID, ticketID string) (*Ticket, error)
	FindByResource(guildID, resourceID string) (*Ticket, error)
	Append(t *Ticket) error
	Update(t *Ticket) error
	Remove(guildID, ticketID string) error
}

// GormStore persists tickets in MySQL, one row per ticket.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Ticket{}); err != nil {
		return nil, fmt.Errorf("tickets: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) List(guildID string) ([]Ticket, error) {
	var out []Ticket
	if err := s.db.Where("guild_id = ?", guildID).Find(&out).Error; err != nil {
		// Degrade to empty rather than wedging the engine; the table
		// self-heals on the next write.
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Get(guildID, ticketID string) (*Ticket, error) {
	var t Ticket
	err := s.db.First(&t, "guild_id = ? AND id = ?", guildID, ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) FindByResource(guildID, resourceID string) (*Ticket, error) {
	if resourceID == "" {
		return nil, ErrNotFound
	}
	var t Ticket
	err := s.db.First(&t, "guild_id = ? AND (channel_id = ? OR thread_id = ?)",
		guildID, resourceID, resourceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) Append(t *Ticket) error {
	return s.db.Create(t).Error
}

func (s *GormStore) Update(t *Ticket) error {
	return s.db.Save(t).Error
}

func (s *GormStore) Remove(guildID, ticketID string) error {
	return s.db.Delete(&Ticket{}, "guild_id = ? AND id = ?", guildID, ticketID).Error
}

// MemoryStore keeps tickets in memory. Used by tests and useful for
// ephemeral runs without a database.
type MemoryStore struct {
	mu      sync.Mutex
	byGuild map[string]map[string]Ticket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byGuild: make(map[string]map[string]Ticket)}
}

func (s *MemoryStore) List(guildID string) ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Ticket
	for _, t := range s.byGuild[guildID] {
		out = append(out, t)
	}
	return out, nil
}

func (s *MemoryStore) Get(guildID, ticketID string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byGuild[guildID][ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := t
	return &cp, nil
}

func (s *MemoryStore) FindByResource(guildID, resourceID string) (*Ticket, error) {
	if resourceID == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byGuild[guildID] {
		if t.ChannelID == resourceID || t.ThreadID == resourceID {
			cp := t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Append(t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.byGuild[t.GuildID]
	if g == nil {
		g = make(map[string]Ticket)
		s.byGuild[t.GuildID] = g
	}
	if _, exists := g[t.ID]; exists {
		return fmt.Errorf("tickets: duplicate id %s", t.ID)
	}
	g[t.ID] = *t
	return nil
}

func (s *MemoryStore) Update(t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.byGuild[t.GuildID]
	if g == nil {
		return ErrNotFound
	}
	if _, ok := g[t.ID]; !ok {
		return ErrNotFound
	}
	g[t.ID] = *t
	return nil
}

func (s *MemoryStore) Remove(guildID, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byGuild[guildID], ticketID)
	return nil
}
