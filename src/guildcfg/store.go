package guildcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"
)

// GuildConfigRow is the persisted form of a guild configuration: one
// row per guild holding the raw JSON document.
type GuildConfigRow struct {
	GuildID string `gorm:"primaryKey;size:32"`
	Doc     string `gorm:"type:mediumtext"`
}

func (GuildConfigRow) TableName() string { return "guild_configs" }

// Store reads and writes per-guild configuration documents. Reads are
// read-mostly and always return a complete config (sparse or corrupt
// documents degrade to defaults).
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&GuildConfigRow{}); err != nil {
		return nil, fmt.Errorf("guildcfg: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the guild's configuration merged over defaults. A
// missing row is seeded with the default document; an unreadable
// document is replaced by defaults (self-healing rather than failing).
func (s *Store) Load(guildID string) (*GuildConfig, error) {
	var row GuildConfigRow
	err := s.db.First(&row, "guild_id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg := Defaults()
		if saveErr := s.Save(guildID, &cfg); saveErr != nil {
			log.Printf("guildcfg: seed %s: %v", guildID, saveErr)
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("guildcfg: load %s: %w", guildID, err)
	}

	cfg, mergeErr := ApplyDefaults([]byte(row.Doc))
	if mergeErr != nil {
		log.Printf("guildcfg: document for %s unreadable, re-seeding defaults: %v", guildID, mergeErr)
		if saveErr := s.Save(guildID, &cfg); saveErr != nil {
			log.Printf("guildcfg: re-seed %s: %v", guildID, saveErr)
		}
	}
	return &cfg, nil
}

// Save persists the complete configuration document for the guild.
func (s *Store) Save(guildID string, cfg *GuildConfig) error {
	buf, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("guildcfg: marshal %s: %w", guildID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := GuildConfigRow{GuildID: guildID, Doc: string(buf)}
	return s.db.Save(&row).Error
}
