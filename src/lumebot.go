package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/lumehq/lumebot/src/config"
	"github.com/lumehq/lumebot/src/core"
	"github.com/lumehq/lumebot/src/data"
	"github.com/lumehq/lumebot/src/guildcfg"
	"github.com/lumehq/lumebot/src/joinleave"
	"github.com/lumehq/lumebot/src/rank"
	"github.com/lumehq/lumebot/src/tickets"
	"github.com/lumehq/lumebot/src/webadmin"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := db.AutoMigrate(&data.Setting{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	cfg := config.Load(db)
	if cfg.Token == "" {
		log.Fatal("discord token is not configured")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		log.Fatalf("discord: %v", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	cfgStore, err := guildcfg.NewStore(db)
	if err != nil {
		log.Fatalf("guildcfg: %v", err)
	}
	ticketStore, err := tickets.NewGormStore(db)
	if err != nil {
		log.Fatalf("tickets: %v", err)
	}

	ticketModule := tickets.NewModule(session, cfgStore, ticketStore)
	manager := core.NewManager(
		ticketModule,
		joinleave.NewModule(session, cfgStore),
		rank.NewModule(session, cfgStore, rdb),
		webadmin.NewModule(cfg, cfgStore, rdb, ticketModule),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		log.Fatalf("modules: %v", err)
	}
	if err := session.Open(); err != nil {
		log.Fatalf("discord open: %v", err)
	}
	log.Printf("lumebot: connected as %s", session.State.User.Username)

	if err := rank.RegisterCommands(session); err != nil {
		log.Printf("rank: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	manager.Stop(ctx)
	if err := session.Close(); err != nil {
		log.Printf("discord close: %v", err)
	}
}
