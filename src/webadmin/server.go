package webadmin

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/lumehq/lumebot/src/config"
	"github.com/lumehq/lumebot/src/guildcfg"
)

// Module runs the admin panel HTTP API.
type Module struct {
	server *http.Server
}

func NewModule(cfg config.Config, cfgStore *guildcfg.Store, rdb *redis.Client, deployer PanelDeployer) *Module {
	engine := New(cfg, cfgStore, rdb, deployer)
	return &Module{
		server: &http.Server{
			Addr:              cfg.WebAddr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (m *Module) Name() string { return "webadmin" }

func (m *Module) Start(ctx context.Context) error {
	go func() {
		log.Printf("webadmin: listening on %s", m.server.Addr)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("webadmin: serve: %v", err)
		}
	}()
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("webadmin: shutdown: %v", err)
	}
}

// New builds the gin engine with all admin routes attached.
func New(cfg config.Config, cfgStore *guildcfg.Store, rdb *redis.Client, deployer PanelDeployer) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "PUT", "POST", "DELETE"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	auth := NewAuth(rdb, []byte(cfg.JWTSecret), cfg.AdminSecret)
	guilds := NewGuilds(cfgStore, deployer)

	api := g.Group("/api")
	api.POST("/auth/token", auth.Token)

	protected := api.Group("/guilds", auth.Middleware())
	protected.GET("/:id/config", guilds.GetConfig)
	protected.PUT("/:id/config", guilds.PutConfig)
	protected.DELETE("/:id/panels/:index", guilds.DeletePanel)
	protected.POST("/:id/panels/:index/deploy", guilds.DeployPanel)

	return g
}
