// Package http wires the HTTP surface: the cookie-session identity
// collaborator, the thin REST API over persisted rooms, and the websocket
// upgrade endpoint.
package http

import (
	"context"

	"github.com/dkeye/Watch/internal/adapters/signal"
	"github.com/dkeye/Watch/internal/config"
	"github.com/dkeye/Watch/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClientTokenMiddleware assigns every browser a stable connection token.
// The token doubles as the session id on the realtime side.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// IdentityMiddleware resolves the authenticated identity from the cookie
// session into the request context. It is the single authentication
// collaborator: downstream code sees one resolved identity or nothing.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		if id, ok := s.Get("account_id").(string); ok {
			c.Set("account_id", id)
		}
		if name, ok := s.Get("display_name").(string); ok {
			c.Set("display_name", name)
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, st *store.Store, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("WatchSessions", cookieStore))
	r.Use(ClientTokenMiddleware())
	r.Use(IdentityMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	registerSessionRoutes(api)
	registerRoomRoutes(api, st)

	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	return r
}
