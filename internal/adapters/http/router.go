package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/codesync/collab/internal/adapters/signal"
	"github.com/codesync/collab/internal/config"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
	"github.com/codesync/collab/internal/metrics"
	"github.com/codesync/collab/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

// Deps are the collaborators the router exposes. Store may be nil.
type Deps struct {
	Signal   *signal.SignalWSController
	Registry *core.Registry
	Store    store.DocumentStore
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// cookie session. It only correlates connections in logs; it is not an
// identity the coordinator trusts.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) http.Handler {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	cookieStore.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("CodeSyncSession", cookieStore))
	r.Use(ClientTokenMiddleware())

	ws := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	}
	r.GET("/ws", ws)

	index := filepath.Join(cfg.StaticPath, "index.html")
	hasStatic := fileExists(index)
	r.GET("/", func(c *gin.Context) {
		// the standalone server accepted sockets on the root path
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws(c)
			return
		}
		if hasStatic {
			c.File(index)
			return
		}
		c.JSON(http.StatusOK, healthBody())
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthBody())
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":         "Welcome to the CodeSync API",
			"status":          "running",
			"websocketStatus": "active",
			"rooms":           deps.Registry.Len(),
		})
	})
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Registry.List()})
	})
	api.GET("/rooms/:id/members", roomMembers(deps.Registry))

	if deps.Store != nil {
		pg := &playgroundHandlers{store: deps.Store}
		api.GET("/playgrounds/:id", pg.get)
		api.PUT("/playgrounds/:id/files/:fileId", pg.putFile)
	}

	if hasStatic {
		r.Static("/static", filepath.Join(cfg.StaticPath, "static"))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(index)
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("static_enabled", hasStatic).
		Bool("store_enabled", deps.Store != nil).Msg("router setup")

	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllow,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func healthBody() gin.H {
	return gin.H{"status": "ok", "message": "collaboration server is running"}
}

func roomMembers(reg *core.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var members []core.MemberDTO
		var info core.RoomInfo
		ok := reg.View(domain.RoomID(c.Param("id")), func(room *core.Room) {
			members = room.MembersSnapshot()
			info = room.Info()
		})
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"room": info, "members": members})
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
