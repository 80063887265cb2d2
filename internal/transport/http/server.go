package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/auth"
	"github.com/akarpov/murmur-server/internal/config"
	"github.com/akarpov/murmur-server/internal/core"
	"github.com/akarpov/murmur-server/internal/identity"
	"github.com/akarpov/murmur-server/internal/notify"
	"github.com/akarpov/murmur-server/internal/store"
)

// NewServer builds the HTTP server: REST API plus the websocket endpoint.
func NewServer(
	manager *core.Manager,
	resolver *identity.Resolver,
	authService *auth.Service,
	notifier *notify.Dispatcher,
	st store.Store,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	chatHandlers := NewChatHandlers(st, notifier, logger)

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)

	authed := router.Group("/api")
	authed.Use(AuthMiddleware(resolver, logger))
	{
		authed.POST("/logout", apiHandlers.Logout)
		authed.GET("/me", userHandlers.Me)
		authed.GET("/users", userHandlers.ListUsers)
		authed.GET("/chats", chatHandlers.ListChats)
		authed.POST("/messages", chatHandlers.SendMessage)
		authed.POST("/messages/:id/read", chatHandlers.MarkRead)
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(manager, resolver, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
