package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/delinked/delinked/core"
	"github.com/delinked/delinked/obs"
	"github.com/delinked/delinked/ports"
	"github.com/delinked/delinked/service"
)

// SetupRouter wires the API surface onto a gin engine.
func SetupRouter(authService *service.AuthService, profileService *service.ProfileService, tokenizer ports.Tokenizer) *gin.Engine {
	router := gin.Default()
	router.Use(obs.Instrument())

	authHandlers := NewAuthHandlers(authService)
	requireAuth := AuthMiddleware(tokenizer)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.GET("/nonce/:address", authHandlers.Nonce)
		auth.POST("/authenticate", authHandlers.Authenticate)
		auth.GET("/me", requireAuth, authHandlers.Me)
	}

	for _, role := range []core.Role{core.RoleOrganizer, core.RoleCandidate} {
		handlers := NewProfileHandlers(profileService, role)
		group := api.Group("/" + string(role) + "s")
		group.Use(requireAuth, RequireRole(role))
		{
			group.GET("/profile", handlers.Get)
			group.PUT("/profile", handlers.Update)
		}
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", obs.Handler())

	return router
}
