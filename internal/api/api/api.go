package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/cmd/middleware"
	"github.com/Match-Score-project/Match-Score/internal/handler"
)

type Routers struct {
	Handler *handler.Handler
	// Gate authenticates every route outside /v1/auth.
	Gate gin.HandlerFunc
	// Realtime serves the socket.io endpoint; nil disables it.
	Realtime http.Handler
	Mode     string
	// AllowOrigins enables credentialed CORS for these origins; empty uses cors.Default.
	AllowOrigins []string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(middleware.LoggingMiddleware())
	if len(r.AllowOrigins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = r.AllowOrigins
		cc.AllowCredentials = true
		app.Use(cors.New(cc))
	} else {
		app.Use(cors.Default())
	}

	h := r.Handler
	auth := app.Group("/v1/auth")
	auth.POST("/signup", h.SignUp)
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)
	auth.POST("/password-reset", h.RequestPasswordReset)
	auth.POST("/password-reset/confirm", h.ConfirmPasswordReset)

	apiGroup := app.Group("/v1", r.Gate)

	apiGroup.GET("/me", h.Me)
	apiGroup.PUT("/me", h.UpdateMe)
	apiGroup.PUT("/me/theme", h.SetTheme)
	apiGroup.PUT("/me/photo", h.SetPhoto)
	apiGroup.GET("/me/filters", h.GetFilters)
	apiGroup.PUT("/me/filters", h.PutFilters)
	apiGroup.GET("/flash", h.GetFlash)
	apiGroup.GET("/dashboard", h.Dashboard)
	apiGroup.POST("/uploads", h.Upload)

	apiGroup.GET("/matches", h.ListMatches)
	apiGroup.POST("/matches", h.CreateMatch)
	apiGroup.GET("/matches/mine", h.MyMatches)
	apiGroup.GET("/matches/registered", h.RegisteredMatches)
	apiGroup.GET("/matches/:id", h.MatchDetails)
	apiGroup.PUT("/matches/:id", h.UpdateMatch)
	apiGroup.DELETE("/matches/:id", h.DeleteMatch)

	apiGroup.GET("/matches/:id/registration", h.RegistrationForm)
	apiGroup.POST("/matches/:id/registration", h.Register)
	apiGroup.DELETE("/matches/:id/registration", h.CancelRegistration)
	apiGroup.DELETE("/matches/:id/players/:uid", h.RemovePlayer)
	apiGroup.GET("/matches/:id/invites", h.InviteCandidates)
	apiGroup.POST("/matches/:id/invites", h.Invite)

	apiGroup.GET("/users/search", h.SearchUsers)
	apiGroup.GET("/friends", h.ListFriends)
	apiGroup.GET("/friends/requests", h.FriendRequests)
	apiGroup.GET("/friends/online", h.OnlineFriends)
	apiGroup.POST("/friends/:uid/request", h.SendFriendRequest)
	apiGroup.POST("/friends/:uid/accept", h.AcceptFriend)
	apiGroup.POST("/friends/:uid/decline", h.DeclineFriend)
	apiGroup.DELETE("/friends/:uid", h.RemoveFriend)

	apiGroup.GET("/notifications", h.ListNotifications)
	apiGroup.POST("/notifications/read", h.MarkNotificationsRead)
	apiGroup.DELETE("/notifications/:id", h.DeleteNotification)

	if r.Realtime != nil {
		app.GET("/socket.io/*any", gin.WrapH(r.Realtime))
		app.POST("/socket.io/*any", gin.WrapH(r.Realtime))
	}

	app.GET("/healthz", func(c *ginext.Context) {
		c.String(http.StatusOK, "ok")
	})

	return app
}
