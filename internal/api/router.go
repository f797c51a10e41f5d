package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tavern-guild/tavern/internal/models"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger(), metrics())
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.authenticate(true), h.ServeWebsocket)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.authenticate(false), h.Me)

	adventurers := r.Group("/adventurers", h.authenticate(false))
	adventurers.GET("/leaderboard", h.GetLeaderboard)
	me := adventurers.Group("/me", h.requireRole(models.RoleAdventurer))
	me.GET("", h.GetAdventurerProfile)
	me.PATCH("", h.UpdateAdventurerProfile)
	me.GET("/skills", h.ListSkills)
	me.POST("/skills", h.AddSkill)
	me.PATCH("/skills/:skillId", h.UpdateSkill)
	me.DELETE("/skills/:skillId", h.DeleteSkill)
	me.GET("/certificates", h.ListCertificates)

	orgs := r.Group("/npc-organizations", h.authenticate(false))
	mine := orgs.Group("/me", h.requireRole(models.RoleNPC))
	mine.POST("", h.CreateOrganization)
	mine.GET("", h.GetMyOrganization)
	mine.PATCH("", h.UpdateMyOrganization)
	mine.GET("/trust", h.GetMyTrust)
	admin := orgs.Group("", h.requireRole(models.RoleGuildMaster))
	admin.GET("", h.ListOrganizations)
	admin.GET("/:id", h.GetOrganization)
	admin.PATCH("/:id", h.ModerateOrganization)

	questsGroup := r.Group("/quests/me", h.authenticate(false), h.requireRole(models.RoleNPC))
	questsGroup.POST("", h.CreateQuest)
	questsGroup.GET("", h.ListQuests)
	questsGroup.GET("/:id", h.GetQuest)
	questsGroup.PATCH("/:id", h.UpdateQuest)
	questsGroup.DELETE("/:id", h.DeleteQuest)
	questsGroup.PATCH("/:id/status", h.ChangeQuestStatus)
	r.POST("/quest/:questId/complete", h.authenticate(false), h.requireRole(models.RoleNPC), h.CompleteQuest)

	notificationsGroup := r.Group("/notifications", h.authenticate(false))
	notificationsGroup.GET("", h.ListNotifications)
	notificationsGroup.POST("", h.CreateNotification)
	notificationsGroup.PATCH("/mark-all-read", h.MarkAllNotificationsRead)
	notificationsGroup.PATCH("/:id/read", h.MarkNotificationRead)
}
