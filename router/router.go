package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/controllers"
	"github.com/yeremiapane/gaming-portal/middlewares"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/services"
)

// Deps are the wired components the HTTP surface exposes.
type Deps struct {
	Resolver    middlewares.PrincipalResolver
	Rooms       *realtime.RoomRouter
	Messages    *services.MessageService
	Ledger      *services.NotificationLedger
	Notices     *services.NoticeService
	Scheduler   *services.ReminderScheduler
	Users       repository.UserStore
	Attachments services.AttachmentStore

	AllowedOrigin string
	UploadDir     string
	// RequestsPerMinute is the per-IP budget for REST routes. Zero disables it.
	RequestsPerMinute int
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.AllowedOrigin))
	r.Use(middlewares.LoggerMiddleware())

	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(d.Users)
	messageCtrl := controllers.NewMessageController(d.Messages, d.Attachments, d.Users)
	notificationCtrl := controllers.NewNotificationController(d.Ledger, d.Users)
	noticeCtrl := controllers.NewNoticeController(d.Notices)
	reminderCtrl := controllers.NewReminderController(d.Scheduler)
	realtimeCtrl := controllers.NewRealtimeController(d.Rooms, d.Messages, d.Users, d.AllowedOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/notices/active", noticeCtrl.ActiveNotices)

	// credential checked before the upgrade
	r.GET("/ws", middlewares.WebSocketAuthMiddleware(d.Resolver), realtimeCtrl.ServeWs)

	rest := []gin.HandlerFunc{middlewares.AuthMiddleware(d.Resolver)}
	if d.RequestsPerMinute > 0 {
		limiter := middlewares.NewRateLimiter(d.RequestsPerMinute, time.Minute)
		rest = append([]gin.HandlerFunc{limiter.RateLimit()}, rest...)
	}

	// ----------------------------------------------------------------
	//                      USER ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api", rest...)
	{
		api.GET("/me", userCtrl.GetProfile)

		api.POST("/messages", middlewares.RequireRole(models.RoleUser), messageCtrl.PostMessage)
		api.GET("/messages", middlewares.RequireRole(models.RoleUser), messageCtrl.GetMessages)
		api.POST("/messages/read", middlewares.RequireRole(models.RoleUser), messageCtrl.MarkRead)

		api.GET("/notifications", notificationCtrl.GetNotifications)
		api.GET("/notifications/unread-count", notificationCtrl.UnreadCount)
		api.PATCH("/notifications/read-all", notificationCtrl.MarkAllRead)
		api.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkRead)
	}

	// ----------------------------------------------------------------
	//                      STAFF ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin", append(rest, middlewares.RequireRole(models.RoleAdmin))...)
	{
		admin.GET("/conversations", messageCtrl.ListConversations)
		admin.GET("/conversations/:user_id/messages", messageCtrl.GetConversation)
		admin.POST("/conversations/:user_id/messages", messageCtrl.ReplyToConversation)
		admin.POST("/conversations/:user_id/read", messageCtrl.MarkConversationRead)
		admin.PATCH("/messages/status", messageCtrl.UpdateStatusBatch)
		admin.PATCH("/messages/:message_id/status", messageCtrl.UpdateStatus)

		admin.POST("/notifications", notificationCtrl.CreateNotification)

		admin.POST("/notices", noticeCtrl.CreateNotice)
		admin.PATCH("/notices/:notice_id/activate", noticeCtrl.ActivateNotice)
		admin.PATCH("/notices/:notice_id/deactivate", noticeCtrl.DeactivateNotice)
		admin.POST("/notices/:notice_id/fan-out", noticeCtrl.FanOutNotice)

		admin.POST("/reminders/:sweep/run", reminderCtrl.RunSweep)
	}

	return r
}
