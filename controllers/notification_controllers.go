package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
)

type NotificationController struct {
	Ledger *services.NotificationLedger
	Users  repository.UserStore
}

func NewNotificationController(ledger *services.NotificationLedger, users repository.UserStore) *NotificationController {
	return &NotificationController{Ledger: ledger, Users: users}
}

// GetNotifications -> own inbox, newest first
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var q struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	list, err := nc.Ledger.List(c.Request.Context(), p.ID, q.Limit, q.Offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", list)
}

func (nc *NotificationController) UnreadCount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	count, err := nc.Ledger.UnreadCount(c.Request.Context(), p.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread count", gin.H{"unread_count": count})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "notif_id")
	if !ok {
		return
	}

	notif, err := nc.Ledger.MarkRead(c.Request.Context(), p.ID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked read", notif)
}

func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	updated, err := nc.Ledger.MarkAllRead(c.Request.Context(), p.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked read", gin.H{"updated": updated})
}

// CreateNotification -> staff notifies one user
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	var req struct {
		UserID uint                    `json:"user_id" binding:"required"`
		Title  string                  `json:"title" binding:"required"`
		Body   string                  `json:"body"`
		Kind   models.NotificationKind `json:"kind"`
		Link   string                  `json:"link"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := lookupUser(c.Request.Context(), nc.Users, req.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	notif, err := nc.Ledger.Create(c.Request.Context(), services.NewNotification{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Kind:   req.Kind,
		Link:   req.Link,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Notification created for user %d: %s", notif.UserID, notif.Title)
	utils.RespondJSON(c, http.StatusCreated, "Notification created", notif)
}
