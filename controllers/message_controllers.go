package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
)

const maxAttachmentSize = 10 << 20

type MessageController struct {
	Messages    *services.MessageService
	Attachments services.AttachmentStore
	Users       repository.UserStore
}

func NewMessageController(messages *services.MessageService, attachments services.AttachmentStore, users repository.UserStore) *MessageController {
	return &MessageController{Messages: messages, Attachments: attachments, Users: users}
}

// readBody accepts either JSON {"text": "..."} or a multipart upload in the
// "file" field.
func (mc *MessageController) readBody(c *gin.Context) (models.MessageBody, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: file is required", services.ErrValidation)
		}
		if fh.Size > maxAttachmentSize {
			return nil, fmt.Errorf("%w: file exceeds 10MB", services.ErrValidation)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()

		ref, err := mc.Attachments.Store(c.Request.Context(), fh.Filename, f)
		if err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		return models.AttachmentMessage{Ref: ref}, nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return models.TextMessage{Text: req.Text}, nil
}

// post reads the body and stores the message. An uploaded file is removed
// again when the message is not recorded.
func (mc *MessageController) post(c *gin.Context, userID uint, sender models.SenderType) (*models.ConversationMessage, error) {
	body, err := mc.readBody(c)
	if err != nil {
		return nil, err
	}

	msg, err := mc.Messages.PostMessage(c.Request.Context(), userID, sender, body)
	if err != nil {
		if att, ok := body.(models.AttachmentMessage); ok {
			if rerr := mc.Attachments.Remove(c.Request.Context(), att.Ref); rerr != nil {
				utils.ErrorLogger.Warnf("Error removing attachment %s: %v", att.Ref, rerr)
			}
		}
		return nil, err
	}
	return msg, nil
}

// PostMessage -> user writes to support
func (mc *MessageController) PostMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	msg, err := mc.post(c, p.ID, models.SenderUser)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Message sent", msg)
}

// GetMessages -> own conversation history
func (mc *MessageController) GetMessages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	mc.history(c, p.ID)
}

// MarkRead -> user opened the conversation
func (mc *MessageController) MarkRead(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	changed, err := mc.Messages.MarkConversationRead(c.Request.Context(), p.ID, models.SenderUser)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conversation marked read", gin.H{"updated": len(changed)})
}

func (mc *MessageController) ListConversations(c *gin.Context) {
	summaries, err := mc.Messages.Conversations(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conversations", summaries)
}

func (mc *MessageController) GetConversation(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	mc.history(c, userID)
}

// ReplyToConversation -> staff writes into a user's conversation
func (mc *MessageController) ReplyToConversation(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	if err := lookupUser(c.Request.Context(), mc.Users, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	msg, err := mc.post(c, userID, models.SenderAdmin)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reply sent", msg)
}

func (mc *MessageController) MarkConversationRead(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	changed, err := mc.Messages.MarkConversationRead(c.Request.Context(), userID, models.SenderAdmin)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conversation marked read", gin.H{"updated": len(changed)})
}

func (mc *MessageController) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Status models.MessageStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	msg, err := mc.Messages.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Message status updated", msg)
}

func (mc *MessageController) UpdateStatusBatch(c *gin.Context) {
	var req struct {
		MessageIDs []uint               `json:"message_ids" binding:"required"`
		Status     models.MessageStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	msgs, err := mc.Messages.SetStatusBatch(c.Request.Context(), req.MessageIDs, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Message statuses updated", msgs)
}

func (mc *MessageController) history(c *gin.Context, userID uint) {
	var q services.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	page, err := mc.Messages.History(c.Request.Context(), userID, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conversation history", page)
}
