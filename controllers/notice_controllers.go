package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
)

type NoticeController struct {
	Notices *services.NoticeService
}

func NewNoticeController(notices *services.NoticeService) *NoticeController {
	return &NoticeController{Notices: notices}
}

// ActiveNotices is public; it feeds the site-wide banner.
func (nc *NoticeController) ActiveNotices(c *gin.Context) {
	list, err := nc.Notices.ActiveNotices(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active notices", list)
}

func (nc *NoticeController) CreateNotice(c *gin.Context) {
	var req services.NoticeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	notice, result, err := nc.Notices.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Notice created", gin.H{"notice": notice, "fan_out": result})
}

func (nc *NoticeController) ActivateNotice(c *gin.Context) {
	id, ok := parseIDParam(c, "notice_id")
	if !ok {
		return
	}
	notice, result, err := nc.Notices.Activate(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notice activated", gin.H{"notice": notice, "fan_out": result})
}

func (nc *NoticeController) DeactivateNotice(c *gin.Context) {
	id, ok := parseIDParam(c, "notice_id")
	if !ok {
		return
	}
	notice, err := nc.Notices.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notice deactivated", notice)
}

// FanOutNotice re-runs delivery for users missed by an earlier fan-out.
func (nc *NoticeController) FanOutNotice(c *gin.Context) {
	id, ok := parseIDParam(c, "notice_id")
	if !ok {
		return
	}
	result, err := nc.Notices.FanOut(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notice fan-out finished", result)
}
