package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
)

type ReminderController struct {
	Scheduler *services.ReminderScheduler
}

func NewReminderController(scheduler *services.ReminderScheduler) *ReminderController {
	return &ReminderController{Scheduler: scheduler}
}

// RunSweep triggers one sweep now. It shares the run lock with the cron job.
func (rc *ReminderController) RunSweep(c *gin.Context) {
	report, err := rc.Scheduler.RunNow(c.Request.Context(), services.SweepName(c.Param("sweep")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sweep finished", report)
}
