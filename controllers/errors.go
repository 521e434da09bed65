package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/middlewares"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
)

// respondServiceError maps service errors to HTTP status codes. Store errors
// are not echoed to the client.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrAuthRejected):
		utils.RespondError(c, http.StatusUnauthorized, identity.ErrAuthRejected)
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrSweepRunning):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, services.ErrPersistence):
		utils.ErrorLogger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		utils.RespondError(c, http.StatusServiceUnavailable, services.ErrPersistence)
	default:
		utils.ErrorLogger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middlewares.CurrentPrincipal(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, identity.ErrAuthRejected)
	}
	return p, ok
}

// lookupUser rejects target user ids that have no account.
func lookupUser(ctx context.Context, users repository.UserStore, id uint) error {
	_, err := users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: user %d", services.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrPersistence, err)
	}
	return nil
}
