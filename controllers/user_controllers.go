package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/utils"
)

type UserController struct {
	Users repository.UserStore
}

func NewUserController(users repository.UserStore) *UserController {
	return &UserController{Users: users}
}

// GetProfile -> the resolved principal plus its account record
func (uc *UserController) GetProfile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	user, err := uc.Users.FindByID(c.Request.Context(), p.ID)
	if errors.Is(err, repository.ErrNotFound) {
		utils.RespondError(c, http.StatusNotFound, errors.New("user not found"))
		return
	}
	if err != nil {
		utils.ErrorLogger.Errorf("Error loading profile %d: %v", p.ID, err)
		utils.RespondError(c, http.StatusServiceUnavailable, errors.New("profile unavailable"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "User profile", gin.H{
		"principal": p,
		"user":      user,
	})
}
