package handler

import (
	"net/http"

	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"
	"resolvex/backend/internal/users"

	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	registerRequest
	Role string `json:"role" binding:"required"`
}

// ListUsers accepts an optional role query filter.
func (h *Handler) ListUsers(c *gin.Context) {
	var role models.Role
	if v := c.Query("role"); v != "" {
		r, err := models.ParseRole(v)
		if err != nil {
			h.abort(c, apperr.Validation(err.Error()))
			return
		}
		role = r
	}
	list, err := h.Users.List(c.Request.Context(), actor(c), role)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListStaff(c *gin.Context) {
	list, err := h.Users.ListStaff(c.Request.Context(), actor(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateUser lets admins provision staff and admin accounts.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !h.bindJSON(c, &req) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		h.abort(c, apperr.Validation(err.Error()))
		return
	}
	u, err := h.Users.CreateUser(c.Request.Context(), actor(c), users.CreateInput{
		RegisterInput: req.input(),
		Role:          role,
	})
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}
