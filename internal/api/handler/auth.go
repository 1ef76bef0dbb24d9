package handler

import (
	"net/http"

	"resolvex/backend/internal/users"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FullName   string `json:"full_name" binding:"required"`
	Department string `json:"department"`
}

func (r registerRequest) input() users.RegisterInput {
	return users.RegisterInput{
		Email:      r.Email,
		Password:   r.Password,
		FullName:   r.FullName,
		Department: r.Department,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a self-service account with role user.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	u, err := h.Users.Register(c.Request.Context(), req.input())
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Login exchanges credentials for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
