package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const userKey = "user"

// RequestLogger logs one line per request.
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := h.log.Info()
		if status >= http.StatusInternalServerError {
			ev = h.log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Authenticate resolves the bearer token to the stored user. Browsers cannot
// set headers on websocket upgrades, so a token query parameter is accepted
// as well.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			h.abort(c, apperr.Unauthenticated("authorization token missing"))
			return
		}
		u, err := h.Users.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.abort(c, err)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

func actor(c *gin.Context) access.Actor {
	return access.ActorOf(*currentUser(c))
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) abort(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}

// bindJSON decodes the body into dst, reporting binding failures as
// validation errors.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.abort(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validationf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag())
	}
	return apperr.Validation("malformed request body")
}

func pathID(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validationf("invalid %s", name)
	}
	return uint(v), nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validationf("invalid %s", name)
	}
	return v, nil
}

func parseStatus(v string) (models.Status, error) {
	s, err := models.ParseStatus(v)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	return s, nil
}

func parsePriority(v string) (models.Priority, error) {
	p, err := models.ParsePriority(v)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	return p, nil
}
