// Package handler exposes the complaint tracker over HTTP with gin.
package handler

import (
	"net/http"
	"time"

	"resolvex/backend/internal/complaint"
	"resolvex/backend/internal/hub"
	"resolvex/backend/internal/users"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler holds the services the routes call into.
type Handler struct {
	Complaints *complaint.Service
	Users      *users.Service
	// Hub is optional; without it the watch route is not registered.
	Hub *hub.ManagerService
	// MaxUploadBytes caps evidence request bodies; zero leaves them unbounded.
	MaxUploadBytes int64

	log zerolog.Logger
}

func NewHandler(complaints *complaint.Service, us *users.Service, h *hub.ManagerService, log zerolog.Logger) *Handler {
	return &Handler{
		Complaints: complaints,
		Users:      us,
		Hub:        h,
		log:        log.With().Str("component", "http").Logger(),
	}
}

// Router builds the gin engine with every route mounted under /api.
func (h *Handler) Router(corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.RequestLogger())
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/health", h.Health)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.Authenticate(), h.Me)

	secured := api.Group("", h.Authenticate())

	complaints := secured.Group("/complaints")
	complaints.POST("", h.CreateComplaint)
	complaints.GET("", h.ListComplaints)
	complaints.GET("/:id", h.GetComplaint)
	complaints.GET("/:id/logs", h.ComplaintLogs)
	complaints.POST("/:id/assign", h.AssignComplaint)
	complaints.PATCH("/:id/status", h.UpdateStatus)
	complaints.PATCH("/:id/priority", h.UpdatePriority)
	complaints.POST("/:id/categorize", h.CategorizeComplaint)
	complaints.POST("/:id/escalate", h.EscalateComplaint)
	if h.Hub != nil {
		complaints.GET("/:id/watch", h.WatchComplaint)
	}

	evidence := secured.Group("/evidence")
	evidence.POST("/:id", h.UploadEvidence)
	evidence.GET("/:id", h.ListEvidence)
	evidence.GET("/file/:id", h.DownloadEvidence)

	fb := secured.Group("/feedback")
	fb.POST("/:id", h.SubmitFeedback)
	fb.GET("/:id", h.GetFeedback)

	secured.GET("/analytics/summary", h.AnalyticsSummary)

	us := secured.Group("/users")
	us.GET("", h.ListUsers)
	us.GET("/staff", h.ListStaff)
	us.POST("", h.CreateUser)

	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
