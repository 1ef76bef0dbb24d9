package handler

import (
	"net/http"

	"resolvex/backend/internal/complaint"
	"resolvex/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createComplaintRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"required"`
	Location    string `json:"location" binding:"max=255"`
}

// Version is the version the client last read. When present, the change is
// rejected with 409 if the complaint moved on since.
type versioned struct {
	Version *int `json:"version"`
}

type assignRequest struct {
	StaffID uint `json:"staff_id" binding:"required"`
	versioned
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	versioned
}

type priorityRequest struct {
	Priority string `json:"priority" binding:"required"`
	versioned
}

type categorizeRequest struct {
	Category string `json:"category" binding:"required"`
	Priority string `json:"priority" binding:"required"`
	versioned
}

type escalateRequest struct {
	Reason string `json:"reason"`
	versioned
}

func (h *Handler) CreateComplaint(c *gin.Context) {
	var req createComplaintRequest
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.Complaints.Submit(c.Request.Context(), actor(c), complaint.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ListComplaints accepts status, priority, limit and offset query filters.
func (h *Handler) ListComplaints(c *gin.Context) {
	var lf complaint.ListFilter
	var err error
	if v := c.Query("status"); v != "" {
		if lf.Status, err = parseStatus(v); err != nil {
			h.abort(c, err)
			return
		}
	}
	if v := c.Query("priority"); v != "" {
		if lf.Priority, err = parsePriority(v); err != nil {
			h.abort(c, err)
			return
		}
	}
	if lf.Limit, err = queryInt(c, "limit"); err != nil {
		h.abort(c, err)
		return
	}
	if lf.Offset, err = queryInt(c, "offset"); err != nil {
		h.abort(c, err)
		return
	}

	list, err := h.Complaints.List(c.Request.Context(), actor(c), lf)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// complaintView is a complaint plus what the caller can do with it and how
// many clients are watching it live.
type complaintView struct {
	*models.Complaint
	complaint.Actions
	Watchers int `json:"watchers"`
}

func (h *Handler) GetComplaint(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	ctx := c.Request.Context()
	out, err := h.Complaints.Get(ctx, actor(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	act, err := h.Complaints.ActionsFor(ctx, actor(c), out)
	if err != nil {
		h.abort(c, err)
		return
	}
	view := complaintView{Complaint: out, Actions: act}
	if h.Hub != nil {
		if view.Watchers, err = h.Hub.Watchers(ctx, id); err != nil {
			h.log.Debug().Err(err).Uint("complaint_id", id).Msg("watcher count unavailable")
		}
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ComplaintLogs(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	logs, err := h.Complaints.Timeline(c.Request.Context(), actor(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) AssignComplaint(c *gin.Context) {
	var req assignRequest
	h.mutate(c, &req, func(id uint) (*models.Complaint, error) {
		return h.Complaints.Assign(c.Request.Context(), actor(c), id, req.StaffID, req.Version)
	})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	h.mutate(c, &req, func(id uint) (*models.Complaint, error) {
		to, err := parseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		return h.Complaints.UpdateStatus(c.Request.Context(), actor(c), id, to, req.Version)
	})
}

func (h *Handler) UpdatePriority(c *gin.Context) {
	var req priorityRequest
	h.mutate(c, &req, func(id uint) (*models.Complaint, error) {
		p, err := parsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		return h.Complaints.UpdatePriority(c.Request.Context(), actor(c), id, p, req.Version)
	})
}

func (h *Handler) CategorizeComplaint(c *gin.Context) {
	var req categorizeRequest
	h.mutate(c, &req, func(id uint) (*models.Complaint, error) {
		p, err := parsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		return h.Complaints.Categorize(c.Request.Context(), actor(c), id, req.Category, p, req.Version)
	})
}

func (h *Handler) EscalateComplaint(c *gin.Context) {
	var req escalateRequest
	h.mutate(c, &req, func(id uint) (*models.Complaint, error) {
		return h.Complaints.Escalate(c.Request.Context(), actor(c), id, req.Reason, req.Version)
	})
}

// mutate is the shared shape of every transition route: parse the id, bind
// the body, apply, answer with the updated complaint.
func (h *Handler) mutate(c *gin.Context, req any, apply func(id uint) (*models.Complaint, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	if !h.bindJSON(c, req) {
		return
	}
	out, err := apply(id)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) AnalyticsSummary(c *gin.Context) {
	sum, err := h.Complaints.Summary(c.Request.Context(), actor(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
