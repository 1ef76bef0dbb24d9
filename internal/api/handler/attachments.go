package handler

import (
	"errors"
	"fmt"
	"net/http"

	"resolvex/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

type feedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// UploadEvidence accepts a multipart form with a single "file" field.
func (h *Handler) UploadEvidence(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	// Headroom for the multipart envelope; the file store enforces the
	// exact payload limit.
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.abort(c, apperr.Validation("file too large"))
			return
		}
		h.abort(c, apperr.Validation("file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.abort(c, apperr.Internal("open upload", err))
		return
	}
	defer f.Close()

	ev, err := h.Complaints.AddEvidence(c.Request.Context(), actor(c), id, fh.Filename, f)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) ListEvidence(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	list, err := h.Complaints.ListEvidence(c.Request.Context(), actor(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) DownloadEvidence(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	ev, f, err := h.Complaints.OpenEvidence(c.Request.Context(), actor(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", ev.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", ev.FileName))
	http.ServeContent(c.Writer, c.Request, ev.FileName, ev.CreatedAt, f)
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	var req feedbackRequest
	if !h.bindJSON(c, &req) {
		return
	}
	fb, err := h.Complaints.SubmitFeedback(c.Request.Context(), actor(c), id, req.Rating, req.Comment)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (h *Handler) GetFeedback(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.abort(c, err)
		return
	}
	fb, err := h.Complaints.GetFeedback(c.Request.Context(), actor(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}
