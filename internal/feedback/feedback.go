// Package feedback decides whether a complaint's creator may rate its
// resolution.
package feedback

import (
	"strings"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Eligible reports whether feedback would be accepted regardless of rating:
// the actor created the complaint, the complaint is resolved or closed and
// no feedback exists yet.
func Eligible(a access.Actor, c *models.Complaint, alreadySubmitted bool) bool {
	return Check(a, c, alreadySubmitted, MinRating) == nil
}

// Check validates a submission. Every rejection is a validation error
// except an actor whose role cannot submit feedback at all.
func Check(a access.Actor, c *models.Complaint, alreadySubmitted bool, rating int) error {
	if err := access.Require(a, access.SubmitFeedback); err != nil {
		return err
	}
	switch {
	case c.CreatorID != a.ID:
		return apperr.Validation("only the creator can give feedback")
	case c.Status != models.StatusResolved && c.Status != models.StatusClosed:
		return apperr.Validationf("feedback needs a resolved or closed complaint, this one is %s", c.Status)
	case alreadySubmitted:
		return apperr.Validation("feedback already submitted for this complaint")
	case rating < MinRating || rating > MaxRating:
		return apperr.Validationf("rating must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

// Build returns the record to store for an accepted submission. Blank
// comments are dropped.
func Build(a access.Actor, c *models.Complaint, rating int, comment string) models.Feedback {
	fb := models.Feedback{ComplaintID: c.ID, UserID: a.ID, Rating: rating}
	if s := strings.TrimSpace(comment); s != "" {
		fb.Comment = &s
	}
	return fb
}
