package complaint

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/feedback"
	"resolvex/backend/internal/models"
)

// AddEvidence stores a file for the complaint. Evidence does not touch the
// lifecycle, so it may run concurrently with transitions.
func (s *Service) AddEvidence(ctx context.Context, a access.Actor, complaintID uint, fileName string, r io.Reader) (*models.Evidence, error) {
	c, err := s.Storage.GetComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if !access.CanAttachEvidence(a, c) {
		return nil, apperr.Authorization("you cannot add evidence to this complaint")
	}
	if s.Files == nil {
		return nil, apperr.Internal("add evidence", os.ErrInvalid)
	}

	saved, err := s.Files.Save(ctx, r)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = saved.StoredName
	}
	ev := &models.Evidence{
		ComplaintID: c.ID,
		UploaderID:  a.ID,
		FileName:    name,
		StoredName:  saved.StoredName,
		ContentType: saved.ContentType,
		Size:        saved.Size,
		CreatedAt:   s.Now(),
	}
	if err := s.Storage.CreateEvidence(ctx, ev); err != nil {
		if rmErr := s.Files.Remove(saved.StoredName); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("file", saved.StoredName).Msg("remove orphaned upload")
		}
		return nil, err
	}
	return ev, nil
}

func (s *Service) ListEvidence(ctx context.Context, a access.Actor, complaintID uint) ([]models.Evidence, error) {
	if _, err := s.Get(ctx, a, complaintID); err != nil {
		return nil, err
	}
	return s.Storage.ListEvidence(ctx, complaintID)
}

// OpenEvidence returns the metadata and an open handle to the payload. The
// caller closes the file.
func (s *Service) OpenEvidence(ctx context.Context, a access.Actor, evidenceID uint) (*models.Evidence, *os.File, error) {
	ev, err := s.Storage.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.Get(ctx, a, ev.ComplaintID); err != nil {
		return nil, nil, err
	}
	if s.Files == nil {
		return nil, nil, apperr.NotFound("file not found")
	}
	f, err := s.Files.Open(ev.StoredName)
	if err != nil {
		return nil, nil, err
	}
	return ev, f, nil
}

// SubmitFeedback records the creator's rating of a resolved complaint.
func (s *Service) SubmitFeedback(ctx context.Context, a access.Actor, complaintID uint, rating int, comment string) (*models.Feedback, error) {
	c, err := s.Storage.GetComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}

	_, err = s.Storage.GetFeedback(ctx, complaintID)
	switch {
	case err == nil:
	case isKind(err, apperr.KindNotFound):
	default:
		return nil, err
	}
	exists := err == nil

	if err := feedback.Check(a, c, exists, rating); err != nil {
		return nil, err
	}

	fb := feedback.Build(a, c, rating, comment)
	fb.CreatedAt = s.Now()
	if err := s.Storage.CreateFeedback(ctx, &fb); err != nil {
		if isKind(err, apperr.KindConflict) {
			return nil, apperr.Validation("feedback already submitted for this complaint")
		}
		return nil, err
	}
	return &fb, nil
}

func (s *Service) GetFeedback(ctx context.Context, a access.Actor, complaintID uint) (*models.Feedback, error) {
	if _, err := s.Get(ctx, a, complaintID); err != nil {
		return nil, err
	}
	return s.Storage.GetFeedback(ctx, complaintID)
}
