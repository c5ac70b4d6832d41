package workshop

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
	"shopflow/internal/storage"
)

var errNoFileStore = errors.New("attachment storage is not configured")

// AddAttachment stores an uploaded file against a work order
func (s *Service) AddAttachment(ctx context.Context, workOrderID, fileName, contentType string, r io.Reader) (*domain.Attachment, error) {
	if s.opts.Files == nil {
		return nil, errNoFileStore
	}
	if fileName == "" {
		return nil, domain.NewValidationError("file", "file name is required")
	}
	if _, err := s.requireWorkOrder(ctx, workOrderID); err != nil {
		return nil, err
	}

	key := storage.AttachmentKey(workOrderID, fileName)
	size, err := s.opts.Files.Save(key, r)
	if err != nil {
		return nil, err
	}
	a := &domain.Attachment{
		WorkOrderID: workOrderID,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		StoragePath: key,
	}
	if err := s.repos.Attachments.Create(ctx, a); err != nil {
		if derr := s.opts.Files.Delete(key); derr != nil {
			log.WithError(derr).WithField("key", key).Warn("Failed to remove orphaned attachment file")
		}
		return nil, err
	}
	a.PublicURL = s.opts.Files.URL(key)
	return a, nil
}

// ListAttachments returns a work order's attachments with their public URLs
func (s *Service) ListAttachments(ctx context.Context, workOrderID string) ([]domain.Attachment, error) {
	list, err := s.repos.Attachments.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if s.opts.Files != nil {
		for i := range list {
			list[i].PublicURL = s.opts.Files.URL(list[i].StoragePath)
		}
	}
	return list, nil
}

// GetAttachment returns one attachment or ErrNotFound
func (s *Service) GetAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	a, err := s.repos.Attachments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("attachment %s: %w", id, domain.ErrNotFound)
	}
	if s.opts.Files != nil {
		a.PublicURL = s.opts.Files.URL(a.StoragePath)
	}
	return a, nil
}

// DeleteAttachment removes the row, then the file
func (s *Service) DeleteAttachment(ctx context.Context, id string) error {
	a, err := s.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Attachments.Delete(ctx, id); err != nil {
		return err
	}
	if s.opts.Files != nil {
		if err := s.opts.Files.Delete(a.StoragePath); err != nil {
			log.WithError(err).WithField("attachment_id", id).Warn("Failed to delete attachment file")
		}
	}
	return nil
}
