package sqlite

import (
	"context"
	"fmt"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const attachmentColumns = `id, work_order_id, file_name, content_type, size, storage_path, created_at`

// AttachmentRepo implements repository.AttachmentRepository
type AttachmentRepo struct {
	db *DB
}

// NewAttachmentRepo creates a new AttachmentRepo
func NewAttachmentRepo(db *DB) repository.AttachmentRepository {
	return &AttachmentRepo{db: db}
}

func (r *AttachmentRepo) Create(ctx context.Context, a *domain.Attachment) error {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = now()
	query := `INSERT INTO work_order_attachments (` + attachmentColumns + `)
		VALUES (:id, :work_order_id, :file_name, :content_type, :size, :storage_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

func (r *AttachmentRepo) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	return getOne[domain.Attachment](ctx, r.db, "attachment", `SELECT `+attachmentColumns+` FROM work_order_attachments WHERE id = ?`, id)
}

func (r *AttachmentRepo) ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.Attachment, error) {
	list := []domain.Attachment{}
	query := `SELECT ` + attachmentColumns + ` FROM work_order_attachments WHERE work_order_id = ? ORDER BY created_at ASC, rowid ASC`
	if err := r.db.SelectContext(ctx, &list, query, workOrderID); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return list, nil
}

func (r *AttachmentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_order_attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if err := requireAffected(res, "delete attachment"); err != nil {
		return err
	}
	return nil
}
