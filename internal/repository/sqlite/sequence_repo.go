package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const sequenceColumns = `id, name, description, status, created_at, updated_at`

const stepColumns = `id, sequence_id, step_order, delay_hours, template_id, subject, created_at`

const enrollmentColumns = `id, sequence_id, customer_id, status, current_step, next_send_at,
	enrolled_at, completed_at, updated_at`

// SequenceRepo implements repository.SequenceRepository
type SequenceRepo struct {
	db *DB
}

// NewSequenceRepo creates a new SequenceRepo
func NewSequenceRepo(db *DB) repository.SequenceRepository {
	return &SequenceRepo{db: db}
}

func (r *SequenceRepo) Create(ctx context.Context, s *domain.EmailSequence) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.Status == "" {
		s.Status = domain.SequenceStatusActive
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	query := `INSERT INTO email_sequences (` + sequenceColumns + `)
		VALUES (:id, :name, :description, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}
	return nil
}

func (r *SequenceRepo) GetByID(ctx context.Context, id string) (*domain.EmailSequence, error) {
	return getOne[domain.EmailSequence](ctx, r.db, "sequence", `SELECT `+sequenceColumns+` FROM email_sequences WHERE id = ?`, id)
}

func (r *SequenceRepo) List(ctx context.Context) ([]domain.EmailSequence, error) {
	sequences := []domain.EmailSequence{}
	if err := r.db.SelectContext(ctx, &sequences, `SELECT `+sequenceColumns+` FROM email_sequences ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	return sequences, nil
}

func (r *SequenceRepo) Update(ctx context.Context, s *domain.EmailSequence) error {
	s.UpdatedAt = now()
	query := `UPDATE email_sequences SET name = :name, description = :description, status = :status, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("failed to update sequence: %w", err)
	}
	if err := requireAffected(res, "update sequence"); err != nil {
		return err
	}
	return nil
}

func (r *SequenceRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_sequences WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sequence: %w", err)
	}
	return nil
}

// AddStep appends the step when StepOrder is zero
func (r *SequenceRepo) AddStep(ctx context.Context, step *domain.EmailSequenceStep) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if step.ID == "" {
			step.ID = newID()
		}
		if step.StepOrder <= 0 {
			if err := tx.GetContext(ctx, &step.StepOrder,
				`SELECT COALESCE(MAX(step_order), 0) + 1 FROM email_sequence_steps WHERE sequence_id = ?`,
				step.SequenceID); err != nil {
				return fmt.Errorf("failed to compute step order: %w", err)
			}
		}
		step.CreatedAt = now()
		query := `INSERT INTO email_sequence_steps (` + stepColumns + `)
			VALUES (:id, :sequence_id, :step_order, :delay_hours, :template_id, :subject, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, step); err != nil {
			return fmt.Errorf("failed to add sequence step: %w", err)
		}
		return nil
	})
}

func (r *SequenceRepo) ListSteps(ctx context.Context, sequenceID string) ([]domain.EmailSequenceStep, error) {
	steps := []domain.EmailSequenceStep{}
	query := `SELECT ` + stepColumns + ` FROM email_sequence_steps WHERE sequence_id = ? ORDER BY step_order ASC`
	if err := r.db.SelectContext(ctx, &steps, query, sequenceID); err != nil {
		return nil, fmt.Errorf("failed to list sequence steps: %w", err)
	}
	return steps, nil
}

func (r *SequenceRepo) DeleteStep(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM email_sequence_steps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sequence step: %w", err)
	}
	return nil
}

func (r *SequenceRepo) Enroll(ctx context.Context, e *domain.EmailSequenceEnrollment) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Status == "" {
		e.Status = domain.EnrollmentActive
	}
	e.EnrolledAt = now()
	e.UpdatedAt = e.EnrolledAt
	query := `INSERT INTO email_sequence_enrollments (` + enrollmentColumns + `)
		VALUES (:id, :sequence_id, :customer_id, :status, :current_step, :next_send_at,
			:enrolled_at, :completed_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("failed to enroll customer: %w", err)
	}
	return nil
}

func (r *SequenceRepo) GetEnrollment(ctx context.Context, id string) (*domain.EmailSequenceEnrollment, error) {
	return getOne[domain.EmailSequenceEnrollment](ctx, r.db, "enrollment",
		`SELECT `+enrollmentColumns+` FROM email_sequence_enrollments WHERE id = ?`, id)
}

func (r *SequenceRepo) FindEnrollment(ctx context.Context, sequenceID, customerID string) (*domain.EmailSequenceEnrollment, error) {
	return getOne[domain.EmailSequenceEnrollment](ctx, r.db, "enrollment",
		`SELECT `+enrollmentColumns+` FROM email_sequence_enrollments WHERE sequence_id = ? AND customer_id = ?`,
		sequenceID, customerID)
}

func (r *SequenceRepo) ListEnrollments(ctx context.Context, sequenceID string) ([]domain.EmailSequenceEnrollment, error) {
	list := []domain.EmailSequenceEnrollment{}
	query := `SELECT ` + enrollmentColumns + ` FROM email_sequence_enrollments WHERE sequence_id = ? ORDER BY enrolled_at ASC`
	if err := r.db.SelectContext(ctx, &list, query, sequenceID); err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return list, nil
}

func (r *SequenceRepo) ListDue(ctx context.Context, at time.Time, sequenceIDs []string) ([]domain.EmailSequenceEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM email_sequence_enrollments
		WHERE status = ? AND next_send_at IS NOT NULL AND next_send_at <= ?`
	args := []interface{}{domain.EnrollmentActive, at.UTC()}
	if len(sequenceIDs) > 0 {
		query += ` AND sequence_id IN (?)`
		args = append(args, sequenceIDs)
	}
	query += ` ORDER BY next_send_at ASC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build due enrollment query: %w", err)
	}
	list := []domain.EmailSequenceEnrollment{}
	if err := r.db.SelectContext(ctx, &list, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list due enrollments: %w", err)
	}
	return list, nil
}

func (r *SequenceRepo) CountDue(ctx context.Context, at time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM email_sequence_enrollments
		WHERE status = ? AND next_send_at IS NOT NULL AND next_send_at <= ?`
	if err := r.db.GetContext(ctx, &n, query, domain.EnrollmentActive, at.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due enrollments: %w", err)
	}
	return n, nil
}

func (r *SequenceRepo) UpdateEnrollment(ctx context.Context, e *domain.EmailSequenceEnrollment) error {
	e.UpdatedAt = now()
	query := `UPDATE email_sequence_enrollments
		SET status = :status, current_step = :current_step, next_send_at = :next_send_at,
			completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if err := requireAffected(res, "update enrollment"); err != nil {
		return err
	}
	return nil
}
