package marketing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
)

func (f *fixture) sequence(t *testing.T, delays ...int) (*domain.EmailSequence, []*domain.EmailSequenceStep) {
	t.Helper()
	ctx := context.Background()
	seq, err := f.svc.CreateSequence(ctx, SequenceForm{Name: "Follow up"})
	require.NoError(t, err)
	tpl := f.template(t, "Step", "Step for {{first_name}}")
	var steps []*domain.EmailSequenceStep
	for _, d := range delays {
		step, err := f.svc.AddStep(ctx, seq.ID, StepForm{DelayHours: d, TemplateID: &tpl.ID})
		require.NoError(t, err)
		steps = append(steps, step)
	}
	return seq, steps
}

func TestEnroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seq, _ := f.sequence(t, 24)
	ana := f.customer(t, "Ana", "ana@example.com", false)

	t.Run("requires ids", func(t *testing.T) {
		_, err := f.svc.Enroll(ctx, EnrollRequest{SequenceID: seq.ID})
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "customerId", vErr.Field)

		_, err = f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID})
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "sequenceId", vErr.Field)
	})

	e, err := f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: seq.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, e.Status)
	require.NotNil(t, e.NextSendAt)
	assert.True(t, f.clock.now.Add(24*time.Hour).Equal(*e.NextSendAt))

	_, err = f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: seq.ID})
	assert.True(t, domain.IsValidation(err), "duplicate enrollment")

	_, err = f.svc.Enroll(ctx, EnrollRequest{CustomerID: "ghost", SequenceID: seq.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	paused, err := f.svc.PauseEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentPaused, paused.Status)

	_, err = f.svc.PauseEnrollment(ctx, e.ID)
	assert.True(t, domain.IsValidation(err))

	resumed, err := f.svc.ResumeEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, resumed.Status)

	cancelled, err := f.svc.CancelEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCancelled, cancelled.Status)

	_, err = f.svc.ResumeEnrollment(ctx, e.ID)
	assert.True(t, domain.IsValidation(err))
}

func TestProcessDue_WalksSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seq, _ := f.sequence(t, 0, 48)
	ana := f.customer(t, "Ana", "ana@example.com", false)

	e, err := f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: seq.ID})
	require.NoError(t, err)

	res, err := f.svc.ProcessDue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, f.provider.Count())
	assert.Equal(t, "Step for Ana", f.provider.Sent[0].Subject)

	got, err := f.repos.Sequences.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStep)
	assert.True(t, f.clock.now.Add(48*time.Hour).Equal(*got.NextSendAt))

	res, err = f.svc.ProcessDue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed, "second step is not due yet")

	due, err := f.svc.DueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, due)

	f.clock.Advance(49 * time.Hour)
	due, err = f.svc.DueCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, due)

	res, err = f.svc.ProcessDue(ctx, []string{seq.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	got, err = f.repos.Sequences.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCompleted, got.Status)
	assert.Nil(t, got.NextSendAt)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 2, f.provider.Count())
}

func TestProcessDue_SequenceFilterAndFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, _ := f.sequence(t, 0)
	second, _ := f.sequence(t, 0)
	ana := f.customer(t, "Ana", "ana@example.com", false)
	_, err := f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: first.ID})
	require.NoError(t, err)
	e2, err := f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: second.ID})
	require.NoError(t, err)

	f.provider.Err = errors.New("mailbox full")
	res, err := f.svc.ProcessDue(ctx, []string{second.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Results[0].Error, "mailbox full")

	got, err := f.repos.Sequences.GetEnrollment(ctx, e2.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStep, "failed step is retried")

	f.provider.Err = nil
	res, err = f.svc.ProcessDue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Completed)
}

func TestProcessEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seq, _ := f.sequence(t, 72)
	ana := f.customer(t, "Ana", "ana@example.com", false)
	e, err := f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: seq.ID})
	require.NoError(t, err)

	r, err := f.svc.ProcessEnrollment(ctx, e.ID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, r.Outcome)
	assert.Equal(t, 0, f.provider.Count())

	r, err = f.svc.ProcessEnrollment(ctx, e.ID, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, r.Outcome)
	assert.Equal(t, 1, f.provider.Count())

	_, err = f.svc.ProcessEnrollment(ctx, e.ID, true)
	assert.True(t, domain.IsValidation(err), "completed enrollments are not processed")

	_, err = f.svc.ProcessEnrollment(ctx, "", false)
	assert.True(t, domain.IsValidation(err))
}

func TestProcessDue_CancelsOptedOutCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seq, _ := f.sequence(t, 0)
	ana := f.customer(t, "Ana", "ana@example.com", false)
	e, err := f.svc.Enroll(ctx, EnrollRequest{CustomerID: ana.ID, SequenceID: seq.ID})
	require.NoError(t, err)
	require.NoError(t, f.repos.Customers.SetEmailOptOut(ctx, ana.ID, true))

	res, err := f.svc.ProcessDue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, f.provider.Count())

	got, err := f.repos.Sequences.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCancelled, got.Status)
}

func TestSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sched, err := f.svc.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProcessingSchedule(), sched)

	_, err = f.svc.SaveSchedule(ctx, domain.ProcessingSchedule{Enabled: true, Cron: "every minute"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cron", vErr.Field)

	scheduler := NewScheduler(f.svc)
	require.NoError(t, scheduler.Start(ctx))
	t.Cleanup(scheduler.Stop)
	assert.False(t, scheduler.Scheduled())

	saved, err := f.svc.SaveSchedule(ctx, domain.ProcessingSchedule{Enabled: true, Cron: "*/15 * * * *", SequenceIDs: []string{"seq-1"}})
	require.NoError(t, err)
	assert.True(t, scheduler.Scheduled(), "saving reloads the scheduler")
	assert.Equal(t, saved, scheduler.Current())

	stored, err := f.svc.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, stored)

	_, err = f.svc.SaveSchedule(ctx, domain.ProcessingSchedule{Enabled: false, Cron: "0 * * * *"})
	require.NoError(t, err)
	assert.False(t, scheduler.Scheduled())

	require.NoError(t, scheduler.Reload(ctx))
	assert.False(t, scheduler.Scheduled())
}
