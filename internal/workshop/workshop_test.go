package workshop

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
	"shopflow/internal/realtime"
	"shopflow/internal/repository"
	"shopflow/internal/repository/sqlite"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "workshop.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return sqlite.NewRepositories(db)
}

func newTestService(t *testing.T, opts Options) (*Service, *repository.Repositories, *recorder) {
	t.Helper()
	repos := newTestRepos(t)
	rec := &recorder{}
	if opts.Publisher == nil {
		opts.Publisher = rec
	}
	opts.Now = func() time.Time { return fixedNow }
	return New(repos, opts), repos, rec
}

func ptr[T any](v T) *T { return &v }

func createWorkOrder(t *testing.T, svc *Service) *domain.WorkOrder {
	t.Helper()
	wo, err := svc.CreateWorkOrder(context.Background(), WorkOrderForm{CustomerID: "cust-1", Description: "Noise"})
	require.NoError(t, err)
	return wo
}

func TestJobLineLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)

	oil, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "Oil Change", EstimatedHours: ptr(1.0), LaborRate: ptr(80.0)})
	require.NoError(t, err)
	brake, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "Brake Inspection", EstimatedHours: ptr(0.5), LaborRate: ptr(100.0)})
	require.NoError(t, err)

	assert.Equal(t, 80.0, oil.TotalAmount)
	assert.Equal(t, 50.0, brake.TotalAmount)
	assert.Equal(t, domain.JobLineStatusPending, oil.Status)
	assert.Equal(t, domain.LaborRateStandard, oil.LaborRateType)
	assert.Equal(t, []int{1, 2}, []int{oil.DisplayOrder, brake.DisplayOrder})

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 130.0, got.TotalCost)

	lines, err := svc.ReorderJobLines(ctx, wo.ID, []string{brake.ID, oil.ID})
	require.NoError(t, err)
	assert.Equal(t, "Brake Inspection", lines[0].Name)
	assert.Equal(t, 1, lines[0].DisplayOrder)
	assert.Equal(t, 2, lines[1].DisplayOrder)

	done, err := svc.SetJobLineCompletion(ctx, brake.ID, true, ptr("tech-1"))
	require.NoError(t, err)
	assert.True(t, done.IsWorkCompleted)
	assert.Equal(t, domain.JobLineStatusCompleted, done.Status)
	require.NotNil(t, done.CompletionDate)
	assert.True(t, fixedNow.Equal(*done.CompletionDate))

	require.NoError(t, svc.DeleteJobLine(ctx, brake.ID, ""))

	lines, err = svc.ListJobLines(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Oil Change", lines[0].Name)
	assert.Equal(t, 2, lines[0].DisplayOrder)

	got, err = repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.TotalCost)
}

func TestCreateJobLine_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)

	tests := []struct {
		name  string
		form  mapper.JobLineForm
		field string
	}{
		{"missing name", mapper.JobLineForm{}, "name"},
		{"negative hours", mapper.JobLineForm{Name: "x", EstimatedHours: ptr(-1.0)}, "estimated_hours"},
		{"negative rate", mapper.JobLineForm{Name: "x", LaborRate: ptr(-5.0)}, "labor_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJobLine(ctx, wo.ID, tt.form)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	t.Run("unknown work order", func(t *testing.T) {
		_, err := svc.CreateJobLine(ctx, "missing", mapper.JobLineForm{Name: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEnumPolicy(t *testing.T) {
	ctx := context.Background()
	form := mapper.JobLineForm{Name: "Diag", Status: "waiting", LaborRateType: "Diagnostic"}

	t.Run("coerce", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{})
		wo := createWorkOrder(t, svc)
		line, err := svc.CreateJobLine(ctx, wo.ID, form)
		require.NoError(t, err)
		assert.Equal(t, domain.JobLineStatusPending, line.Status)
		assert.Equal(t, domain.LaborRateDiagnostic, line.LaborRateType)
	})

	t.Run("reject", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{RejectUnknownEnums: true})
		wo := createWorkOrder(t, svc)
		_, err := svc.CreateJobLine(ctx, wo.ID, form)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestUpdateJobLine(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)
	line, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "Align", EstimatedHours: ptr(1.0), LaborRate: ptr(90.0)})
	require.NoError(t, err)

	updated, err := svc.UpdateJobLine(ctx, line.ID, mapper.JobLinePatch{EstimatedHours: ptr(1.5), TotalAmount: ptr(1.0)})
	require.NoError(t, err)
	assert.Equal(t, 135.0, updated.TotalAmount)

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 135.0, got.TotalCost)

	same, err := svc.UpdateJobLine(ctx, line.ID, mapper.JobLinePatch{})
	require.NoError(t, err)
	assert.Equal(t, line.ID, same.ID)

	onHold, err := svc.SetJobLineStatus(ctx, line.ID, "On Hold")
	require.NoError(t, err)
	assert.Equal(t, domain.JobLineStatusOnHold, onHold.Status)

	completed, err := svc.SetJobLineStatus(ctx, line.ID, domain.JobLineStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.JobLineStatusCompleted, completed.Status)
	assert.False(t, completed.IsWorkCompleted)
	assert.Nil(t, completed.CompletionDate)

	reopened, err := svc.SetJobLineCompletion(ctx, line.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.JobLineStatusPending, reopened.Status)
}

func TestUpsertJobLine(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)

	created, err := svc.UpsertJobLine(ctx, wo.ID, mapper.JobLineForm{DraftID: "local-1", Name: "Tires"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	legacy, err := svc.UpsertJobLine(ctx, wo.ID, mapper.JobLineForm{ID: "temp-123", Name: "Wipers"})
	require.NoError(t, err)
	assert.NotEqual(t, "temp-123", legacy.ID)

	updated, err := svc.UpsertJobLine(ctx, wo.ID, mapper.JobLineForm{ID: created.ID, Name: "Tire Rotation", EstimatedHours: ptr(1.0), LaborRate: ptr(60.0)})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Tire Rotation", updated.Name)
	assert.Equal(t, 60.0, updated.TotalAmount)

	other := createWorkOrder(t, svc)
	_, err = svc.UpsertJobLine(ctx, other.ID, mapper.JobLineForm{ID: created.ID, Name: "Hijack"})
	assert.True(t, domain.IsValidation(err))
}

func TestMoveJobLine(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)

	var ids []string
	for _, name := range []string{"A", "B", "C", "D"} {
		l, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: name})
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}

	lines, err := svc.MoveJobLine(ctx, wo.ID, ids[3], 1)
	require.NoError(t, err)
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
		assert.Equal(t, i+1, l.DisplayOrder)
	}
	assert.Equal(t, []string{"A", "D", "B", "C"}, names)

	lines, err = svc.MoveJobLine(ctx, wo.ID, ids[0], 99)
	require.NoError(t, err)
	assert.Equal(t, "A", lines[3].Name)

	_, err = svc.MoveJobLine(ctx, wo.ID, "missing", 0)
	assert.True(t, domain.IsValidation(err))
}

func TestDisplayOrderOnlyMovesThroughReorder(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)

	a, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "A"})
	require.NoError(t, err)
	_, err = svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "B"})
	require.NoError(t, err)

	var patch mapper.JobLinePatch
	require.NoError(t, json.Unmarshal([]byte(`{"displayOrder": -7}`), &patch))
	got, err := svc.UpdateJobLine(ctx, a.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DisplayOrder)

	var form mapper.JobLineForm
	require.NoError(t, json.Unmarshal([]byte(`{"name": "C", "displayOrder": 2}`), &form))
	c, err := svc.CreateJobLine(ctx, wo.ID, form)
	require.NoError(t, err)
	assert.Equal(t, 3, c.DisplayOrder)

	lines, err := svc.ListJobLines(ctx, wo.ID)
	require.NoError(t, err)
	for i, l := range lines {
		assert.Equal(t, i+1, l.DisplayOrder)
	}
}

func TestMoveID(t *testing.T) {
	ids := []string{"a", "b", "c"}
	assert.Equal(t, []string{"b", "c", "a"}, moveID(ids, 0, 2))
	assert.Equal(t, []string{"c", "a", "b"}, moveID(ids, 2, 0))
	assert.Equal(t, []string{"a", "b", "c"}, moveID(ids, 1, 1))
	assert.Equal(t, []string{"b", "a", "c"}, moveID(ids, 1, -3))
}

func TestDeleteJobLine_Policies(t *testing.T) {
	ctx := context.Background()

	t.Run("configured default", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{PartsPolicy: domain.PartsDelete})
		wo := createWorkOrder(t, svc)
		line, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "Brakes"})
		require.NoError(t, err)
		_, err = svc.CreatePart(ctx, wo.ID, mapper.PartForm{JobLineID: &line.ID, Name: "Pads", PartNumber: "P1", PartType: "inventory"})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteJobLine(ctx, line.ID, ""))
		parts, err := svc.ListParts(ctx, wo.ID)
		require.NoError(t, err)
		assert.Empty(t, parts)
	})

	t.Run("explicit detach", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{PartsPolicy: domain.PartsDelete})
		wo := createWorkOrder(t, svc)
		line, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "Brakes"})
		require.NoError(t, err)
		_, err = svc.CreatePart(ctx, wo.ID, mapper.PartForm{JobLineID: &line.ID, Name: "Pads", PartNumber: "P1", PartType: "inventory"})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteJobLine(ctx, line.ID, "detach"))
		parts, err := svc.ListParts(ctx, wo.ID)
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Nil(t, parts[0].JobLineID)
	})

	t.Run("bad policy", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{})
		assert.True(t, domain.IsValidation(svc.DeleteJobLine(ctx, "x", "shred")))
	})

	t.Run("missing line", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{})
		assert.ErrorIs(t, svc.DeleteJobLine(ctx, "missing", ""), domain.ErrNotFound)
	})
}
