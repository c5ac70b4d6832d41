package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

func TestWorkOrderRepo_CreateWritesHistory(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	wo := seedWorkOrder(t, repos)

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Brake noise", got.Description)

	history, err := repos.WorkOrders.GetStatusHistory(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Work order created", history[0].Notes)
}

func TestWorkOrderRepo_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	wo := seedWorkOrder(t, repos)
	tech := "tech-7"

	require.NoError(t, repos.WorkOrders.UpdateStatus(ctx, wo.ID, domain.WorkOrderStatusInProgress, &tech, "started"))

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusInProgress, got.Status)

	history, err := repos.WorkOrders.GetStatusHistory(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.WorkOrderStatusInProgress, history[1].Status)
	require.NotNil(t, history[1].ChangedBy)
	assert.Equal(t, "tech-7", *history[1].ChangedBy)

	err = repos.WorkOrders.UpdateStatus(ctx, "missing", domain.WorkOrderStatusCompleted, nil, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkOrderRepo_ListAndCount(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	a := seedWorkOrder(t, repos)
	seedWorkOrder(t, repos)
	require.NoError(t, repos.WorkOrders.UpdateStatus(ctx, a.ID, domain.WorkOrderStatusCompleted, nil, ""))

	all, err := repos.WorkOrders.List(ctx, repository.WorkOrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := repos.WorkOrders.List(ctx, repository.WorkOrderFilter{Status: domain.WorkOrderStatusCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	counts, err := repos.WorkOrders.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.WorkOrderStatusCompleted])
	assert.Equal(t, 1, counts[domain.WorkOrderStatusPending])
}

func TestWorkOrderRepo_CreateWithLines(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	wo := &domain.WorkOrder{CustomerID: "cust-1", Status: domain.WorkOrderStatusPending, Priority: domain.PriorityHigh}
	lines := []domain.JobLine{
		{Name: "Oil Change", EstimatedHours: 1, LaborRate: 80, TotalAmount: 80, Status: domain.JobLineStatusPending, LaborRateType: domain.LaborRateStandard},
		{Name: "Rotate Tires", EstimatedHours: 0.5, LaborRate: 80, TotalAmount: 40, Status: domain.JobLineStatusPending, LaborRateType: domain.LaborRateStandard},
	}
	require.NoError(t, repos.WorkOrders.CreateWithLines(ctx, wo, lines))

	got, err := repos.JobLines.GetAll(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].DisplayOrder)
	assert.Equal(t, "Rotate Tires", got[1].Name)
}

func TestWorkOrderRepo_CreateWithLinesRollsBack(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	wo := &domain.WorkOrder{CustomerID: "cust-1", Status: domain.WorkOrderStatusPending, Priority: domain.PriorityLow}
	lines := []domain.JobLine{
		{Name: "Valid", EstimatedHours: 1, LaborRate: 80, TotalAmount: 80},
		{Name: "Negative", EstimatedHours: -1, LaborRate: 80, TotalAmount: 0},
	}
	require.Error(t, repos.WorkOrders.CreateWithLines(ctx, wo, lines))

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWorkOrderRepo_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	wo := seedWorkOrder(t, repos)
	line := seedJobLine(t, repos, wo.ID, "Brakes", 1, 100)
	part := seedPart(t, repos, wo.ID, &line.ID, "Pads", 1, 40)
	require.NoError(t, repos.Attachments.Create(ctx, &domain.Attachment{
		WorkOrderID: wo.ID, FileName: "photo.jpg", StoragePath: "wo/photo.jpg",
	}))

	require.NoError(t, repos.WorkOrders.Delete(ctx, wo.ID))

	gotWO, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Nil(t, gotWO)

	gotPart, err := repos.Parts.GetByID(ctx, part.ID)
	require.NoError(t, err)
	assert.Nil(t, gotPart)

	lines, err := repos.JobLines.GetAll(ctx, wo.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	atts, err := repos.Attachments.ListByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	assert.Empty(t, atts)

	assert.ErrorIs(t, repos.WorkOrders.Delete(ctx, wo.ID), domain.ErrNotFound)
}
