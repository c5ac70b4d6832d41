package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
)

func TestPartRepo_GetByWorkOrderAndJobLine(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	wo := seedWorkOrder(t, repos)
	line := seedJobLine(t, repos, wo.ID, "Brakes", 1, 100)

	seedPart(t, repos, wo.ID, &line.ID, "Pads", 2, 40)
	seedPart(t, repos, wo.ID, nil, "Wipers", 1, 15)

	all, err := repos.Parts.GetByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Pads", all[0].Name)
	assert.Equal(t, 80.0, all[0].TotalPrice)
	assert.True(t, all[0].IsTaxable)

	byLine, err := repos.Parts.GetByJobLine(ctx, line.ID)
	require.NoError(t, err)
	require.Len(t, byLine, 1)
	assert.Equal(t, "Pads", byLine[0].Name)

	none, err := repos.Parts.GetByWorkOrder(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPartRepo_UpdateRecomputesTotal(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	wo := seedWorkOrder(t, repos)
	part := seedPart(t, repos, wo.ID, nil, "Filter", 1, 12.5)

	t.Run("quantity change", func(t *testing.T) {
		qty := 4
		got, err := repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{Quantity: &qty}))
		require.NoError(t, err)
		assert.Equal(t, 4, got.Quantity)
		assert.Equal(t, 50.0, got.TotalPrice)
	})

	t.Run("customer price sets unit price", func(t *testing.T) {
		price := 10.0
		got, err := repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{CustomerPrice: &price}))
		require.NoError(t, err)
		assert.Equal(t, 10.0, got.UnitPrice)
		assert.Equal(t, 10.0, got.CustomerPrice)
		assert.Equal(t, 40.0, got.TotalPrice)
	})

	t.Run("supplied total ignored when quantity changes", func(t *testing.T) {
		qty := 2
		total := 15.0
		got, err := repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{Quantity: &qty, TotalPrice: &total}))
		require.NoError(t, err)
		assert.Equal(t, 20.0, got.TotalPrice)
	})

	t.Run("cost and markup re-derive the price", func(t *testing.T) {
		cost, markup := 50.0, 20.0
		got, err := repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{SupplierCost: &cost, MarkupPercentage: &markup}))
		require.NoError(t, err)
		assert.Equal(t, 60.0, got.CustomerPrice)
		assert.Equal(t, 60.0, got.UnitPrice)
		assert.Equal(t, 120.0, got.TotalPrice)

		markup = 50
		got, err = repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{MarkupPercentage: &markup}))
		require.NoError(t, err)
		assert.Equal(t, 75.0, got.CustomerPrice)
		assert.Equal(t, 150.0, got.TotalPrice)
	})

	t.Run("unit price re-derives markup", func(t *testing.T) {
		unit := 90.0
		got, err := repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{UnitPrice: &unit}))
		require.NoError(t, err)
		assert.Equal(t, 90.0, got.CustomerPrice)
		assert.Equal(t, 80.0, got.MarkupPercentage)
		assert.Equal(t, 180.0, got.TotalPrice)
	})

	t.Run("detach with empty job line id", func(t *testing.T) {
		line := seedJobLine(t, repos, wo.ID, "Service", 1, 50)
		got, err := repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{JobLineID: &line.ID}))
		require.NoError(t, err)
		require.NotNil(t, got.JobLineID)

		empty := ""
		got, err = repos.Parts.Update(ctx, part.ID, mapper.PartColumns(mapper.PartPatch{JobLineID: &empty}))
		require.NoError(t, err)
		assert.Nil(t, got.JobLineID)
	})

	t.Run("missing part", func(t *testing.T) {
		qty := 1
		_, err := repos.Parts.Update(ctx, "missing", mapper.PartColumns(mapper.PartPatch{Quantity: &qty}))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown column rejected", func(t *testing.T) {
		_, err := repos.Parts.Update(ctx, part.ID, mapper.Columns{{Name: "work_order_id", Value: "x"}})
		assert.Error(t, err)
	})
}

func TestPartRepo_Delete(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	wo := seedWorkOrder(t, repos)
	part := seedPart(t, repos, wo.ID, nil, "Bulb", 2, 3)

	require.NoError(t, repos.Parts.Delete(ctx, part.ID))
	assert.ErrorIs(t, repos.Parts.Delete(ctx, part.ID), domain.ErrNotFound)
}

func TestPartRepo_RejectsUnknownWorkOrder(t *testing.T) {
	repos := newTestRepos(t)
	p := &domain.Part{WorkOrderID: "nope", Name: "Bolt", Quantity: 1, PartType: domain.PartTypeInventory}
	assert.Error(t, repos.Parts.Create(context.Background(), p))
}
