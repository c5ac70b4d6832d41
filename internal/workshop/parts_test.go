package workshop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
	"shopflow/internal/mapper"
)

func TestCreatePart(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)

	part, err := svc.CreatePart(ctx, wo.ID, mapper.PartForm{
		Name:              "Oil Filter",
		PartNumber:        "OF-12",
		PartType:          "Inventory",
		Quantity:          ptr(2),
		SupplierCost:      ptr(10.0),
		MarkupPercentage:  ptr(50.0),
		CoreChargeApplies: true,
		CoreChargeAmount:  ptr(5.0),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PartTypeInventory, part.PartType)
	assert.Equal(t, domain.PartStatusPending, part.Status)
	assert.Equal(t, 15.0, part.UnitPrice)
	assert.Equal(t, 30.0, part.TotalPrice)

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 35.0, got.TotalCost)
}

func TestCreatePart_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)
	other := createWorkOrder(t, svc)
	foreign, err := svc.CreateJobLine(ctx, other.ID, mapper.JobLineForm{Name: "Elsewhere"})
	require.NoError(t, err)

	valid := func() mapper.PartForm {
		return mapper.PartForm{Name: "Pads", PartNumber: "BP-1", PartType: "inventory"}
	}

	tests := []struct {
		name  string
		edit  func(f *mapper.PartForm)
		field string
	}{
		{"missing name", func(f *mapper.PartForm) { f.Name = " " }, "name"},
		{"missing part number", func(f *mapper.PartForm) { f.PartNumber = "" }, "part_number"},
		{"bad part type", func(f *mapper.PartForm) { f.PartType = "used" }, "part_type"},
		{"zero quantity", func(f *mapper.PartForm) { f.Quantity = ptr(0) }, "quantity"},
		{"negative customer price", func(f *mapper.PartForm) { f.CustomerPrice = ptr(-1.0) }, "customer_price"},
		{"negative unit price", func(f *mapper.PartForm) { f.UnitPrice = ptr(-0.01) }, "unit_price"},
		{"job line of another work order", func(f *mapper.PartForm) { f.JobLineID = &foreign.ID }, "job_line_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.edit(&f)
			_, err := svc.CreatePart(ctx, wo.ID, f)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	t.Run("unknown work order", func(t *testing.T) {
		_, err := svc.CreatePart(ctx, "missing", valid())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUpdateAndDeletePart(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)
	line, err := svc.CreateJobLine(ctx, wo.ID, mapper.JobLineForm{Name: "Brakes"})
	require.NoError(t, err)
	part, err := svc.CreatePart(ctx, wo.ID, mapper.PartForm{Name: "Pads", PartNumber: "BP-1", PartType: "inventory", UnitPrice: ptr(20.0)})
	require.NoError(t, err)

	updated, err := svc.UpdatePart(ctx, part.ID, mapper.PartPatch{JobLineID: &line.ID, Quantity: ptr(3)})
	require.NoError(t, err)
	require.NotNil(t, updated.JobLineID)
	assert.Equal(t, 60.0, updated.TotalPrice)

	byLine, err := svc.ListJobLineParts(ctx, line.ID)
	require.NoError(t, err)
	assert.Len(t, byLine, 1)

	_, err = svc.UpdatePart(ctx, part.ID, mapper.PartPatch{Quantity: ptr(0)})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.UpdatePart(ctx, part.ID, mapper.PartPatch{Status: ptr("lost")})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePart(ctx, part.ID))
	assert.ErrorIs(t, svc.DeletePart(ctx, part.ID), domain.ErrNotFound)

	got, err := repos.WorkOrders.GetByID(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.TotalCost)
}

func TestUpdatePart_KeepsPricesDerived(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, Options{})
	wo := createWorkOrder(t, svc)
	part, err := svc.CreatePart(ctx, wo.ID, mapper.PartForm{
		Name: "Rotor", PartNumber: "RT-9", PartType: "inventory",
		SupplierCost: ptr(50.0), MarkupPercentage: ptr(20.0),
	})
	require.NoError(t, err)
	require.Equal(t, 60.0, part.CustomerPrice)

	got, err := svc.UpdatePart(ctx, part.ID, mapper.PartPatch{Quantity: ptr(3), TotalPrice: ptr(1.0)})
	require.NoError(t, err)
	assert.Equal(t, 180.0, got.TotalPrice)

	got, err = svc.UpdatePart(ctx, part.ID, mapper.PartPatch{MarkupPercentage: ptr(50.0)})
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.CustomerPrice)
	assert.Equal(t, 75.0, got.UnitPrice)
	assert.Equal(t, 225.0, got.TotalPrice)

	got, err = svc.UpdatePart(ctx, part.ID, mapper.PartPatch{UnitPrice: ptr(90.0)})
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.CustomerPrice)
	assert.Equal(t, 80.0, got.MarkupPercentage)
	assert.Equal(t, 270.0, got.TotalPrice)
}
