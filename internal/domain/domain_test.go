package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobLineStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pending", JobLineStatusPending},
		{"In Progress", JobLineStatusInProgress},
		{"in_progress", JobLineStatusInProgress},
		{" COMPLETED ", JobLineStatusCompleted},
		{"on-hold", JobLineStatusOnHold},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseJobLineStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown value", func(t *testing.T) {
		_, err := ParseJobLineStatus("bogus")
		require.Error(t, err)
		var v *ValidationError
		require.True(t, errors.As(err, &v))
		assert.Equal(t, "status", v.Field)
	})
}

func TestParseEnums(t *testing.T) {
	_, err := ParseLaborRateType("warranty")
	assert.NoError(t, err)
	_, err = ParseLaborRateType("overtime")
	assert.True(t, IsValidation(err))

	_, err = ParsePartType("special_order")
	assert.NoError(t, err)
	_, err = ParsePartStatus("lost")
	assert.True(t, IsValidation(err))

	_, err = ParseWorkOrderStatus("cancelled")
	assert.NoError(t, err)
	_, err = ParsePriority("critical")
	assert.True(t, IsValidation(err))
}

func TestPartialFailureError(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("wrapped: %w", &PartialFailureError{Op: "create work order", Done: []string{"wo-1"}, Failed: []string{"line"}, Err: base})

	var pf *PartialFailureError
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, []string{"wo-1"}, pf.Done)
	assert.ErrorIs(t, err, base)
}

func TestVariantRate(t *testing.T) {
	v := &EmailCampaignVariant{SentCount: 200, OpenedCount: 50, ClickedCount: 10, ConvertedCount: 2}
	assert.InDelta(t, 0.25, v.Rate(MetricOpenRate), 1e-9)
	assert.InDelta(t, 0.05, v.Rate(MetricClickRate), 1e-9)
	assert.InDelta(t, 0.01, v.Rate(MetricConversionRate), 1e-9)

	empty := &EmailCampaignVariant{}
	assert.Zero(t, empty.Rate(MetricOpenRate))
}

func TestLineKey(t *testing.T) {
	var k LineKey = DraftKey{ClientID: "abc"}
	_, isDraft := k.(DraftKey)
	assert.True(t, isDraft)

	k = PersistedKey{ID: "123"}
	assert.Equal(t, "123", k.String())
}

func TestCustomerFullName(t *testing.T) {
	c := &Customer{FirstName: " Ada ", LastName: ""}
	assert.Equal(t, "Ada", c.FullName())
}
