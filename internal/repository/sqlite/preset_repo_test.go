package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
)

func TestPresetRepo(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	oil := &domain.Preset{Kind: domain.PresetMaintenanceItem, Name: "Oil Change", Category: "Engine"}
	filter := &domain.Preset{Kind: domain.PresetMaintenanceItem, Name: "Air Filter", Category: "Engine"}
	require.NoError(t, repos.Presets.Create(ctx, oil))
	require.NoError(t, repos.Presets.Create(ctx, filter))
	require.NoError(t, repos.Presets.IncrementUsage(ctx, domain.PresetMaintenanceItem, oil.ID))

	t.Run("sorted by usage then name", func(t *testing.T) {
		list, err := repos.Presets.List(ctx, domain.PresetMaintenanceItem, "")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Oil Change", list[0].Name)
		assert.Equal(t, 1, list[0].UsageCount)
		assert.Equal(t, domain.PresetMaintenanceItem, list[0].Kind)
	})

	t.Run("tables are separate", func(t *testing.T) {
		list, err := repos.Presets.List(ctx, domain.PresetMaintenanceType, "")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("find by name ignores case", func(t *testing.T) {
		p, err := repos.Presets.FindByName(ctx, domain.PresetMaintenanceItem, "oil change", "ENGINE")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, oil.ID, p.ID)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := repos.Presets.List(ctx, "tires", "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("increment missing", func(t *testing.T) {
		err := repos.Presets.IncrementUsage(ctx, domain.PresetMaintenanceItem, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSettingsRepo(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	v, err := repos.Settings.Get(ctx, domain.SettingProcessingSchedule)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repos.Settings.Set(ctx, domain.SettingProcessingSchedule, `{"enabled":true}`))
	require.NoError(t, repos.Settings.Set(ctx, domain.SettingProcessingSchedule, `{"enabled":false}`))

	v, err = repos.Settings.Get(ctx, domain.SettingProcessingSchedule)
	require.NoError(t, err)
	assert.Equal(t, `{"enabled":false}`, v)
}
