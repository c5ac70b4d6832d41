package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
)

func TestEmailTemplateRepo_UpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	tpl := &domain.EmailTemplate{Name: "Reminder", Subject: "Hi {{first_name}}", TextBody: "Service due"}
	require.NoError(t, repos.EmailTemplates.Create(ctx, tpl))
	assert.Equal(t, 1, tpl.Version)

	tpl.Subject = "Hello {{first_name}}"
	require.NoError(t, repos.EmailTemplates.Update(ctx, tpl))
	assert.Equal(t, 2, tpl.Version)

	got, err := repos.EmailTemplates.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{first_name}}", got.Subject)
	assert.Equal(t, 2, got.Version)

	missing := &domain.EmailTemplate{ID: "missing"}
	assert.ErrorIs(t, repos.EmailTemplates.Update(ctx, missing), domain.ErrNotFound)
}

func TestCampaignRepo_Counters(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	c := &domain.EmailCampaign{Name: "Spring", Subject: "Tune-up time"}
	require.NoError(t, repos.Campaigns.Create(ctx, c))
	assert.Equal(t, domain.CampaignStatusDraft, c.Status)
	assert.Equal(t, domain.MetricOpenRate, c.WinnerMetric)

	require.NoError(t, repos.Campaigns.IncrementCounter(ctx, c.ID, domain.CounterSent))
	require.NoError(t, repos.Campaigns.IncrementCounter(ctx, c.ID, domain.CounterSent))
	require.NoError(t, repos.Campaigns.IncrementCounter(ctx, c.ID, domain.CounterOpened))
	assert.Error(t, repos.Campaigns.IncrementCounter(ctx, c.ID, "id"))
	assert.Error(t, repos.Campaigns.IncrementCounter(ctx, c.ID, domain.CounterConverted))

	got, err := repos.Campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.OpenedCount)

	v := &domain.EmailCampaignVariant{CampaignID: c.ID, Name: "A"}
	require.NoError(t, repos.Campaigns.CreateVariant(ctx, v))
	assert.Equal(t, 1, v.Weight)
	require.NoError(t, repos.Campaigns.IncrementVariantCounter(ctx, v.ID, domain.CounterConverted))
	assert.Error(t, repos.Campaigns.IncrementVariantCounter(ctx, v.ID, domain.CounterBounced))

	variants, err := repos.Campaigns.ListVariants(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, 1, variants[0].ConvertedCount)
}

func TestCampaignRepo_SetStatusKeepsSentAt(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	c := &domain.EmailCampaign{Name: "Fall"}
	require.NoError(t, repos.Campaigns.Create(ctx, c))

	at := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Campaigns.SetStatus(ctx, c.ID, domain.CampaignStatusSent, &at))
	require.NoError(t, repos.Campaigns.SetStatus(ctx, c.ID, domain.CampaignStatusSent, nil))

	got, err := repos.Campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SentAt)
	assert.True(t, at.Equal(*got.SentAt))
}

func TestEmailSendRepo_MarkEvent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	at := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	newSend := func(t *testing.T) *domain.EmailSend {
		s := &domain.EmailSend{ToAddress: "a@example.com", Subject: "Hi", Status: domain.SendStatusSent}
		require.NoError(t, repos.EmailSends.Create(ctx, s))
		return s
	}

	t.Run("first open only", func(t *testing.T) {
		s := newSend(t)
		ok, err := repos.EmailSends.MarkEvent(ctx, s.ID, domain.SendStatusOpened, at)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repos.EmailSends.MarkEvent(ctx, s.ID, domain.SendStatusOpened, at.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repos.EmailSends.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SendStatusOpened, got.Status)
		require.NotNil(t, got.OpenedAt)
		assert.True(t, at.Equal(*got.OpenedAt))
	})

	t.Run("click implies open", func(t *testing.T) {
		s := newSend(t)
		ok, err := repos.EmailSends.MarkEvent(ctx, s.ID, domain.SendStatusClicked, at)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repos.EmailSends.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SendStatusClicked, got.Status)
		assert.NotNil(t, got.OpenedAt)
		assert.NotNil(t, got.ClickedAt)
	})

	t.Run("bounce only from sent", func(t *testing.T) {
		s := newSend(t)
		_, err := repos.EmailSends.MarkEvent(ctx, s.ID, domain.SendStatusOpened, at)
		require.NoError(t, err)

		ok, err := repos.EmailSends.MarkEvent(ctx, s.ID, domain.SendStatusBounced, at)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown event", func(t *testing.T) {
		s := newSend(t)
		_, err := repos.EmailSends.MarkEvent(ctx, s.ID, "exploded", at)
		assert.True(t, domain.IsValidation(err))
	})
}
