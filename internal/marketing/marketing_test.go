package marketing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopflow/internal/domain"
	"shopflow/internal/domain/notifications"
	"shopflow/internal/repository"
	"shopflow/internal/repository/sqlite"
	"shopflow/internal/templates"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc      *Service
	repos    *repository.Repositories
	provider *notifications.MockEmailProvider
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "marketing.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	repos := sqlite.NewRepositories(db)
	provider := &notifications.MockEmailProvider{}
	clk := &clock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	svc := New(repos, notifications.NewCompositeNotifier(provider, nil, "shop@example.com"), templates.NewManager(), Options{
		ShopName: "Northside Auto",
		Now:      clk.Now,
	})
	return &fixture{svc: svc, repos: repos, provider: provider, clock: clk}
}

func (f *fixture) customer(t *testing.T, first, email string, optOut bool) *domain.Customer {
	t.Helper()
	c := &domain.Customer{FirstName: first, LastName: "Test", Email: email, EmailOptOut: optOut}
	require.NoError(t, f.repos.Customers.Create(context.Background(), c))
	return c
}

func (f *fixture) template(t *testing.T, name, subject string) *domain.EmailTemplate {
	t.Helper()
	tpl, err := f.svc.CreateTemplate(context.Background(), TemplateForm{
		Name:     name,
		Subject:  subject,
		HTMLBody: "<p>Hi {{first_name}}</p>",
		TextBody: "Hi {{first_name}}, from {{shop_name}}",
	})
	require.NoError(t, err)
	return tpl
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateTemplate(ctx, TemplateForm{Name: "x", Subject: "s"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "html_body", vErr.Field)

	tpl := f.template(t, "Welcome", "Welcome {{first_name}}")
	assert.Equal(t, 1, tpl.Version)

	preview, err := f.svc.PreviewTemplate(ctx, tpl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Welcome Alex", preview.Subject)
	assert.Equal(t, "Hi Alex, from Northside Auto", preview.TextBody)

	updated, err := f.svc.UpdateTemplate(ctx, tpl.ID, TemplateForm{Name: "Welcome", Subject: "Hello {{first_name}}", TextBody: "v2"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	preview, err = f.svc.PreviewTemplate(ctx, tpl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello Alex", preview.Subject)

	require.NoError(t, f.svc.DeleteTemplate(ctx, tpl.ID))
	_, err = f.svc.GetTemplate(ctx, tpl.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTriggerCampaign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "Spring", "Spring service, {{first_name}}")
	f.customer(t, "Ana", "ana@example.com", false)
	f.customer(t, "Ben", "ben@example.com", false)
	f.customer(t, "Cy", "cy@example.com", true)
	f.customer(t, "Dee", "", false)

	campaign, err := f.svc.CreateCampaign(ctx, CampaignForm{Name: "Spring", TemplateID: &tpl.ID})
	require.NoError(t, err)

	result, err := f.svc.TriggerCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Sent)
	require.Equal(t, 2, f.provider.Count())
	assert.Equal(t, "shop@example.com", f.provider.Sent[0].From)
	assert.Contains(t, []string{"Spring service, Ana", "Spring service, Ben"}, f.provider.Sent[0].Subject)

	got, err := f.svc.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusSent, got.Status)
	assert.Equal(t, 2, got.SentCount)
	require.NotNil(t, got.SentAt)

	sends, err := f.repos.EmailSends.ListByCampaign(ctx, campaign.ID, 10)
	require.NoError(t, err)
	assert.Len(t, sends, 2)

	_, err = f.svc.TriggerCampaign(ctx, campaign.ID)
	assert.True(t, domain.IsValidation(err), "a sent campaign cannot be sent again")
}

func TestTriggerCampaign_RequiresTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.customer(t, "Ana", "ana@example.com", false)

	campaign, err := f.svc.CreateCampaign(ctx, CampaignForm{Name: "No body"})
	require.NoError(t, err)

	_, err = f.svc.TriggerCampaign(ctx, campaign.ID)
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 0, f.provider.Count())

	got, err := f.svc.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusDraft, got.Status)
}

func TestTriggerCampaign_PartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "Promo", "Promo")
	f.customer(t, "Ana", "ana@example.com", false)
	f.provider.Err = errors.New("smtp down")

	campaign, err := f.svc.CreateCampaign(ctx, CampaignForm{Name: "Promo", TemplateID: &tpl.ID})
	require.NoError(t, err)

	result, err := f.svc.TriggerCampaign(ctx, campaign.ID)
	var pErr *domain.PartialFailureError
	require.ErrorAs(t, err, &pErr)
	assert.Len(t, pErr.Failed, 1)
	assert.Equal(t, 1, result.Failed)

	sends, err := f.repos.EmailSends.ListByCampaign(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, sends, 1)
	assert.Equal(t, domain.SendStatusFailed, sends[0].Status)
	assert.Contains(t, sends[0].Error, "smtp down")
}

// cancelAfterFirst accepts one email, then cancels the run it is part of
type cancelAfterFirst struct {
	cancel context.CancelFunc
	sent   int
}

func (p *cancelAfterFirst) Name() string { return "cancel-after-first" }

func (p *cancelAfterFirst) Send(ctx context.Context, _ notifications.EmailNotification) error {
	p.sent++
	p.cancel()
	return nil
}

func TestTriggerCampaign_CancelledRunIsNotLeftSending(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, "Promo", "Promo")
	for _, name := range []string{"Ana", "Ben", "Cy"} {
		f.customer(t, name, name+"@example.com", false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := &cancelAfterFirst{cancel: cancel}
	svc := New(f.repos, notifications.NewCompositeNotifier(provider, nil, "shop@example.com"), templates.NewManager(), Options{
		ShopName: "Northside Auto",
		Now:      f.clock.Now,
	})

	campaign, err := svc.CreateCampaign(context.Background(), CampaignForm{Name: "Promo", TemplateID: &tpl.ID})
	require.NoError(t, err)

	result, err := svc.TriggerCampaign(ctx, campaign.ID)
	var pErr *domain.PartialFailureError
	require.ErrorAs(t, err, &pErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, pErr.Done, 1)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, provider.sent)

	got, err := svc.GetCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusInterrupted, got.Status)
	require.NotNil(t, got.SentAt)

	_, err = svc.TriggerCampaign(context.Background(), campaign.ID)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "status", vErr.Field)
}

func TestTriggerCampaign_ABSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tplA := f.template(t, "A", "Subject A")
	tplB := f.template(t, "B", "Subject B")
	for _, name := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		f.customer(t, name, name+"@example.com", false)
	}

	campaign, err := f.svc.CreateCampaign(ctx, CampaignForm{
		Name:     "Split",
		IsABTest: true,
		Variants: []VariantForm{
			{Name: "A", TemplateID: &tplA.ID, Weight: 2},
			{Name: "B", TemplateID: &tplB.ID, Subject: "Override for {{first_name}}", Weight: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, campaign.Variants, 2)

	result, err := f.svc.TriggerCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.ByVariant[campaign.Variants[0].ID])
	assert.Equal(t, 2, result.ByVariant[campaign.Variants[1].ID])

	got, err := f.svc.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Variants[0].SentCount)
	assert.Equal(t, 2, got.Variants[1].SentCount)

	overrides := 0
	for _, m := range f.provider.Sent {
		if len(m.Subject) > 8 && m.Subject[:8] == "Override" {
			overrides++
		}
	}
	assert.Equal(t, 2, overrides)
}

func TestCreateCampaign_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		form  CampaignForm
		field string
	}{
		{"missing name", CampaignForm{}, "name"},
		{"bad metric", CampaignForm{Name: "x", WinnerMetric: "revenue"}, "winner_metric"},
		{"one variant", CampaignForm{Name: "x", IsABTest: true, Variants: []VariantForm{{Name: "A"}}}, "variants"},
		{"negative sample", CampaignForm{Name: "x", MinSampleSize: -1}, "min_sample_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCampaign(context.Background(), tt.form)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPickWinner(t *testing.T) {
	variants := []domain.EmailCampaignVariant{
		{ID: "a", SentCount: 100, OpenedCount: 30, ClickedCount: 5},
		{ID: "b", SentCount: 100, OpenedCount: 30, ClickedCount: 9},
		{ID: "c", SentCount: 10, OpenedCount: 9},
	}

	w, ok := PickWinner(variants, domain.MetricOpenRate, 50)
	require.True(t, ok)
	assert.Equal(t, "a", w.ID, "ties go to the earliest variant")

	w, ok = PickWinner(variants, domain.MetricClickRate, 50)
	require.True(t, ok)
	assert.Equal(t, "b", w.ID)

	w, ok = PickWinner(variants, domain.MetricOpenRate, 0)
	require.True(t, ok)
	assert.Equal(t, "c", w.ID)

	_, ok = PickWinner(variants, domain.MetricOpenRate, 500)
	assert.False(t, ok)

	_, ok = PickWinner([]domain.EmailCampaignVariant{{ID: "x"}}, domain.MetricOpenRate, 0)
	assert.False(t, ok, "variants with no sends are never eligible")
}

func TestSelectWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "A", "A")
	for _, name := range []string{"a1", "a2", "a3", "a4"} {
		f.customer(t, name, name+"@example.com", false)
	}
	campaign, err := f.svc.CreateCampaign(ctx, CampaignForm{
		Name:          "Split",
		IsABTest:      true,
		MinSampleSize: 2,
		Variants:      []VariantForm{{Name: "A", TemplateID: &tpl.ID}, {Name: "B", TemplateID: &tpl.ID}},
	})
	require.NoError(t, err)

	_, err = f.svc.SelectWinner(ctx, campaign.ID)
	assert.ErrorIs(t, err, ErrNoWinner)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.TriggerCampaign(ctx, campaign.ID)
	require.NoError(t, err)

	sends, err := f.repos.EmailSends.ListByCampaign(ctx, campaign.ID, 10)
	require.NoError(t, err)
	for _, s := range sends {
		if *s.VariantID == campaign.Variants[1].ID {
			_, err := f.svc.RecordEvent(ctx, s.ID, EventOpened)
			require.NoError(t, err)
			break
		}
	}

	winner, err := f.svc.SelectWinner(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.Variants[1].ID, winner.ID)

	got, err := f.svc.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WinnerVariantID)
	assert.Equal(t, winner.ID, *got.WinnerVariantID)
}

func TestRecordEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tpl := f.template(t, "T", "T")
	ana := f.customer(t, "Ana", "ana@example.com", false)
	campaign, err := f.svc.CreateCampaign(ctx, CampaignForm{Name: "C", TemplateID: &tpl.ID})
	require.NoError(t, err)
	_, err = f.svc.TriggerCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	sends, err := f.repos.EmailSends.ListByCampaign(ctx, campaign.ID, 1)
	require.NoError(t, err)
	sendID := sends[0].ID

	changed, err := f.svc.RecordEvent(ctx, sendID, EventClicked)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.RecordEvent(ctx, sendID, EventOpened)
	require.NoError(t, err)
	assert.False(t, changed, "the click already recorded the open")

	changed, err = f.svc.RecordEvent(ctx, sendID, EventClicked)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.svc.RecordEvent(ctx, sendID, EventUnsubscribed)
	require.NoError(t, err)

	got, err := f.svc.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OpenedCount)
	assert.Equal(t, 1, got.ClickedCount)
	assert.Equal(t, 1, got.UnsubscribedCount)

	customer, err := f.repos.Customers.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.True(t, customer.EmailOptOut)

	_, err = f.svc.RecordEvent(ctx, sendID, "forwarded")
	assert.True(t, domain.IsValidation(err))
	_, err = f.svc.RecordEvent(ctx, "missing", EventOpened)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
