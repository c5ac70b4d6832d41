package workshop

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shopflow/internal/domain"
)

// NormalizePresetName trims, collapses inner whitespace and title-cases a preset name
func NormalizePresetName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.English).String(name)
}

func parseKind(kind string) (domain.PresetKind, error) {
	k := domain.PresetKind(kind)
	if !domain.IsValidPresetKind(k) {
		return "", domain.NewValidationError("kind", "unknown preset kind %q", kind)
	}
	return k, nil
}

// ListPresets returns presets of a kind, most used first
func (s *Service) ListPresets(ctx context.Context, kind, category string) ([]domain.Preset, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	return s.repos.Presets.List(ctx, k, category)
}

// UsePreset records one use of a preset
func (s *Service) UsePreset(ctx context.Context, kind, id string) (*domain.Preset, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Presets.IncrementUsage(ctx, k, id); err != nil {
		return nil, fmt.Errorf("preset %s: %w", id, err)
	}
	return s.repos.Presets.GetByID(ctx, k, id)
}

// AddOrUsePreset finds a preset by name and category ignoring case, creating
// it when missing, and records one use.
func (s *Service) AddOrUsePreset(ctx context.Context, kind, name, category, description string) (*domain.Preset, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	name = NormalizePresetName(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	category = strings.TrimSpace(category)

	existing, err := s.repos.Presets.FindByName(ctx, k, name, category)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing = &domain.Preset{Kind: k, Name: name, Category: category, Description: description}
		if err := s.repos.Presets.Create(ctx, existing); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"kind": k, "name": name}).Info("Preset added")
	}

	if err := s.repos.Presets.IncrementUsage(ctx, k, existing.ID); err != nil {
		// The preset exists; the counter is best effort
		log.WithError(err).WithField("preset_id", existing.ID).Warn("Failed to increment preset usage")
		return existing, nil
	}
	existing.UsageCount++
	return existing, nil
}

// DeletePreset removes a preset
func (s *Service) DeletePreset(ctx context.Context, kind, id string) error {
	k, err := parseKind(kind)
	if err != nil {
		return err
	}
	return s.repos.Presets.Delete(ctx, k, id)
}
