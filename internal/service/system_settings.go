package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"productradar/internal/models"
	"productradar/internal/recommend"
	"productradar/internal/repository"
	"productradar/internal/signal"
)

const (
	FeaturePrefix = "feature."

	FeatureScoring       = "feature.scoring"
	FeatureRecommender   = "feature.recommender"
	FeatureLLMCleaner    = "feature.llm_cleaner"
	FeatureLLMAnalyst    = "feature.llm_analyst"
	featureCollectorBase = "feature.collector."
)

// CollectorSwitch is the switch key for one collector.
func CollectorSwitch(source string) string {
	return featureCollectorBase + strings.ToLower(strings.TrimSpace(source))
}

// DefaultFeatureSwitches returns the switches seeded on startup. Every known
// collector starts enabled.
func DefaultFeatureSwitches(collectors ...string) map[string]bool {
	out := map[string]bool{
		FeatureScoring:     true,
		FeatureRecommender: true,
		FeatureLLMCleaner:  true,
		FeatureLLMAnalyst:  true,
	}
	for _, name := range collectors {
		if strings.TrimSpace(name) == "" {
			continue
		}
		out[CollectorSwitch(name)] = true
	}
	return out
}

type SettingsStore interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type SystemSettingsService struct {
	Repo SettingsStore
}

// Switch is the API view of one feature switch.
type Switch struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnsureDefaultSwitches inserts missing switches. Existing values are left alone
// so an operator's choice survives restarts.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context, collectors ...string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches(collectors...) {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

func (s *SystemSettingsService) ListSwitches(ctx context.Context) ([]Switch, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	prefix := FeaturePrefix
	items, err := s.Repo.ListSystemSettings(ctx, repository.ListSystemSettingsParams{Limit: 500, Prefix: &prefix})
	if err != nil {
		return nil, err
	}
	out := make([]Switch, 0, len(items))
	for _, it := range items {
		enabled := false
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, Switch{
			Name:        strings.TrimPrefix(it.Key, FeaturePrefix),
			Key:         it.Key,
			Enabled:     enabled,
			Description: it.Description,
			UpdatedAt:   it.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SwitchedCleaner consults a feature switch on every batch so the LLM cleaner
// can be turned off at runtime.
type SwitchedCleaner struct {
	Settings *SystemSettingsService
	Key      string
	Cleaner  signal.NameCleaner
}

func (s SwitchedCleaner) CleanNames(ctx context.Context, events []signal.Event) ([]signal.Event, error) {
	if s.Cleaner == nil || !s.Settings.IsEnabled(ctx, s.Key, true) {
		return events, nil
	}
	return s.Cleaner.CleanNames(ctx, events)
}

// SwitchedAnalyst falls back to the template analysis while the analyst switch is off.
type SwitchedAnalyst struct {
	Settings *SystemSettingsService
	Key      string
	Analyst  recommend.Analyst
}

func (s SwitchedAnalyst) Analyze(ctx context.Context, candidates []recommend.Candidate) ([]recommend.Analysis, error) {
	if s.Analyst != nil && s.Settings.IsEnabled(ctx, s.Key, true) {
		return s.Analyst.Analyze(ctx, candidates)
	}
	out := make([]recommend.Analysis, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, recommend.TemplateAnalysis(c))
	}
	return out, nil
}
