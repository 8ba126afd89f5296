package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trustvibe/escrow-service/internal/domain"
)

const platformConfigKey = "platform"

// ConfigStore persists the platform config document as a single jsonb row.
// A missing row resolves to the compiled-in defaults.
type ConfigStore struct {
	db *gorm.DB
}

func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) Snapshot(ctx context.Context) (domain.PlatformConfig, error) {
	var rec platformConfigModel
	if err := s.db.WithContext(ctx).Where("config_key = ?", platformConfigKey).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DefaultPlatformConfig(), nil
		}
		return domain.PlatformConfig{}, err
	}
	var cfg domain.PlatformConfig
	if err := json.Unmarshal([]byte(rec.Document), &cfg); err != nil {
		return domain.PlatformConfig{}, fmt.Errorf("decode platform config: %w", err)
	}
	return cfg, nil
}

func (s *ConfigStore) Put(ctx context.Context, cfg domain.PlatformConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode platform config: %w", err)
	}
	rec := platformConfigModel{
		ConfigKey: platformConfigKey,
		Document:  string(doc),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"document":   rec.Document,
			"updated_at": rec.UpdatedAt,
		}),
	}).Create(&rec).Error
}
