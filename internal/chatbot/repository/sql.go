package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/botdash/botdash/internal/chatbot"
)

// chatbotRow is the relational shape of a chatbot. Resource paths are kept
// as a JSON array column. IDs are UUIDv7, so they sort in insert order.
type chatbotRow struct {
	ID               string `gorm:"primaryKey;size:64"`
	OwnerID          string `gorm:"size:128;not null;index:idx_chatbots_owner_created,priority:1"`
	Name             string `gorm:"not null"`
	PersonalityStyle string `gorm:"size:32;not null"`
	ThemeColor       string `gorm:"size:16;not null"`
	SystemPrompt     string `gorm:"type:text;not null"`
	ResourceFiles    datatypes.JSON
	EmbedSnippet     string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"index:idx_chatbots_owner_created,priority:2"`
	UpdatedAt        time.Time
}

func (chatbotRow) TableName() string { return "chatbots" }

func (r *chatbotRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id.String()
	}
	return nil
}

func (r *chatbotRow) toModel() (*chatbot.Chatbot, error) {
	paths := []string{}
	if len(r.ResourceFiles) > 0 {
		if err := json.Unmarshal(r.ResourceFiles, &paths); err != nil {
			return nil, fmt.Errorf("decode resource files of %s: %w", r.ID, err)
		}
	}
	return &chatbot.Chatbot{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Name:              r.Name,
		PersonalityStyle:  chatbot.PersonalityStyle(r.PersonalityStyle),
		ThemeColor:        r.ThemeColor,
		SystemPrompt:      r.SystemPrompt,
		ResourceFilePaths: paths,
		EmbedSnippet:      r.EmbedSnippet,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

// SQLRepo is a gorm-backed Repository (Postgres in deployments).
type SQLRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLRepo migrates the chatbots table and returns the repository.
func NewSQLRepo(db *gorm.DB) (*SQLRepo, error) {
	if err := db.AutoMigrate(&chatbotRow{}); err != nil {
		return nil, fmt.Errorf("migrate chatbots: %w", err)
	}
	return &SQLRepo{db: db, now: time.Now}, nil
}

// WithClock replaces the timestamp source.
func (s *SQLRepo) WithClock(now func() time.Time) *SQLRepo {
	s.now = now
	return s
}

// stamp is the current time at Postgres timestamp precision.
func (s *SQLRepo) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *SQLRepo) Insert(ctx context.Context, c *chatbot.Chatbot) error {
	paths := c.ResourceFilePaths
	if paths == nil {
		paths = []string{}
	}
	raw, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	now := s.stamp()
	row := &chatbotRow{
		OwnerID:          c.OwnerID,
		Name:             c.Name,
		PersonalityStyle: string(c.PersonalityStyle),
		ThemeColor:       c.ThemeColor,
		SystemPrompt:     c.SystemPrompt,
		ResourceFiles:    datatypes.JSON(raw),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	c.ID = row.ID
	c.ResourceFilePaths = paths
	c.CreatedAt = row.CreatedAt
	c.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *SQLRepo) SetEmbedSnippet(ctx context.Context, id, snippet string) (time.Time, error) {
	now := s.stamp()
	res := s.db.WithContext(ctx).Model(&chatbotRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"embed_snippet": snippet, "updated_at": now})
	if res.Error != nil {
		return time.Time{}, res.Error
	}
	if res.RowsAffected == 0 {
		return time.Time{}, ErrNotFound
	}
	return now, nil
}

func (s *SQLRepo) Get(ctx context.Context, ownerID, id string) (*chatbot.Chatbot, error) {
	var row chatbotRow
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (s *SQLRepo) ListByOwner(ctx context.Context, ownerID string) ([]*chatbot.Chatbot, error) {
	var rows []chatbotRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*chatbot.Chatbot, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLRepo) Delete(ctx context.Context, ownerID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&chatbotRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
