package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"mooddiary/pkg/domain"
)

// GormStore implements Store using GORM over an embedded SQLite database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database file and runs auto-migrations. Migrations
// are additive only: existing columns are never altered or dropped.
func NewGormStore(path string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY under concurrent requests.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&UserModel{}, &DiaryEntryModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "password_hash"}),
	}).Create(&model).Error
}

// HasUsername checks if a username is taken.
func (s *GormStore) HasUsername(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasEmail checks if an email is registered.
func (s *GormStore) HasEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveEntry stores a new diary entry.
func (s *GormStore) SaveEntry(e domain.DiaryEntry) error {
	model, err := entryToModel(e)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetEntry retrieves an entry; a non-empty ownerID scopes the lookup so a
// foreign-owned entry reads as absent.
func (s *GormStore) GetEntry(id, ownerID string) (domain.DiaryEntry, bool, error) {
	var model DiaryEntryModel
	tx := s.db.Where("id = ?", id)
	if ownerID != "" {
		tx = tx.Where("owner_id = ?", ownerID)
	}
	if err := tx.First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.DiaryEntry{}, false, nil
		}
		return domain.DiaryEntry{}, false, err
	}
	entry, err := entryFromModel(model)
	if err != nil {
		return domain.DiaryEntry{}, false, err
	}
	return entry, true, nil
}

// ListEntries returns entries newest-first, optionally scoped to an owner.
func (s *GormStore) ListEntries(ownerID string) ([]domain.DiaryEntry, error) {
	var models []DiaryEntryModel
	tx := s.db.Order("created_at DESC")
	if ownerID != "" {
		tx = tx.Where("owner_id = ?", ownerID)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DiaryEntry, 0, len(models))
	for _, m := range models {
		entry, err := entryFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, entry)
	}
	return res, nil
}

// UpdateEntry replaces text and the full analysis record, preserving
// identity, owner, and conversation log.
func (s *GormStore) UpdateEntry(id string, text string, analysis domain.AnalysisRecord, updatedAt time.Time) error {
	tags, err := json.Marshal(analysis.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res := s.db.Model(&DiaryEntryModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"text":               text,
			"summary":            analysis.Summary,
			"sentiment_label":    string(analysis.Sentiment.Label),
			"sentiment_score":    analysis.Sentiment.Score,
			"emotion_happiness":  analysis.EmotionScores.Happiness,
			"emotion_sadness":    analysis.EmotionScores.Sadness,
			"emotion_anger":      analysis.EmotionScores.Anger,
			"emotion_anxiety":    analysis.EmotionScores.Anxiety,
			"emotion_calmness":   analysis.EmotionScores.Calmness,
			"emotion_excitement": analysis.EmotionScores.Excitement,
			"primary_emotion":    string(analysis.PrimaryEmotion),
			"comfort_message":    analysis.ComfortMessage,
			"tags":               datatypes.JSON(tags),
			"updated_at":         updatedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateConversations rewrites the entry's conversation log together with the
// updated timestamp in a single statement.
func (s *GormStore) UpdateConversations(id string, turns []domain.ConversationTurn, updatedAt time.Time) error {
	blob, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal conversations: %w", err)
	}
	res := s.db.Model(&DiaryEntryModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"conversations": datatypes.JSON(blob),
			"updated_at":    updatedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntry removes an entry.
func (s *GormStore) DeleteEntry(id string) error {
	res := s.db.Delete(&DiaryEntryModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// model conversions

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func entryToModel(e domain.DiaryEntry) (DiaryEntryModel, error) {
	tags, err := json.Marshal(e.Analysis.Tags)
	if err != nil {
		return DiaryEntryModel{}, fmt.Errorf("marshal tags: %w", err)
	}
	turns := e.Conversations
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	conversations, err := json.Marshal(turns)
	if err != nil {
		return DiaryEntryModel{}, fmt.Errorf("marshal conversations: %w", err)
	}
	return DiaryEntryModel{
		ID:                e.ID,
		OwnerID:           e.OwnerID,
		Text:              e.Text,
		Summary:           e.Analysis.Summary,
		SentimentLabel:    string(e.Analysis.Sentiment.Label),
		SentimentScore:    e.Analysis.Sentiment.Score,
		EmotionHappiness:  e.Analysis.EmotionScores.Happiness,
		EmotionSadness:    e.Analysis.EmotionScores.Sadness,
		EmotionAnger:      e.Analysis.EmotionScores.Anger,
		EmotionAnxiety:    e.Analysis.EmotionScores.Anxiety,
		EmotionCalmness:   e.Analysis.EmotionScores.Calmness,
		EmotionExcitement: e.Analysis.EmotionScores.Excitement,
		PrimaryEmotion:    string(e.Analysis.PrimaryEmotion),
		ComfortMessage:    e.Analysis.ComfortMessage,
		Tags:              datatypes.JSON(tags),
		Conversations:     datatypes.JSON(conversations),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}, nil
}

func entryFromModel(m DiaryEntryModel) (domain.DiaryEntry, error) {
	var tags []string
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &tags); err != nil {
			return domain.DiaryEntry{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if tags == nil {
		tags = []string{}
	}
	var turns []domain.ConversationTurn
	if len(m.Conversations) > 0 {
		if err := json.Unmarshal(m.Conversations, &turns); err != nil {
			return domain.DiaryEntry{}, fmt.Errorf("unmarshal conversations: %w", err)
		}
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	return domain.DiaryEntry{
		ID:      m.ID,
		OwnerID: m.OwnerID,
		Text:    m.Text,
		Analysis: domain.AnalysisRecord{
			Summary: m.Summary,
			Sentiment: domain.Sentiment{
				Label: domain.SentimentLabel(m.SentimentLabel),
				Score: m.SentimentScore,
			},
			EmotionScores: domain.EmotionScores{
				Happiness:  m.EmotionHappiness,
				Sadness:    m.EmotionSadness,
				Anger:      m.EmotionAnger,
				Anxiety:    m.EmotionAnxiety,
				Calmness:   m.EmotionCalmness,
				Excitement: m.EmotionExcitement,
			},
			PrimaryEmotion: domain.Emotion(m.PrimaryEmotion),
			ComfortMessage: m.ComfortMessage,
			Tags:           tags,
		},
		Conversations: turns,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}
