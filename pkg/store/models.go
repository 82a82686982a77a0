package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// DiaryEntryModel stores the analysis alongside the text: one REAL column per
// emotion score, tags and conversation turns as embedded JSON text blobs.
type DiaryEntryModel struct {
	ID                string         `gorm:"primaryKey"`
	OwnerID           string         `gorm:"not null;index"`
	Text              string         `gorm:"type:text;not null"`
	Summary           string         `gorm:"not null"`
	SentimentLabel    string         `gorm:"not null"`
	SentimentScore    float64        `gorm:"not null"`
	EmotionHappiness  float64        `gorm:"not null"`
	EmotionSadness    float64        `gorm:"not null"`
	EmotionAnger      float64        `gorm:"not null"`
	EmotionAnxiety    float64        `gorm:"not null"`
	EmotionCalmness   float64        `gorm:"not null"`
	EmotionExcitement float64        `gorm:"not null"`
	PrimaryEmotion    string         `gorm:"not null"`
	ComfortMessage    string         `gorm:"default:''"`
	Tags              datatypes.JSON `gorm:"not null"`
	Conversations     datatypes.JSON `gorm:"default:'[]'"`
	CreatedAt         time.Time      `gorm:"not null;index"`
	UpdatedAt         time.Time      `gorm:"not null"`
}

func (DiaryEntryModel) TableName() string { return "diary_entries" }
