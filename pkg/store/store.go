package store

import (
	"errors"
	"time"

	"mooddiary/pkg/domain"
)

// ErrNotFound is returned when an entry or user id is absent.
var ErrNotFound = errors.New("not found")

// Store defines persistence operations for users and diary entries.
//
// Read operations taking an ownerID never return another owner's rows when
// the filter is non-empty; an empty ownerID means "no filter". This is the
// access-control invariant every implementation must uphold.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUsername(username string) (bool, error)
	HasEmail(email string) (bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// diary entries
	SaveEntry(domain.DiaryEntry) error
	GetEntry(id, ownerID string) (domain.DiaryEntry, bool, error)
	ListEntries(ownerID string) ([]domain.DiaryEntry, error)
	UpdateEntry(id string, text string, analysis domain.AnalysisRecord, updatedAt time.Time) error
	UpdateConversations(id string, turns []domain.ConversationTurn, updatedAt time.Time) error
	DeleteEntry(id string) error
}
