package store

import (
	"sync"
	"time"

	"mooddiary/pkg/domain"
)

// MemoryStore keeps users and entries in-process. Used by tests and for
// running without a database file.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User // key: user ID
	byName  map[string]string      // username -> user ID
	entries map[string]domain.DiaryEntry
	order   []string // entry IDs in insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		byName:  make(map[string]string),
		entries: make(map[string]domain.DiaryEntry),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	return nil
}

func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byName[username]
	return ok, nil
}

func (m *MemoryStore) HasEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveEntry(e domain.DiaryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[e.ID]; !exists {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = cloneEntry(e)
	return nil
}

func (m *MemoryStore) GetEntry(id, ownerID string) (domain.DiaryEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.DiaryEntry{}, false, nil
	}
	if ownerID != "" && e.OwnerID != ownerID {
		return domain.DiaryEntry{}, false, nil
	}
	return cloneEntry(e), true, nil
}

// ListEntries returns entries newest-first to match the SQL store ordering.
func (m *MemoryStore) ListEntries(ownerID string) ([]domain.DiaryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.DiaryEntry, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		e, ok := m.entries[m.order[i]]
		if !ok {
			continue
		}
		if ownerID != "" && e.OwnerID != ownerID {
			continue
		}
		res = append(res, cloneEntry(e))
	}
	return res, nil
}

func (m *MemoryStore) UpdateEntry(id string, text string, analysis domain.AnalysisRecord, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Text = text
	e.Analysis = analysis
	e.UpdatedAt = updatedAt.UTC()
	m.entries[id] = cloneEntry(e)
	return nil
}

func (m *MemoryStore) UpdateConversations(id string, turns []domain.ConversationTurn, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Conversations = append([]domain.ConversationTurn(nil), turns...)
	e.UpdatedAt = updatedAt.UTC()
	m.entries[id] = e
	return nil
}

func (m *MemoryStore) DeleteEntry(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneEntry(e domain.DiaryEntry) domain.DiaryEntry {
	e.Conversations = append([]domain.ConversationTurn(nil), e.Conversations...)
	e.Analysis.Tags = append([]string(nil), e.Analysis.Tags...)
	return e
}
