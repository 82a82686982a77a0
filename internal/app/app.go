package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mooddiary/internal/usertoken"
	"mooddiary/pkg/auth"
	"mooddiary/pkg/domain"
	"mooddiary/pkg/store"
)

// EmotionAnalyzer produces analysis records and conversational replies for
// diary text. Satisfied by analysis.Analyzer.
type EmotionAnalyzer interface {
	Analyze(ctx context.Context, diaryText string) (domain.AnalysisRecord, error)
	GenerateFollowup(ctx context.Context, diaryText string, history []domain.ConversationTurn, userMessage string) (string, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabasePath string
	Store        store.Store
	Analyzer     EmotionAnalyzer
	Tokens       *usertoken.Manager
}

// App is the core application service wiring storage, analysis and auth.
type App struct {
	store    store.Store
	analyzer EmotionAnalyzer
	tokens   *usertoken.Manager
	now      func() time.Time
}

// New constructs the application. When cfg.Store is nil the SQLite store at
// cfg.DatabasePath is opened.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabasePath == "" {
			return nil, fmt.Errorf("database path required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
	}
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token manager required")
	}
	return &App{
		store:    dataStore,
		analyzer: cfg.Analyzer,
		tokens:   cfg.Tokens,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates a new account and issues a session token.
func (a *App) Register(username, email, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" {
		return domain.User{}, "", ErrUsernameRequired
	}
	if email == "" {
		return domain.User{}, "", ErrEmailRequired
	}
	if password == "" {
		return domain.User{}, "", ErrPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	taken, err := a.store.HasUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return domain.User{}, "", ErrUsernameTaken
	}
	taken, err = a.store.HasEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, "", ErrEmailTaken
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    a.now(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	return a.issueToken(user)
}

// Login validates credentials and issues a session token.
func (a *App) Login(username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	return a.issueToken(user)
}

func (a *App) issueToken(user domain.User) (domain.User, string, error) {
	token, err := a.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// GetUser resolves a user by id.
func (a *App) GetUser(id string) (domain.User, bool, error) {
	return a.store.GetUserByID(id)
}

// CreateEntry analyzes diary text and persists the entry. The conversation
// log is seeded with the comfort message as the opening assistant turn.
// Analyzer transport failures abort creation; unparsable model output does
// not (the analyzer degrades it to a default record).
func (a *App) CreateEntry(ctx context.Context, ownerID, text string) (domain.DiaryEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.DiaryEntry{}, ErrTextRequired
	}
	record, err := a.analyzer.Analyze(ctx, text)
	if err != nil {
		return domain.DiaryEntry{}, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	now := a.now()
	entry := domain.DiaryEntry{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Text:     text,
		Analysis: record,
		Conversations: []domain.ConversationTurn{
			{Role: domain.RoleAssistant, Message: record.ComfortMessage, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveEntry(entry); err != nil {
		return domain.DiaryEntry{}, fmt.Errorf("save entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns the owner's entries, newest first.
func (a *App) ListEntries(ownerID string) ([]domain.DiaryEntry, error) {
	return a.store.ListEntries(ownerID)
}

// GetEntry returns one entry scoped to the owner.
func (a *App) GetEntry(id, ownerID string) (domain.DiaryEntry, error) {
	entry, ok, err := a.store.GetEntry(id, ownerID)
	if err != nil {
		return domain.DiaryEntry{}, fmt.Errorf("fetch entry: %w", err)
	}
	if !ok {
		return domain.DiaryEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

// UpdateEntry replaces the text of an owned entry and re-analyzes it.
func (a *App) UpdateEntry(ctx context.Context, id, ownerID, text string) (domain.DiaryEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.DiaryEntry{}, ErrTextRequired
	}
	entry, err := a.GetEntry(id, ownerID)
	if err != nil {
		return domain.DiaryEntry{}, err
	}
	record, err := a.analyzer.Analyze(ctx, text)
	if err != nil {
		return domain.DiaryEntry{}, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	updatedAt := a.now()
	if err := a.store.UpdateEntry(id, text, record, updatedAt); err != nil {
		if err == store.ErrNotFound {
			return domain.DiaryEntry{}, ErrEntryNotFound
		}
		return domain.DiaryEntry{}, fmt.Errorf("update entry: %w", err)
	}
	entry.Text = text
	entry.Analysis = record
	entry.UpdatedAt = updatedAt
	return entry, nil
}

// DeleteEntry removes an owned entry.
func (a *App) DeleteEntry(id, ownerID string) error {
	if _, err := a.GetEntry(id, ownerID); err != nil {
		return err
	}
	if err := a.store.DeleteEntry(id); err != nil {
		if err == store.ErrNotFound {
			return ErrEntryNotFound
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Reply appends a user message to an entry's conversation log and generates
// an assistant reply. Both turns are persisted; the assistant text and the
// full updated log are returned.
func (a *App) Reply(ctx context.Context, id, ownerID, message string) (string, []domain.ConversationTurn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", nil, ErrMessageRequired
	}
	entry, err := a.GetEntry(id, ownerID)
	if err != nil {
		return "", nil, err
	}
	reply, err := a.analyzer.GenerateFollowup(ctx, entry.Text, entry.Conversations, message)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	now := a.now()
	turns := append(entry.Conversations,
		domain.ConversationTurn{Role: domain.RoleUser, Message: message, Timestamp: now},
		domain.ConversationTurn{Role: domain.RoleAssistant, Message: reply, Timestamp: now},
	)
	if err := a.store.UpdateConversations(id, turns, now); err != nil {
		if err == store.ErrNotFound {
			return "", nil, ErrEntryNotFound
		}
		return "", nil, fmt.Errorf("save conversations: %w", err)
	}
	return reply, turns, nil
}

// AnalyzeText runs diary text through the analyzer without persisting anything.
func (a *App) AnalyzeText(ctx context.Context, text string) (domain.AnalysisRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.AnalysisRecord{}, ErrTextRequired
	}
	record, err := a.analyzer.Analyze(ctx, text)
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	return record, nil
}
