package domain

import "time"

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// SentimentLabels enumerates the canonical sentiment labels.
var SentimentLabels = []SentimentLabel{SentimentPositive, SentimentNeutral, SentimentNegative}

type Emotion string

const (
	EmotionHappiness  Emotion = "happiness"
	EmotionSadness    Emotion = "sadness"
	EmotionAnger      Emotion = "anger"
	EmotionAnxiety    Emotion = "anxiety"
	EmotionCalmness   Emotion = "calmness"
	EmotionExcitement Emotion = "excitement"
)

// Emotions enumerates the canonical emotion labels in their canonical order.
// The order matters: argmax ties during normalization resolve to the first
// occurrence in this slice.
var Emotions = []Emotion{
	EmotionHappiness,
	EmotionSadness,
	EmotionAnger,
	EmotionAnxiety,
	EmotionCalmness,
	EmotionExcitement,
}

// Sentiment is a label plus confidence score in [0,1].
type Sentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// EmotionScores holds one score in [0,1] per canonical emotion.
type EmotionScores struct {
	Happiness  float64 `json:"happiness"`
	Sadness    float64 `json:"sadness"`
	Anger      float64 `json:"anger"`
	Anxiety    float64 `json:"anxiety"`
	Calmness   float64 `json:"calmness"`
	Excitement float64 `json:"excitement"`
}

// Get returns the score for a canonical emotion.
func (e EmotionScores) Get(emotion Emotion) float64 {
	switch emotion {
	case EmotionHappiness:
		return e.Happiness
	case EmotionSadness:
		return e.Sadness
	case EmotionAnger:
		return e.Anger
	case EmotionAnxiety:
		return e.Anxiety
	case EmotionCalmness:
		return e.Calmness
	case EmotionExcitement:
		return e.Excitement
	default:
		return 0
	}
}

// Set assigns the score for a canonical emotion.
func (e *EmotionScores) Set(emotion Emotion, score float64) {
	switch emotion {
	case EmotionHappiness:
		e.Happiness = score
	case EmotionSadness:
		e.Sadness = score
	case EmotionAnger:
		e.Anger = score
	case EmotionAnxiety:
		e.Anxiety = score
	case EmotionCalmness:
		e.Calmness = score
	case EmotionExcitement:
		e.Excitement = score
	}
}

// AnalysisRecord is the canonical, fully valid result of diary analysis.
// Every field is present and inside its declared domain after normalization.
type AnalysisRecord struct {
	Summary        string        `json:"summary"`
	Sentiment      Sentiment     `json:"sentiment"`
	EmotionScores  EmotionScores `json:"emotionScores"`
	PrimaryEmotion Emotion       `json:"primaryEmotion"`
	ComfortMessage string        `json:"comfortMessage"`
	Tags           []string      `json:"tags"`
}

// ConversationTurn is one message in the append-only exchange on an entry.
type ConversationTurn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DiaryEntry is a diary text plus its analysis and conversation log.
type DiaryEntry struct {
	ID            string             `json:"id"`
	OwnerID       string             `json:"ownerId"`
	Text          string             `json:"text"`
	Analysis      AnalysisRecord     `json:"analysis"`
	Conversations []ConversationTurn `json:"conversations"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AnonymousOwnerID is the owner recorded for entries created without
// authentication. Unauthenticated reads are scoped to this owner too.
const AnonymousOwnerID = "anonymous"
