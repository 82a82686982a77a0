package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mooddiary/pkg/domain"
)

// FallbackComfortMessage replaces comfort messages that are empty or shorter
// than MinComfortMessageLen runes.
const FallbackComfortMessage = "일기를 작성해주셔서 감사합니다. 오늘 하루도 수고하셨어요!"

const (
	MinComfortMessageLen = 10
	MaxTags              = 5
	summaryTruncateLen   = 50
)

// emotionAliases maps accepted input keys (Korean model vocabulary plus the
// canonical English keys) to canonical emotions.
var emotionAliases = map[string]domain.Emotion{
	"행복":         domain.EmotionHappiness,
	"슬픔":         domain.EmotionSadness,
	"분노":         domain.EmotionAnger,
	"불안":         domain.EmotionAnxiety,
	"평온":         domain.EmotionCalmness,
	"흥분":         domain.EmotionExcitement,
	"happiness":  domain.EmotionHappiness,
	"sadness":    domain.EmotionSadness,
	"anger":      domain.EmotionAnger,
	"anxiety":    domain.EmotionAnxiety,
	"calmness":   domain.EmotionCalmness,
	"excitement": domain.EmotionExcitement,
}

var sentimentAliases = map[string]domain.SentimentLabel{
	"긍정":       domain.SentimentPositive,
	"부정":       domain.SentimentNegative,
	"중립":       domain.SentimentNeutral,
	"positive": domain.SentimentPositive,
	"negative": domain.SentimentNegative,
	"neutral":  domain.SentimentNeutral,
}

// Normalize coerces a generic parsed model object, possibly partial or
// malformed in sub-fields, into a fully valid AnalysisRecord. diaryText backs
// the summary fallback. Pure function: no I/O, no randomness, and a fixed
// point on already-normalized input.
func Normalize(parsed map[string]any, diaryText string) domain.AnalysisRecord {
	record := domain.AnalysisRecord{
		EmotionScores:  normalizeEmotionScores(parsed["emotion_scores"]),
		Sentiment:      normalizeSentiment(parsed["sentiment"]),
		ComfortMessage: normalizeComfortMessage(parsed["comfort_message"]),
		Tags:           normalizeTags(parsed["tags"]),
		Summary:        normalizeSummary(parsed["summary"], diaryText),
	}
	record.PrimaryEmotion = normalizePrimaryEmotion(parsed["primary_emotion"], parsed["emotion_scores"], record.EmotionScores)
	return record
}

func normalizeEmotionScores(value any) domain.EmotionScores {
	var scores domain.EmotionScores
	obj, ok := value.(map[string]any)
	if !ok {
		return scores
	}
	for key, raw := range obj {
		emotion, ok := emotionAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		score, ok := toFloat(raw)
		if !ok {
			continue
		}
		scores.Set(emotion, round2(clamp01(score)))
	}
	return scores
}

// normalizeSentiment accepts either a bare label string or an object with
// label/score, the two shapes models actually emit.
func normalizeSentiment(value any) domain.Sentiment {
	label := ""
	score := 0.5
	switch v := value.(type) {
	case string:
		label = v
	case map[string]any:
		if raw, ok := v["label"].(string); ok {
			label = raw
		}
		if raw, ok := toFloat(v["score"]); ok {
			score = raw
		}
	}
	canonical, ok := sentimentAliases[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		canonical = domain.SentimentNeutral
	}
	return domain.Sentiment{
		Label: canonical,
		Score: round2(clamp01(score)),
	}
}

// normalizePrimaryEmotion validates the declared primary emotion and otherwise
// derives it as the argmax over normalized scores, ties broken by first
// occurrence in canonical enumeration order. When the model produced no
// emotion_scores object at all, calmness is used.
func normalizePrimaryEmotion(value any, rawScores any, scores domain.EmotionScores) domain.Emotion {
	if label, ok := value.(string); ok {
		if emotion, ok := emotionAliases[strings.ToLower(strings.TrimSpace(label))]; ok {
			return emotion
		}
	}
	if _, ok := rawScores.(map[string]any); !ok {
		return domain.EmotionCalmness
	}
	best := domain.Emotions[0]
	bestScore := scores.Get(best)
	for _, emotion := range domain.Emotions[1:] {
		if score := scores.Get(emotion); score > bestScore {
			best = emotion
			bestScore = score
		}
	}
	return best
}

func normalizeComfortMessage(value any) string {
	message, _ := value.(string)
	message = strings.TrimSpace(message)
	if len([]rune(message)) < MinComfortMessageLen {
		return FallbackComfortMessage
	}
	return message
}

func normalizeTags(value any) []string {
	var tags []string
	switch v := value.(type) {
	case nil:
		return []string{}
	case []any:
		tags = make([]string, 0, len(v))
		for _, item := range v {
			tags = append(tags, toString(item))
		}
	case []string:
		tags = v
	default:
		tags = []string{toString(v)}
	}
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	return tags
}

func normalizeSummary(value any, diaryText string) string {
	if summary, ok := value.(string); ok && strings.TrimSpace(summary) != "" {
		return summary
	}
	return TruncateSummary(diaryText)
}

// TruncateSummary derives a summary from diary text: the first 50 runes with
// a trailing ellipsis marker when truncation happened.
func TruncateSummary(diaryText string) string {
	runes := []rune(diaryText)
	if len(runes) <= summaryTruncateLen {
		return diaryText
	}
	return string(runes[:summaryTruncateLen]) + "..."
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
