package analysis

import (
	"reflect"
	"strings"
	"testing"

	"mooddiary/pkg/domain"
)

func TestNormalizeKoreanKeysAndClamping(t *testing.T) {
	parsed := map[string]any{
		"emotion_scores": map[string]any{
			"행복": 1.5,
			"슬픔": -0.2,
			"분노": 0.333,
		},
		"sentiment":       "긍정",
		"comfort_message": "오늘도 정말 수고 많으셨어요. 내일은 더 좋은 일이 있을 거예요.",
		"tags":            []any{"산책", "날씨"},
		"summary":         "좋은 하루",
	}
	record := Normalize(parsed, "오늘은 날씨가 좋았다")

	if record.EmotionScores.Happiness != 1.0 {
		t.Fatalf("expected happiness clamped to 1.0, got %v", record.EmotionScores.Happiness)
	}
	if record.EmotionScores.Sadness != 0.0 {
		t.Fatalf("expected sadness clamped to 0.0, got %v", record.EmotionScores.Sadness)
	}
	if record.EmotionScores.Anger != 0.33 {
		t.Fatalf("expected anger rounded to 0.33, got %v", record.EmotionScores.Anger)
	}
	if record.Sentiment.Label != domain.SentimentPositive {
		t.Fatalf("expected positive sentiment, got %q", record.Sentiment.Label)
	}
	if record.PrimaryEmotion != domain.EmotionHappiness {
		t.Fatalf("expected happiness as argmax, got %q", record.PrimaryEmotion)
	}
	if !reflect.DeepEqual(record.Tags, []string{"산책", "날씨"}) {
		t.Fatalf("unexpected tags %v", record.Tags)
	}
	if record.Summary != "좋은 하루" {
		t.Fatalf("unexpected summary %q", record.Summary)
	}
}

func TestNormalizeSentimentShapes(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  domain.Sentiment
	}{
		{"bare korean label", "부정", domain.Sentiment{Label: domain.SentimentNegative, Score: 0.5}},
		{"object shape", map[string]any{"label": "positive", "score": 0.87}, domain.Sentiment{Label: domain.SentimentPositive, Score: 0.87}},
		{"unknown label", "뭔가이상함", domain.Sentiment{Label: domain.SentimentNeutral, Score: 0.5}},
		{"missing", nil, domain.Sentiment{Label: domain.SentimentNeutral, Score: 0.5}},
		{"object score out of range", map[string]any{"label": "중립", "score": 3.0}, domain.Sentiment{Label: domain.SentimentNeutral, Score: 1.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(map[string]any{"sentiment": tc.value}, "텍스트").Sentiment
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizePrimaryEmotion(t *testing.T) {
	t.Run("declared label wins", func(t *testing.T) {
		record := Normalize(map[string]any{
			"primary_emotion": "불안",
			"emotion_scores":  map[string]any{"행복": 0.9},
		}, "텍스트")
		if record.PrimaryEmotion != domain.EmotionAnxiety {
			t.Fatalf("expected declared anxiety, got %q", record.PrimaryEmotion)
		}
	})
	t.Run("argmax when label invalid", func(t *testing.T) {
		record := Normalize(map[string]any{
			"primary_emotion": "사랑",
			"emotion_scores":  map[string]any{"슬픔": 0.4, "분노": 0.7},
		}, "텍스트")
		if record.PrimaryEmotion != domain.EmotionAnger {
			t.Fatalf("expected anger as argmax, got %q", record.PrimaryEmotion)
		}
	})
	t.Run("tie resolves to earlier canonical emotion", func(t *testing.T) {
		record := Normalize(map[string]any{
			"emotion_scores": map[string]any{"평온": 0.5, "슬픔": 0.5},
		}, "텍스트")
		if record.PrimaryEmotion != domain.EmotionSadness {
			t.Fatalf("expected sadness on tie, got %q", record.PrimaryEmotion)
		}
	})
	t.Run("all-zero scores fall to first emotion", func(t *testing.T) {
		record := Normalize(map[string]any{
			"emotion_scores": map[string]any{"행복": 0, "슬픔": 0},
		}, "텍스트")
		if record.PrimaryEmotion != domain.EmotionHappiness {
			t.Fatalf("expected happiness, got %q", record.PrimaryEmotion)
		}
	})
	t.Run("missing scores default to calmness", func(t *testing.T) {
		record := Normalize(map[string]any{}, "텍스트")
		if record.PrimaryEmotion != domain.EmotionCalmness {
			t.Fatalf("expected calmness, got %q", record.PrimaryEmotion)
		}
	})
}

func TestNormalizeComfortMessage(t *testing.T) {
	record := Normalize(map[string]any{"comfort_message": "짧음"}, "텍스트")
	if record.ComfortMessage != FallbackComfortMessage {
		t.Fatalf("expected fallback for short message, got %q", record.ComfortMessage)
	}
	long := "오늘 하루도 정말 수고 많으셨어요. 스스로를 칭찬해 주세요."
	record = Normalize(map[string]any{"comfort_message": long}, "텍스트")
	if record.ComfortMessage != long {
		t.Fatalf("expected message kept, got %q", record.ComfortMessage)
	}
}

func TestNormalizeTags(t *testing.T) {
	record := Normalize(map[string]any{"tags": []any{"a", "b", "c", "d", "e", "f", "g"}}, "텍스트")
	if len(record.Tags) != MaxTags {
		t.Fatalf("expected tags capped at %d, got %v", MaxTags, record.Tags)
	}
	record = Normalize(map[string]any{}, "텍스트")
	if record.Tags == nil || len(record.Tags) != 0 {
		t.Fatalf("expected empty non-nil tags, got %#v", record.Tags)
	}
	record = Normalize(map[string]any{"tags": "일기"}, "텍스트")
	if !reflect.DeepEqual(record.Tags, []string{"일기"}) {
		t.Fatalf("expected scalar promoted, got %v", record.Tags)
	}
}

func TestNormalizeSummaryFallback(t *testing.T) {
	long := strings.Repeat("가", 60)
	record := Normalize(map[string]any{}, long)
	want := strings.Repeat("가", 50) + "..."
	if record.Summary != want {
		t.Fatalf("expected truncated summary, got %q", record.Summary)
	}
	record = Normalize(map[string]any{"summary": "  "}, "짧은 일기")
	if record.Summary != "짧은 일기" {
		t.Fatalf("expected diary text as summary, got %q", record.Summary)
	}
}

// Normalizing an already-normalized record changes nothing.
func TestNormalizeIdempotent(t *testing.T) {
	first := Normalize(map[string]any{
		"emotion_scores":  map[string]any{"행복": 0.731, "불안": 0.25},
		"sentiment":       map[string]any{"label": "긍정", "score": 0.9},
		"comfort_message": "오늘 하루도 잘 버텨내셨어요. 정말 대단합니다.",
		"tags":            []any{"일상"},
		"summary":         "무난한 하루",
	}, "오늘은 무난했다")

	again := Normalize(map[string]any{
		"emotion_scores": map[string]any{
			"happiness":  first.EmotionScores.Happiness,
			"sadness":    first.EmotionScores.Sadness,
			"anger":      first.EmotionScores.Anger,
			"anxiety":    first.EmotionScores.Anxiety,
			"calmness":   first.EmotionScores.Calmness,
			"excitement": first.EmotionScores.Excitement,
		},
		"sentiment": map[string]any{
			"label": string(first.Sentiment.Label),
			"score": first.Sentiment.Score,
		},
		"primary_emotion": string(first.PrimaryEmotion),
		"comfort_message": first.ComfortMessage,
		"tags":            first.Tags,
		"summary":         first.Summary,
	}, "오늘은 무난했다")

	if !reflect.DeepEqual(first, again) {
		t.Fatalf("normalization not idempotent:\nfirst: %+v\nagain: %+v", first, again)
	}
}
