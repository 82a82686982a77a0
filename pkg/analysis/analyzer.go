package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"mooddiary/pkg/ai"
	"mooddiary/pkg/domain"
)

// systemPrompt instructs the model to answer with the analysis JSON schema.
// Korean few-shot examples keep small local models on format.
const systemPrompt = `당신은 공감적인 한국어 일기 감정 분석 AI입니다.
일기를 분석하여 JSON으로 답변하세요.

형식:
{"summary":"요약","sentiment":{"label":"긍정/중립/부정","score":0.0~1.0},"emotion_scores":{"행복":0.0~1.0,"슬픔":0.0~1.0,"분노":0.0~1.0,"불안":0.0~1.0,"평온":0.0~1.0,"흥분":0.0~1.0},"primary_emotion":"행복/슬픔/분노/불안/평온/흥분 중 하나","comfort_message":"따뜻한 위로와 공감 메시지 2-3문장","tags":["태그1","태그2"]}

예시:
일기: "시험에 떨어졌어. 속상해."
{"summary":"시험 불합격으로 속상함","sentiment":{"label":"부정","score":0.7},"emotion_scores":{"행복":0.0,"슬픔":0.8,"분노":0.1,"불안":0.6,"평온":0.0,"흥분":0.0},"primary_emotion":"슬픔","comfort_message":"시험 결과가 기대와 달라 많이 속상하시겠어요. 이번 경험이 다음에는 더 나은 결과로 이어질 거예요.","tags":["시험","실망"]}

일기: "친구들이랑 놀이공원 갔다!"
{"summary":"친구들과 놀이공원에서 즐거운 시간","sentiment":{"label":"긍정","score":0.9},"emotion_scores":{"행복":0.9,"슬픔":0.0,"분노":0.0,"불안":0.0,"평온":0.1,"흥분":0.8},"primary_emotion":"행복","comfort_message":"친구들과 함께한 시간이 정말 즐거웠나 봐요! 이런 행복한 순간들이 계속 이어지길 바랍니다.","tags":["놀이공원","친구","행복"]}

중요: JSON만 출력하고 마크다운(` + "```" + `)이나 설명은 쓰지 마세요.`

const followupInstruction = "위 대화를 보고 따뜻하고 공감적인 답변을 3-5문장으로 작성해주세요."

// defaultTags label entries whose analysis fell back to the default record.
var defaultTags = []string{"일기", "자동분석"}

const defaultMaxConcurrent = 2

// Analyzer drives the prompt template, invokes a text generator, and coerces
// the output into a canonical AnalysisRecord.
type Analyzer struct {
	generator ai.TextGenerator
	sem       *semaphore.Weighted
}

// NewAnalyzer builds an Analyzer. maxConcurrent bounds in-flight inferences
// so one slow model call cannot monopolize the backend; <=0 uses a default.
func NewAnalyzer(generator ai.TextGenerator, maxConcurrent int64) *Analyzer {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Analyzer{
		generator: generator,
		sem:       semaphore.NewWeighted(maxConcurrent),
	}
}

// Analyze runs diary text through the model and returns a canonical record.
// Unusable model output (no extractable JSON) degrades to DefaultRecord and
// is never surfaced as an error: analysis must not prevent entry creation.
// Transport failures of the generator itself are returned so callers can
// distinguish "model answered junk" from "model unreachable".
func (a *Analyzer) Analyze(ctx context.Context, diaryText string) (domain.AnalysisRecord, error) {
	userPrompt := fmt.Sprintf("일기: %q\n출력:\n", diaryText)

	raw, err := a.generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("analyze diary: %w", err)
	}

	parsed, err := ExtractJSONObject(raw)
	if err != nil {
		if !errors.Is(err, ErrMalformedOutput) {
			return domain.AnalysisRecord{}, err
		}
		slog.Warn("model output unparsable, using default record", "raw_prefix", prefix(raw, 200))
		return DefaultRecord(diaryText), nil
	}
	return Normalize(parsed, diaryText), nil
}

// GenerateFollowup produces a free-text conversational reply for an entry.
// The model output is returned verbatim, no JSON parsing.
func (a *Analyzer) GenerateFollowup(ctx context.Context, diaryText string, history []domain.ConversationTurn, userMessage string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "일기: %s\n\n", diaryText)
	b.WriteString("대화 기록:\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Message)
	}
	fmt.Fprintf(&b, "\n사용자: %s\n\n%s\n\n답변:", userMessage, followupInstruction)

	reply, err := a.generate(ctx, "", b.String())
	if err != nil {
		return "", fmt.Errorf("generate followup: %w", err)
	}
	return reply, nil
}

// generate serializes access to the model behind the semaphore.
func (a *Analyzer) generate(ctx context.Context, system, user string) (string, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer a.sem.Release(1)
	return a.generator.GenerateText(ctx, system, user)
}

// DefaultRecord is the hard-coded fallback used when the model produced no
// usable JSON: truncated summary, neutral sentiment, uniform low emotion
// scores, calmness, the generic comfort message, and generic tags.
func DefaultRecord(diaryText string) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Summary: TruncateSummary(diaryText),
		Sentiment: domain.Sentiment{
			Label: domain.SentimentNeutral,
			Score: 0.5,
		},
		EmotionScores: domain.EmotionScores{
			Happiness:  0.2,
			Sadness:    0.2,
			Anger:      0.2,
			Anxiety:    0.2,
			Calmness:   0.2,
			Excitement: 0.2,
		},
		PrimaryEmotion: domain.EmotionCalmness,
		ComfortMessage: FallbackComfortMessage,
		Tags:           append([]string(nil), defaultTags...),
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
