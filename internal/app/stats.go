package app

import (
	"fmt"
	"math"
	"time"

	"mooddiary/pkg/domain"
)

// timelineLength caps the timeline at the most recent entries.
const timelineLength = 7

// TimelinePoint is one entry's mood on the timeline. Score is the primary
// emotion's strength signed by its polarity: happiness, calmness and
// excitement count upward, sadness, anger and anxiety downward. A neutral
// sentiment flattens the point to zero.
type TimelinePoint struct {
	EntryID        string         `json:"entryId"`
	Date           time.Time      `json:"date"`
	Score          float64        `json:"score"`
	PrimaryEmotion domain.Emotion `json:"primaryEmotion"`
}

// Stats aggregates an owner's diary entries.
type Stats struct {
	TotalEntries        int                           `json:"totalEntries"`
	SentimentCounts     map[domain.SentimentLabel]int `json:"sentimentCounts"`
	EmotionDistribution map[domain.Emotion]float64    `json:"emotionDistribution"`
	Timeline            []TimelinePoint               `json:"timeline"`
}

// Stats computes aggregates over all of the owner's entries. The timeline is
// oldest first so clients can plot it directly.
func (a *App) Stats(ownerID string) (Stats, error) {
	entries, err := a.store.ListEntries(ownerID)
	if err != nil {
		return Stats{}, fmt.Errorf("list entries: %w", err)
	}

	stats := Stats{
		TotalEntries: len(entries),
		SentimentCounts: map[domain.SentimentLabel]int{
			domain.SentimentPositive: 0,
			domain.SentimentNeutral:  0,
			domain.SentimentNegative: 0,
		},
		EmotionDistribution: make(map[domain.Emotion]float64, len(domain.Emotions)),
		Timeline:            make([]TimelinePoint, 0, timelineLength),
	}
	sums := make(map[domain.Emotion]float64, len(domain.Emotions))

	for _, entry := range entries {
		// legacy rows may carry labels outside the canonical set; skip them
		if _, ok := stats.SentimentCounts[entry.Analysis.Sentiment.Label]; ok {
			stats.SentimentCounts[entry.Analysis.Sentiment.Label]++
		}
		for _, emotion := range domain.Emotions {
			sums[emotion] += entry.Analysis.EmotionScores.Get(emotion)
		}
	}

	// entries arrive newest first; plot the most recent ones oldest first
	recent := entries
	if len(recent) > timelineLength {
		recent = recent[:timelineLength]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		entry := recent[i]
		stats.Timeline = append(stats.Timeline, TimelinePoint{
			EntryID:        entry.ID,
			Date:           entry.CreatedAt,
			Score:          timelineScore(entry.Analysis),
			PrimaryEmotion: entry.Analysis.PrimaryEmotion,
		})
	}

	for _, emotion := range domain.Emotions {
		avg := 0.0
		if len(entries) > 0 {
			avg = math.Round(sums[emotion]/float64(len(entries))*100) / 100
		}
		stats.EmotionDistribution[emotion] = avg
	}
	return stats, nil
}

func timelineScore(record domain.AnalysisRecord) float64 {
	if record.Sentiment.Label == domain.SentimentNeutral {
		return 0
	}
	score := record.EmotionScores.Get(record.PrimaryEmotion)
	switch record.PrimaryEmotion {
	case domain.EmotionSadness, domain.EmotionAnger, domain.EmotionAnxiety:
		return -score
	}
	return score
}
