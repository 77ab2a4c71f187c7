package service

import (
	"math"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// PolarityAnalyzer is a lexical sentiment capability returning a value in [-1, 1]
type PolarityAnalyzer interface {
	Polarity(text string) float64
}

// SentimentScorer scores posts and aggregates a user's mood
type SentimentScorer struct {
	analyzer PolarityAnalyzer
}

// NewSentimentScorer creates a scorer on top of a polarity analyzer
func NewSentimentScorer(analyzer PolarityAnalyzer) *SentimentScorer {
	return &SentimentScorer{analyzer: analyzer}
}

// Score returns the polarity of already normalized text, clamped to [-1, 1]
func (s *SentimentScorer) Score(text string) float64 {
	if text == "" {
		return 0
	}
	p := s.analyzer.Polarity(text)
	return math.Max(-1, math.Min(1, p))
}

// Classify collapses the polarity of text to -1, 0 or 1
func (s *SentimentScorer) Classify(text string) int {
	p := s.Score(text)
	switch {
	case p > 0:
		return 1
	case p < 0:
		return -1
	default:
		return 0
	}
}

// Aggregate returns the arithmetic mean of scores times 100, rounded half away
// from zero to 2 decimals. An empty input fails with ErrEmptyInput.
func (s *SentimentScorer) Aggregate(scores []float64) (entity.SentimentResult, error) {
	if len(scores) == 0 {
		return 0, entity.ErrEmptyInput
	}

	var sum float64
	for _, v := range scores {
		sum += v
	}
	mean := sum / float64(len(scores)) * 100

	// math.Round rounds half away from zero
	return entity.SentimentResult(math.Round(mean*100) / 100), nil
}
