// Package sentiment scores English text with the VADER lexicon.
package sentiment

import (
	"github.com/jonreiter/govader"
)

// Analyzer computes lexical polarity. It only reads the lexicon after New and
// is safe for concurrent use.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// New loads the embedded VADER lexicon
func New() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Polarity returns the compound score in [-1, 1]; 0 for empty or neutral text
func (a *Analyzer) Polarity(text string) float64 {
	return a.vader.PolarityScores(text).Compound
}
