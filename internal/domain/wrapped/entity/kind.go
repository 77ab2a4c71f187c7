package entity

import (
	"fmt"
	"strconv"
)

// ImageKind identifies one of the four Wrapped images
type ImageKind int

// Render order is the declaration order
const (
	KindHighestMetrics ImageKind = iota + 1
	KindWordCloud
	KindReactionPerformance
	KindSentiment
)

// AllKinds lists the image kinds in generation order
var AllKinds = []ImageKind{KindHighestMetrics, KindWordCloud, KindReactionPerformance, KindSentiment}

// String returns the slug used in file names and metric labels
func (k ImageKind) String() string {
	switch k {
	case KindHighestMetrics:
		return "highest_metrics"
	case KindWordCloud:
		return "word_cloud"
	case KindReactionPerformance:
		return "reaction_performance"
	case KindSentiment:
		return "sentiment"
	default:
		return "unknown"
	}
}

// ParseImageKind resolves a slug or a 1-based index ("2", "word_cloud")
func ParseImageKind(s string) (ImageKind, error) {
	for _, k := range AllKinds {
		if s == k.String() || s == strconv.Itoa(k.Index()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Index returns the 1-based position of the kind in generation order
func (k ImageKind) Index() int {
	return int(k)
}

// Vocabulary holds the per-platform words printed on the images
type Vocabulary struct {
	PostNoun       string // "barks"
	MostLikes      string // "Most Stars"
	MostReposts    string // "Most Renotes"
	MostQuotes     string // "Most Quotes"
	WordCloudTitle string
	PerformanceQ   string // reaction-performance title
	SentimentLine  string // "Emotionally  your  barks"
}

// VocabularyFor returns the image vocabulary of a variant
func VocabularyFor(v Variant) Vocabulary {
	if v == VariantTweet {
		return Vocabulary{
			PostNoun:       "tweets",
			MostLikes:      "Most Likes",
			MostReposts:    "Most Retweets",
			MostQuotes:     "Most Quotes",
			WordCloudTitle: "What you're Tweeting.",
			PerformanceQ:   "Get Any Big Tweets?",
			SentimentLine:  "Emotionally  your  tweets",
		}
	}
	return Vocabulary{
		PostNoun:       "barks",
		MostLikes:      "Most Stars",
		MostReposts:    "Most Renotes",
		MostQuotes:     "Most Quotes",
		WordCloudTitle: "What you're Barking.",
		PerformanceQ:   "Get Any Big Barks?",
		SentimentLine:  "Emotionally  your  barks",
	}
}
