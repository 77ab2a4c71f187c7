package service

import (
	"strings"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// Aggregator turns fetched posts into a PostTable and a MetricsSummary
type Aggregator struct {
	normalizer Normalizer
	scorer     *SentimentScorer
	buckets    []entity.LikeBucket
}

// NewAggregator creates an aggregator. Nil or empty buckets fall back to the default ladder.
func NewAggregator(normalizer Normalizer, scorer *SentimentScorer, buckets []entity.LikeBucket) *Aggregator {
	if len(buckets) == 0 {
		buckets = entity.DefaultLikeBuckets()
	}
	return &Aggregator{
		normalizer: normalizer,
		scorer:     scorer,
		buckets:    buckets,
	}
}

// BuildTable normalizes every post and classifies its sentiment.
// Posts are not modified.
func (a *Aggregator) BuildTable(posts []entity.Post) *entity.PostTable {
	table := &entity.PostTable{Rows: make([]entity.Row, 0, len(posts))}
	for _, p := range posts {
		text := a.normalizer.Normalize(p.Text)
		table.Rows = append(table.Rows, entity.Row{
			Text:      text,
			Likes:     p.Likes,
			Replies:   p.Replies,
			Reposts:   p.Reposts,
			Quotes:    p.Quotes,
			CreatedAt: p.CreatedAt,
			Sentiment: a.scorer.Classify(text),
		})
	}
	return table
}

// Summarize computes column maxima and the like threshold counts.
// A post is counted in a bucket when its likes are strictly greater than the threshold.
func (a *Aggregator) Summarize(table *entity.PostTable) (entity.MetricsSummary, error) {
	if table.Len() == 0 {
		return entity.MetricsSummary{}, entity.ErrEmptyInput
	}

	var summary entity.MetricsSummary
	counts := make([]int, len(a.buckets))
	for _, r := range table.Rows {
		summary.MostLikes = max(summary.MostLikes, r.Likes)
		summary.MostReposts = max(summary.MostReposts, r.Reposts)
		summary.MostQuotes = max(summary.MostQuotes, r.Quotes)

		for i, b := range a.buckets {
			if r.Likes > b.Threshold {
				counts[i]++
			}
		}
	}

	summary.ThresholdCounts = make([]entity.BucketCount, len(a.buckets))
	for i, b := range a.buckets {
		summary.ThresholdCounts[i] = entity.BucketCount{Bucket: b, Count: counts[i]}
	}
	return summary, nil
}

// Sentiment aggregates the sentiment column of the table
func (a *Aggregator) Sentiment(table *entity.PostTable) (entity.SentimentResult, error) {
	return a.scorer.Aggregate(table.Sentiments())
}

// CorpusText joins the non-empty normalized texts of all rows, one per line
func CorpusText(table *entity.PostTable) string {
	if table.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, table.Len())
	for _, r := range table.Rows {
		if r.Text != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, "\n")
}
