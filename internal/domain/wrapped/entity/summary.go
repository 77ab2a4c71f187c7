package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// LikeBucket is one row of the reaction-performance ladder.
// ID is the stable bucket identifier reported in outputs and
// Threshold is the like count a post must strictly exceed to be counted.
type LikeBucket struct {
	ID        int `json:"id"`
	Threshold int `json:"threshold"`
}

// Label renders the bucket as shown on the reaction-performance image, e.g. "> 10,000 likes."
func (b LikeBucket) Label() string {
	return "> " + groupThousands(b.Threshold) + " likes."
}

// LikeBucketIDs are the fixed bucket identifiers, in ascending order
var LikeBucketIDs = [4]int{100, 500, 1000, 10000}

// DefaultLikeThresholds are the comparison values bound to LikeBucketIDs
var DefaultLikeThresholds = [4]int{1, 5, 15, 10000}

// DefaultLikeBuckets returns the ladder used when nothing is configured
func DefaultLikeBuckets() []LikeBucket {
	buckets, _ := NewLikeBuckets(DefaultLikeThresholds[:])
	return buckets
}

// NewLikeBuckets binds four comparison thresholds to the fixed bucket ids.
// Thresholds must be strictly increasing so counts are non-increasing.
func NewLikeBuckets(thresholds []int) ([]LikeBucket, error) {
	if len(thresholds) != len(LikeBucketIDs) {
		return nil, fmt.Errorf("expected %d like thresholds, got %d", len(LikeBucketIDs), len(thresholds))
	}

	buckets := make([]LikeBucket, len(thresholds))
	for i, t := range thresholds {
		if t < 0 {
			return nil, fmt.Errorf("like threshold %d is negative", t)
		}
		if i > 0 && t <= thresholds[i-1] {
			return nil, fmt.Errorf("like thresholds must be strictly increasing, got %v", thresholds)
		}
		buckets[i] = LikeBucket{ID: LikeBucketIDs[i], Threshold: t}
	}
	return buckets, nil
}

// BucketCount is the number of posts that exceeded a bucket's threshold
type BucketCount struct {
	Bucket LikeBucket `json:"bucket"`
	Count  int        `json:"count"`
}

// MetricsSummary holds the aggregate engagement numbers of one run
type MetricsSummary struct {
	MostLikes       int           `json:"most_likes"`
	MostReposts     int           `json:"most_reposts"`
	MostQuotes      int           `json:"most_quotes"`
	ThresholdCounts []BucketCount `json:"threshold_counts"` // ascending by threshold
}

// CountsByID returns the threshold counts keyed by bucket id
func (s MetricsSummary) CountsByID() map[int]int {
	out := make(map[int]int, len(s.ThresholdCounts))
	for _, bc := range s.ThresholdCounts {
		out[bc.Bucket.ID] = bc.Count
	}
	return out
}

// SentimentResult is the average per-post sentiment scaled to [-100, 100], rounded to 2 decimals
type SentimentResult float64

// String formats the value the way it is printed on the sentiment image
func (s SentimentResult) String() string {
	out := strconv.FormatFloat(float64(s), 'f', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}
	return out
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
