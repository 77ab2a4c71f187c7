package entity

import (
	"regexp"
	"time"
)

// Variant identifies which platform flavour the bot runs against
type Variant string

const (
	VariantBark  Variant = "bark"  // Misskey-compatible instance
	VariantTweet Variant = "tweet" // Twitter v2 API
)

// IsValid returns true if the variant is known
func (v Variant) IsValid() bool {
	return v == VariantBark || v == VariantTweet
}

// User is the account a Wrapped is generated for
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Post represents a single user-authored item (bark or tweet) with engagement counters.
// Posts are never modified after they are fetched.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int       `json:"likes"`   // reactions or likes
	Replies   int       `json:"replies"` // reply count
	Reposts   int       `json:"reposts"` // renotes or retweets
	Quotes    int       `json:"quotes"`  // quote posts
}

// Row is one line of a PostTable
type Row struct {
	Text      string // normalized text
	Likes     int
	Replies   int
	Reposts   int
	Quotes    int
	CreatedAt time.Time
	Sentiment int // -1, 0 or 1
}

// PostTable is the per-run tabular view of the fetched posts
type PostTable struct {
	Rows []Row
}

// Len returns the number of rows
func (t *PostTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Sentiments returns the sentiment column as floats
func (t *PostTable) Sentiments() []float64 {
	out := make([]float64, 0, t.Len())
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		out = append(out, float64(r.Sentiment))
	}
	return out
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// ValidateUsername checks that a username is safe to use as a file and object name
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}
