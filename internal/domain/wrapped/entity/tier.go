package entity

// Popularity titles, highest tier first
const (
	PopularityPopular = "You're so Popular!"
	PopularityGrowing = "You're Growing!"
	PopularityOK      = "You're Doing OK!"
	PopularityMeh     = "You're Doing Meh."
	PopularityNone    = "You're not popular :("
)

// Mood labels, happiest first
const (
	MoodSuperHappy = "SUPER HAPPY!"
	MoodHappy      = "HAPPY!"
	MoodKindaHappy = "KINDA HAPPY..."
	MoodSad        = "SAD!"
	MoodDownBad    = "DOWN BAD!"
)

// Emoji names an emoji glyph asset
type Emoji string

const (
	EmojiGrinningSweat Emoji = "grinning-face-with-sweat"
	EmojiBeaming       Emoji = "beaming-face-with-smiling-eyes"
	EmojiUpsideDown    Emoji = "upside-down-face"
	EmojiHeadBandage   Emoji = "face-with-head-bandage"
	EmojiSleepy        Emoji = "sleepy-face"
)

// AllEmojis lists every emoji asset a mood can reference
var AllEmojis = []Emoji{EmojiGrinningSweat, EmojiBeaming, EmojiUpsideDown, EmojiHeadBandage, EmojiSleepy}

// Mood is a sentiment tier
type Mood struct {
	Label string
	Emoji Emoji
	// Long labels do not leave room for the emoji on the same line
	Long bool
}

type popularityStep struct {
	above int
	title string
}

// Strict ">" comparisons: a value equal to a threshold falls to the lower tier.
var popularityLadder = []popularityStep{
	{1000, PopularityPopular},
	{15, PopularityGrowing},
	{5, PopularityOK},
	{1, PopularityMeh},
}

// PopularityTier classifies the highest like count of a user
func PopularityTier(mostLikes int) string {
	for _, step := range popularityLadder {
		if mostLikes > step.above {
			return step.title
		}
	}
	return PopularityNone
}

type moodStep struct {
	above float64
	mood  Mood
}

var moodLadder = []moodStep{
	{10, Mood{Label: MoodSuperHappy, Emoji: EmojiGrinningSweat, Long: true}},
	{5, Mood{Label: MoodHappy, Emoji: EmojiBeaming}},
	{0, Mood{Label: MoodKindaHappy, Emoji: EmojiUpsideDown, Long: true}},
	{-5, Mood{Label: MoodSad, Emoji: EmojiHeadBandage}},
}

// MoodTier classifies an aggregate sentiment value.
// Exactly 0 is not "> 0" and therefore lands on SAD!, and anything at or below -5 is DOWN BAD!.
func MoodTier(sentiment SentimentResult) Mood {
	for _, step := range moodLadder {
		if float64(sentiment) > step.above {
			return step.mood
		}
	}
	return Mood{Label: MoodDownBad, Emoji: EmojiSleepy}
}
