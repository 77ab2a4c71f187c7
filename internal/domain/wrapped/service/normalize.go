package service

import (
	"regexp"
	"strings"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

var (
	// @user or @user@host (fediverse remote mention)
	mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_]+(?:@[A-Za-z0-9.\-]+)?`)
	hashtagPattern = regexp.MustCompile(`#\S*`)
	urlPattern     = regexp.MustCompile(`\w+://\S+`)
	nonTextPattern = regexp.MustCompile(`[^A-Za-z'\s]`)
)

// Normalizer cleans raw post text. The zero value strips mentions, links and
// non-letters but keeps hashtag words and case.
type Normalizer struct {
	StripHashtags bool
	Lowercase     bool
}

// BarkNormalizer strips hashtags and lowercases
func BarkNormalizer() Normalizer {
	return Normalizer{StripHashtags: true, Lowercase: true}
}

// TweetNormalizer keeps hashtag words and preserves case
func TweetNormalizer() Normalizer {
	return Normalizer{}
}

// NormalizerFor returns the normalizer of a platform variant
func NormalizerFor(v entity.Variant) Normalizer {
	if v == entity.VariantTweet {
		return TweetNormalizer()
	}
	return BarkNormalizer()
}

// Normalize removes mentions, links, optionally hashtags, and every character
// that is not an ASCII letter, apostrophe or whitespace. Whitespace runs are
// collapsed to single spaces and the result is trimmed. Normalize is idempotent.
func (n Normalizer) Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "’", "'")

	// Links first so a mention inside a URL path is removed with the URL.
	s = urlPattern.ReplaceAllString(s, " ")
	s = mentionPattern.ReplaceAllString(s, " ")
	if n.StripHashtags {
		s = hashtagPattern.ReplaceAllString(s, " ")
	}
	s = nonTextPattern.ReplaceAllString(s, " ")

	if n.Lowercase {
		s = strings.ToLower(s)
	}

	return strings.Join(strings.Fields(s), " ")
}
