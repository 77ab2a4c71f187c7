package twitter

import (
	"context"
	"errors"
	"fmt"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// Source adapts the client to the wrapped policy
type Source struct {
	client *Client
}

// NewSource creates a tweet source
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// LookupUser resolves a handle to a user
func (s *Source) LookupUser(ctx context.Context, username string) (*entity.User, error) {
	u, err := s.client.UserByUsername(ctx, username)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, fmt.Errorf("%s: %w", username, entity.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%w: %w", entity.ErrUpstreamFetch, err)
	}
	return &entity.User{ID: u.ID, Username: u.Username, Name: u.Name}, nil
}

// FetchPosts returns up to the 100 most recent original tweets
func (s *Source) FetchPosts(ctx context.Context, user entity.User) ([]entity.Post, error) {
	tweets, err := s.client.UserTweets(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrUpstreamFetch, err)
	}

	posts := make([]entity.Post, 0, len(tweets))
	for _, t := range tweets {
		posts = append(posts, entity.Post{
			ID:        t.ID,
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
			Likes:     t.PublicMetrics.LikeCount,
			Replies:   t.PublicMetrics.ReplyCount,
			Reposts:   t.PublicMetrics.RetweetCount,
			Quotes:    t.PublicMetrics.QuoteCount,
		})
	}
	return posts, nil
}
