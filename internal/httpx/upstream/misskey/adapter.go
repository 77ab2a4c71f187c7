package misskey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// Source adapts the client to the wrapped policy: it resolves usernames and
// fetches the current year's notes.
type Source struct {
	client   *Client
	clock    clockwork.Clock
	location *time.Location
}

// NewSource creates a note source. The year window is evaluated in loc (UTC when nil).
func NewSource(client *Client, clock clockwork.Clock, loc *time.Location) *Source {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Source{client: client, clock: clock, location: loc}
}

// LookupUser resolves a username to a user
func (s *Source) LookupUser(ctx context.Context, username string) (*entity.User, error) {
	u, err := s.client.ShowUser(ctx, username)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == CodeNoSuchUser || apiErr.Status == 404) {
			return nil, fmt.Errorf("%s: %w", username, entity.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%w: %w", entity.ErrUpstreamFetch, err)
	}
	if u == nil || u.ID == "" {
		return nil, fmt.Errorf("%s: %w", username, entity.ErrUserNotFound)
	}

	user := &entity.User{ID: u.ID, Username: u.Username}
	if u.Name != nil {
		user.Name = *u.Name
	}
	return user, nil
}

// FetchPosts returns the user's notes of the current calendar year
func (s *Source) FetchPosts(ctx context.Context, user entity.User) ([]entity.Post, error) {
	year := s.clock.Now().In(s.location).Year()

	notes, err := s.client.FetchYearNotes(ctx, user.ID, year, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrUpstreamFetch, err)
	}

	posts := make([]entity.Post, 0, len(notes))
	for _, n := range notes {
		posts = append(posts, entity.Post{
			ID:        n.ID,
			Text:      n.TextOrEmpty(),
			CreatedAt: n.CreatedAt,
			Likes:     n.ReactionCount(),
			Replies:   n.RepliesCount,
			Reposts:   n.RenoteCount,
			// notes do not expose a quote count
		})
	}
	return posts, nil
}

// Publisher uploads images to the bot's drive and replies with them
type Publisher struct {
	client *Client
}

// NewPublisher creates a new Misskey publisher
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Upload uploads one file and returns its drive id
func (p *Publisher) Upload(ctx context.Context, name string, data []byte) (string, error) {
	f, err := p.client.UploadFile(ctx, name, data)
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

// Reply posts a reply note with the given files attached in order
func (p *Publisher) Reply(ctx context.Context, replyToID, text string, fileIDs []string) error {
	_, err := p.client.CreateNote(ctx, CreateNoteInput{
		Text:    text,
		ReplyID: replyToID,
		FileIDs: fileIDs,
	})
	return err
}
