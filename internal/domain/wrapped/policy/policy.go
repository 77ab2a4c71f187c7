package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/service"
	"github.com/vadim/barkwrapped/internal/imaging"
)

// Source fetches users and their posts from the platform
type Source interface {
	LookupUser(ctx context.Context, username string) (*entity.User, error)
	FetchPosts(ctx context.Context, user entity.User) ([]entity.Post, error)
}

// Publisher uploads images and replies to the triggering post
type Publisher interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Reply(ctx context.Context, replyToID, text string, fileIDs []string) error
}

// ArtifactSink persists rendered images under deterministic names
type ArtifactSink interface {
	Save(ctx context.Context, username string, kind entity.ImageKind, data []byte) (string, error)
	Delete(ctx context.Context, username string) error
}

// DumpRepository is the per-user processed guard
type DumpRepository interface {
	Exists(username string) (bool, error)
	Create(username string, lines []string) error
	Remove(username string) error
}

// Renderer draws one image kind as PNG
type Renderer interface {
	RenderPNG(kind entity.ImageKind, p imaging.Payload) ([]byte, error)
}

// Recorder receives run metrics
type Recorder interface {
	RunFinished(outcome string, d time.Duration)
	ImageRendered(kind string)
}

// Outcome is the result class of one run
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNoContent        Outcome = "no_content"
	OutcomeUserNotFound     Outcome = "user_not_found"
	OutcomeUpstreamFailure  Outcome = "upstream_failure"
	OutcomeFailed           Outcome = "failed"
)

// DefaultReplyTemplate is posted with the images; {username} is replaced
const DefaultReplyTemplate = "Here's your Bark Wrapped, @{username}!"

// Policy sequences one Wrapped run for a user
type Policy struct {
	variant    entity.Variant
	source     Source
	dump       DumpRepository
	aggregator *service.Aggregator
	renderer   Renderer
	sink       ArtifactSink // optional
	publisher  Publisher    // optional, bark variant only
	metrics    Recorder     // optional
	logger     *slog.Logger

	replyTemplate string
	parallel      bool
}

// New creates a new wrapped policy
func New(
	variant entity.Variant,
	source Source,
	dump DumpRepository,
	aggregator *service.Aggregator,
	renderer Renderer,
	logger *slog.Logger,
) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		variant:       variant,
		source:        source,
		dump:          dump,
		aggregator:    aggregator,
		renderer:      renderer,
		logger:        logger,
		replyTemplate: DefaultReplyTemplate,
	}
}

// WithSink sets where rendered images are stored
func (p *Policy) WithSink(sink ArtifactSink) *Policy {
	p.sink = sink
	return p
}

// WithPublisher enables upload and reply. Ignored for the tweet variant.
func (p *Policy) WithPublisher(pub Publisher, replyTemplate string) *Policy {
	p.publisher = pub
	if replyTemplate != "" {
		p.replyTemplate = replyTemplate
	}
	return p
}

// WithMetrics sets the metrics recorder
func (p *Policy) WithMetrics(m Recorder) *Policy {
	p.metrics = m
	return p
}

// WithParallelRender renders the four images concurrently. The run stays all-or-nothing.
func (p *Policy) WithParallelRender(enabled bool) *Policy {
	p.parallel = enabled
	return p
}

// RunInput represents input for one run
type RunInput struct {
	Username  string
	ReplyToID string // note to reply to, empty for manual runs
}

// Image is one rendered image of a run
type Image struct {
	Kind     entity.ImageKind `json:"-"`
	Name     string           `json:"kind"`
	Location string           `json:"location,omitempty"` // sink path or URL
	FileID   string           `json:"file_id,omitempty"`  // uploaded drive file
	PNG      []byte           `json:"-"`
}

// RunOutput represents the result of a run
type RunOutput struct {
	Outcome   Outcome                `json:"outcome"`
	Username  string                 `json:"username"`
	Posts     int                    `json:"posts,omitempty"`
	Summary   *entity.MetricsSummary `json:"summary,omitempty"`
	Sentiment entity.SentimentResult `json:"sentiment"`
	Mood      string                 `json:"mood,omitempty"`
	Images    []Image                `json:"images,omitempty"`
	Replied   bool                   `json:"replied"`
}

// FileIDs returns the uploaded file ids in render order
func (o *RunOutput) FileIDs() []string {
	var ids []string
	for _, img := range o.Images {
		if img.FileID != "" {
			ids = append(ids, img.FileID)
		}
	}
	return ids
}

// Succeeded reports whether the run produced images
func (o *RunOutput) Succeeded() bool {
	return o != nil && o.Outcome == OutcomeSuccess
}

// Run generates the Wrapped of one user. The returned output is never nil;
// its Outcome classifies the error, if any.
func (p *Policy) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	start := time.Now()
	out := &RunOutput{Username: in.Username}

	err := p.run(ctx, in, out)
	out.Outcome = classify(err)

	log := p.logger.With("username", in.Username, "outcome", out.Outcome, "duration", time.Since(start))
	switch out.Outcome {
	case OutcomeSuccess:
		log.Info("wrapped generated", "posts", out.Posts, "replied", out.Replied)
	case OutcomeAlreadyProcessed, OutcomeNoContent:
		log.Info("wrapped skipped")
	default:
		log.Error("wrapped failed", "error", err)
	}

	if p.metrics != nil {
		p.metrics.RunFinished(string(out.Outcome), time.Since(start))
	}
	return out, err
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, entity.ErrAlreadyProcessed):
		return OutcomeAlreadyProcessed
	case errors.Is(err, entity.ErrNoContent):
		return OutcomeNoContent
	case errors.Is(err, entity.ErrUserNotFound):
		return OutcomeUserNotFound
	case errors.Is(err, entity.ErrUpstreamFetch):
		return OutcomeUpstreamFailure
	default:
		return OutcomeFailed
	}
}

func (p *Policy) run(ctx context.Context, in RunInput, out *RunOutput) error {
	if err := entity.ValidateUsername(in.Username); err != nil {
		return err
	}

	// Guard before any network call
	exists, err := p.dump.Exists(in.Username)
	if err != nil {
		return fmt.Errorf("checking post dump: %w", err)
	}
	if exists {
		return entity.ErrAlreadyProcessed
	}

	user, err := p.source.LookupUser(ctx, in.Username)
	if err != nil {
		return fmt.Errorf("looking up user: %w", upstream(err))
	}
	if user == nil {
		return entity.ErrUserNotFound
	}

	posts, err := p.source.FetchPosts(ctx, *user)
	if err != nil {
		return fmt.Errorf("fetching posts: %w", upstream(err))
	}
	if len(posts) == 0 {
		return entity.ErrNoContent
	}
	out.Posts = len(posts)

	table := p.aggregator.BuildTable(posts)
	lines := make([]string, 0, table.Len())
	for _, r := range table.Rows {
		lines = append(lines, r.Text)
	}
	// Create is atomic: a concurrent run for the same user loses here
	if err := p.dump.Create(in.Username, lines); err != nil {
		return fmt.Errorf("storing post dump: %w", err)
	}

	sentiment, err := p.aggregator.Sentiment(table)
	if err != nil {
		return fmt.Errorf("aggregating sentiment: %w", err)
	}
	summary, err := p.aggregator.Summarize(table)
	if err != nil {
		return fmt.Errorf("summarizing metrics: %w", err)
	}
	out.Sentiment = sentiment
	out.Summary = &summary
	out.Mood = entity.MoodTier(sentiment).Label

	payload := imaging.Payload{
		Username:   in.Username,
		Vocabulary: entity.VocabularyFor(p.variant),
		Summary:    summary,
		Sentiment:  sentiment,
		Corpus:     service.CorpusText(table),
	}
	images, err := p.render(ctx, payload)
	if err != nil {
		return err
	}
	out.Images = images

	if p.sink != nil {
		for i := range images {
			loc, err := p.sink.Save(ctx, in.Username, images[i].Kind, images[i].PNG)
			if err != nil {
				return fmt.Errorf("saving %s: %w", images[i].Kind, err)
			}
			images[i].Location = loc
		}
	}

	if p.variant != entity.VariantBark || p.publisher == nil || in.ReplyToID == "" {
		return nil
	}

	fileIDs := make([]string, 0, len(images))
	for i := range images {
		name := fmt.Sprintf("%s-%d-%s.png", in.Username, images[i].Kind.Index(), images[i].Kind)
		id, err := p.publisher.Upload(ctx, name, images[i].PNG)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", images[i].Kind, err)
		}
		images[i].FileID = id
		fileIDs = append(fileIDs, id)
	}

	text := strings.ReplaceAll(p.replyTemplate, "{username}", in.Username)
	if err := p.publisher.Reply(ctx, in.ReplyToID, text, fileIDs); err != nil {
		return fmt.Errorf("replying: %w", err)
	}
	out.Replied = true
	return nil
}

// render draws the four images in generation order. Any failure fails the run.
func (p *Policy) render(ctx context.Context, payload imaging.Payload) ([]Image, error) {
	images := make([]Image, len(entity.AllKinds))

	draw := func(i int, kind entity.ImageKind) error {
		data, err := p.renderer.RenderPNG(kind, payload)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", kind, err)
		}
		images[i] = Image{Kind: kind, Name: kind.String(), PNG: data}
		if p.metrics != nil {
			p.metrics.ImageRendered(kind.String())
		}
		return nil
	}

	if !p.parallel {
		for i, kind := range entity.AllKinds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := draw(i, kind); err != nil {
				return nil, err
			}
		}
		return images, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range entity.AllKinds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return draw(i, kind)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Reset forgets a processed user so the next run generates a new Wrapped.
// Stored images are deleted first; resetting an unknown user is not an error.
func (p *Policy) Reset(ctx context.Context, username string) error {
	if err := entity.ValidateUsername(username); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.Delete(ctx, username); err != nil {
			return fmt.Errorf("deleting images: %w", err)
		}
	}
	if err := p.dump.Remove(username); err != nil {
		return fmt.Errorf("removing post dump: %w", err)
	}
	p.logger.Info("wrapped reset", "username", username)
	return nil
}

// upstream marks client errors as upstream fetch failures unless they are
// already classified.
func upstream(err error) error {
	if errors.Is(err, entity.ErrUserNotFound) || errors.Is(err, entity.ErrUpstreamFetch) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrUpstreamFetch, err)
}
