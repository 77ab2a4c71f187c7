package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/dao"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/service"
	"github.com/vadim/barkwrapped/internal/imaging"
	"github.com/vadim/barkwrapped/internal/sentiment"
)

type fakeSource struct {
	mu          sync.Mutex
	lookupCalls int
	fetchCalls  int
	lookupFn    func(username string) (*entity.User, error)
	fetchFn     func(user entity.User) ([]entity.Post, error)
}

func (f *fakeSource) LookupUser(_ context.Context, username string) (*entity.User, error) {
	f.mu.Lock()
	f.lookupCalls++
	f.mu.Unlock()
	if f.lookupFn != nil {
		return f.lookupFn(username)
	}
	return &entity.User{ID: "u-" + username, Username: username}, nil
}

func (f *fakeSource) FetchPosts(_ context.Context, user entity.User) ([]entity.Post, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFn != nil {
		return f.fetchFn(user)
	}
	return fixturePosts(), nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookupCalls + f.fetchCalls
}

func fixturePosts() []entity.Post {
	return []entity.Post{
		{ID: "n1", Text: "I love my walks", Likes: 2, Reposts: 1},
		{ID: "n2", Text: "terrible rainy day @bob", Likes: 16, Quotes: 2},
		{ID: "n3", Text: "good boy #dog", Likes: 1001, Reposts: 7},
	}
}

type fakeRenderer struct {
	mu    sync.Mutex
	kinds []entity.ImageKind
	fail  entity.ImageKind
}

func (f *fakeRenderer) RenderPNG(kind entity.ImageKind, p imaging.Payload) ([]byte, error) {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
	if kind == f.fail {
		return nil, errors.New("boom")
	}
	return []byte(p.Username + ":" + kind.String()), nil
}

type fakePublisher struct {
	uploads []string
	replyTo string
	text    string
	fileIDs []string
}

func (f *fakePublisher) Upload(_ context.Context, name string, _ []byte) (string, error) {
	f.uploads = append(f.uploads, name)
	return "file-" + name, nil
}

func (f *fakePublisher) Reply(_ context.Context, replyToID, text string, fileIDs []string) error {
	f.replyTo = replyToID
	f.text = text
	f.fileIDs = fileIDs
	return nil
}

type memSink struct {
	saved map[string][]byte
}

func (m *memSink) Save(_ context.Context, username string, kind entity.ImageKind, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	key := username + "/" + kind.String()
	m.saved[key] = data
	return key, nil
}

func (m *memSink) Delete(_ context.Context, username string) error {
	for key := range m.saved {
		if strings.HasPrefix(key, username+"/") {
			delete(m.saved, key)
		}
	}
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	images   int
}

func (f *fakeRecorder) RunFinished(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeRecorder) ImageRendered(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images++
}

type fixture struct {
	policy    *Policy
	source    *fakeSource
	renderer  *fakeRenderer
	publisher *fakePublisher
	sink      *memSink
	dump      *dao.PostDumpFile
	recorder  *fakeRecorder
}

func newFixture(t *testing.T, variant entity.Variant) *fixture {
	t.Helper()
	dump, err := dao.NewPostDumpFile(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		source:    &fakeSource{},
		renderer:  &fakeRenderer{},
		publisher: &fakePublisher{},
		sink:      &memSink{},
		dump:      dump,
		recorder:  &fakeRecorder{},
	}
	agg := service.NewAggregator(
		service.NormalizerFor(variant),
		service.NewSentimentScorer(sentiment.New()),
		entity.DefaultLikeBuckets(),
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.policy = New(variant, f.source, dump, agg, f.renderer, logger).
		WithSink(f.sink).
		WithPublisher(f.publisher, "").
		WithMetrics(f.recorder)
	return f
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t, entity.VariantBark)

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex", ReplyToID: "note-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, out.Outcome)
	assert.True(t, out.Succeeded())
	assert.Equal(t, 3, out.Posts)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 1001, out.Summary.MostLikes)
	assert.Equal(t, 7, out.Summary.MostReposts)
	assert.Equal(t, 2, out.Summary.MostQuotes)
	assert.Equal(t, map[int]int{100: 3, 500: 2, 1000: 2, 10000: 0}, out.Summary.CountsByID())

	// one positive, one negative, one positive
	assert.Equal(t, entity.SentimentResult(33.33), out.Sentiment)
	assert.Equal(t, entity.MoodSuperHappy, out.Mood)

	// images in generation order
	require.Len(t, out.Images, 4)
	for i, kind := range entity.AllKinds {
		assert.Equal(t, kind, out.Images[i].Kind)
		assert.Equal(t, "rex/"+kind.String(), out.Images[i].Location)
	}
	assert.Len(t, f.sink.saved, 4)

	assert.Equal(t, []string{
		"rex-1-highest_metrics.png",
		"rex-2-word_cloud.png",
		"rex-3-reaction_performance.png",
		"rex-4-sentiment.png",
	}, f.publisher.uploads)
	assert.Equal(t, "note-1", f.publisher.replyTo)
	assert.Equal(t, "Here's your Bark Wrapped, @rex!", f.publisher.text)
	assert.Equal(t, out.FileIDs(), f.publisher.fileIDs)
	assert.True(t, out.Replied)

	exists, err := f.dump.Exists("rex")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{"success"}, f.recorder.outcomes)
	assert.Equal(t, 4, f.recorder.images)
}

func TestRun_SecondRunIsAlreadyProcessedWithoutFetch(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	ctx := context.Background()

	_, err := f.policy.Run(ctx, RunInput{Username: "rex"})
	require.NoError(t, err)
	callsAfterFirst := f.source.calls()

	out, err := f.policy.Run(ctx, RunInput{Username: "rex"})
	assert.ErrorIs(t, err, entity.ErrAlreadyProcessed)
	assert.Equal(t, OutcomeAlreadyProcessed, out.Outcome)
	assert.False(t, out.Succeeded())
	assert.Equal(t, callsAfterFirst, f.source.calls(), "guard must run before any fetch")
}

func TestRun_NoContent(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	f.source.fetchFn = func(entity.User) ([]entity.Post, error) { return nil, nil }

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex"})
	assert.ErrorIs(t, err, entity.ErrNoContent)
	assert.Equal(t, OutcomeNoContent, out.Outcome)

	exists, err := f.dump.Exists("rex")
	require.NoError(t, err)
	assert.False(t, exists, "no dump is written for an empty user")
	assert.Empty(t, f.renderer.kinds)
}

func TestRun_UserNotFound(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	f.source.lookupFn = func(string) (*entity.User, error) { return nil, entity.ErrUserNotFound }

	out, err := f.policy.Run(context.Background(), RunInput{Username: "ghost"})
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
	assert.Equal(t, OutcomeUserNotFound, out.Outcome)
}

func TestRun_FetchFailure(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	f.source.fetchFn = func(entity.User) ([]entity.Post, error) { return nil, errors.New("connection reset") }

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex"})
	assert.ErrorIs(t, err, entity.ErrUpstreamFetch)
	assert.Equal(t, OutcomeUpstreamFailure, out.Outcome)

	exists, err := f.dump.Exists("rex")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, []string{"upstream_failure"}, f.recorder.outcomes)
}

func TestRun_RenderFailureIsAllOrNothing(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	f.renderer.fail = entity.KindReactionPerformance

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex", ReplyToID: "note-1"})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, out.Outcome)
	assert.Empty(t, out.Images)
	assert.Empty(t, f.sink.saved)
	assert.Empty(t, f.publisher.uploads)
	assert.Empty(t, f.publisher.replyTo)
}

func TestRun_ParallelRenderKeepsOrder(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	f.policy.WithParallelRender(true)

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex", ReplyToID: "note-1"})
	require.NoError(t, err)

	require.Len(t, out.Images, 4)
	for i, kind := range entity.AllKinds {
		assert.Equal(t, kind, out.Images[i].Kind)
		assert.Equal(t, "rex:"+kind.String(), string(out.Images[i].PNG))
	}
	assert.Len(t, f.renderer.kinds, 4)
}

func TestRun_TweetVariantDoesNotReply(t *testing.T) {
	f := newFixture(t, entity.VariantTweet)

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex", ReplyToID: "123"})
	require.NoError(t, err)

	assert.False(t, out.Replied)
	assert.Empty(t, f.publisher.uploads)
	assert.Len(t, f.sink.saved, 4)
}

func TestRun_ManualRunDoesNotReply(t *testing.T) {
	f := newFixture(t, entity.VariantBark)

	out, err := f.policy.Run(context.Background(), RunInput{Username: "rex"})
	require.NoError(t, err)
	assert.False(t, out.Replied)
	assert.Empty(t, f.publisher.uploads)
}

func TestRun_InvalidUsername(t *testing.T) {
	f := newFixture(t, entity.VariantBark)

	out, err := f.policy.Run(context.Background(), RunInput{Username: "../etc"})
	assert.ErrorIs(t, err, entity.ErrInvalidUsername)
	assert.Equal(t, OutcomeFailed, out.Outcome)
	assert.Zero(t, f.source.calls())
}

func TestReset_AllowsRegeneration(t *testing.T) {
	f := newFixture(t, entity.VariantBark)
	ctx := context.Background()

	_, err := f.policy.Run(ctx, RunInput{Username: "rex"})
	require.NoError(t, err)

	require.NoError(t, f.policy.Reset(ctx, "rex"))
	assert.Empty(t, f.sink.saved)

	exists, err := f.dump.Exists("rex")
	require.NoError(t, err)
	assert.False(t, exists)

	out, err := f.policy.Run(ctx, RunInput{Username: "rex"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Outcome)
}

func TestReset_UnknownUserAndInvalidName(t *testing.T) {
	f := newFixture(t, entity.VariantBark)

	assert.NoError(t, f.policy.Reset(context.Background(), "nobody"))
	assert.ErrorIs(t, f.policy.Reset(context.Background(), "a/b"), entity.ErrInvalidUsername)
}
