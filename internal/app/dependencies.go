package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/vadim/barkwrapped/internal/config"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/dao"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/listener"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/policy"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/service"
	"github.com/vadim/barkwrapped/internal/httpx/upstream/misskey"
	"github.com/vadim/barkwrapped/internal/httpx/upstream/twitter"
	"github.com/vadim/barkwrapped/internal/imaging"
	"github.com/vadim/barkwrapped/internal/metrics"
	"github.com/vadim/barkwrapped/internal/sentiment"
	"github.com/vadim/barkwrapped/internal/storage"
)

// ImageStore saves rendered images and reads them back
type ImageStore interface {
	policy.ArtifactSink
	Open(ctx context.Context, username string, kind entity.ImageKind) (io.ReadCloser, error)
}

// Dependencies holds the wired domain layer (DAO, Service, Policy)
type Dependencies struct {
	Policy *policy.Policy
	Images ImageStore

	misskey *misskey.Client
	logger  *slog.Logger
}

// NewDependencies loads assets and wires the wrapped policy for the configured
// variant. m may be nil.
func NewDependencies(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) (*Dependencies, error) {
	assets, err := imaging.LoadAssets(cfg.Assets.Dir, imaging.DefaultAssetPaths())
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}
	theme, err := imaging.NewTheme(assets.BoldFont, assets.TextFont, cfg.Wrapped.Watermark)
	if err != nil {
		return nil, fmt.Errorf("creating theme: %w", err)
	}
	cloudOpts := imaging.DefaultWordCloudOptions()
	cloudOpts.MaxWords = cfg.Wrapped.MaxCloudWords
	composer, err := imaging.NewComposer(theme, assets, imaging.NewWordCloud(assets.CloudFont, assets.Mask, cloudOpts))
	if err != nil {
		return nil, fmt.Errorf("creating composer: %w", err)
	}

	buckets, err := entity.NewLikeBuckets(cfg.Wrapped.LikeThresholds)
	if err != nil {
		return nil, err
	}
	variant := cfg.Variant()
	aggregator := service.NewAggregator(
		service.NormalizerFor(variant),
		service.NewSentimentScorer(sentiment.New()),
		buckets,
	)

	dump, err := dao.NewPostDumpFile(cfg.Output.DumpDir)
	if err != nil {
		return nil, err
	}

	sink, err := newSink(cfg)
	if err != nil {
		return nil, err
	}

	d := &Dependencies{Images: sink, logger: logger}

	var source policy.Source
	switch variant {
	case entity.VariantTweet:
		source = twitter.NewSource(twitter.New(cfg.Twitter.BearerToken, twitter.WithBaseURL(cfg.Twitter.BaseURL)))
	default:
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		d.misskey = misskey.New(cfg.Platform.BaseURL, misskey.WithToken(cfg.Platform.Token))
		source = misskey.NewSource(d.misskey, clockwork.NewRealClock(), loc)
	}

	d.Policy = policy.New(variant, source, dump, aggregator, composer, logger.With("component", "wrapped")).
		WithSink(sink).
		WithParallelRender(cfg.Output.ParallelRender)
	if d.misskey != nil {
		d.Policy.WithPublisher(misskey.NewPublisher(d.misskey), cfg.Platform.ReplyTemplate)
	}
	if m != nil {
		d.Policy.WithMetrics(m)
	}

	logger.Info("wrapped policy ready",
		"variant", variant,
		"sink", cfg.Output.Sink,
		"like_thresholds", cfg.Wrapped.LikeThresholds,
		"parallel_render", cfg.Output.ParallelRender,
	)
	return d, nil
}

// NewListener creates the mention listener. Every triggering mention runs the
// policy and replies to the mentioning note.
func (d *Dependencies) NewListener(cfg config.Config, m *metrics.Metrics) (*listener.Listener, error) {
	if d.misskey == nil {
		return nil, fmt.Errorf("the mention listener needs the %q variant", entity.VariantBark)
	}
	dialer, err := misskey.NewStreamDialer(cfg.Platform.BaseURL, cfg.Platform.Token)
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, mention listener.Mention) bool {
		out, _ := d.Policy.Run(ctx, policy.RunInput{
			Username:  mention.Username,
			ReplyToID: mention.NoteID,
		})
		return out.Succeeded()
	}

	l := listener.New(dialer, handler, listener.Config{
		BotHandle:      cfg.Platform.BotHandle,
		Keyword:        cfg.Platform.Keyword,
		ReconnectDelay: cfg.Listener.ReconnectDelay,
		QueueSize:      cfg.Listener.QueueSize,
	}, d.logger.With("component", "listener"))
	if m != nil {
		l.WithMetrics(m)
	}
	return l, nil
}

func newSink(cfg config.Config) (ImageStore, error) {
	switch cfg.Output.Sink {
	case config.SinkS3:
		return storage.NewS3Sink(storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			PublicURL:       cfg.S3.PublicURL,
		})
	default:
		return storage.NewLocalSink(cfg.Output.ImageDir)
	}
}
