package imaging

import (
	"bytes"
	"fmt"
	"image"
	"strconv"

	"github.com/fogleman/gg"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// Payload carries the computed values printed on the images
type Payload struct {
	Username   string
	Vocabulary entity.Vocabulary
	Summary    entity.MetricsSummary
	Sentiment  entity.SentimentResult
	Corpus     string // normalized post text, one post per line
}

// Composer renders Wrapped images. It is safe for concurrent use.
type Composer struct {
	theme  *Theme
	assets *Assets
	cloud  *WordCloud
}

// NewComposer creates a composer from a theme and loaded assets
func NewComposer(theme *Theme, assets *Assets, cloud *WordCloud) (*Composer, error) {
	if theme == nil {
		return nil, fmt.Errorf("composer: theme is required")
	}
	if err := assets.Validate(); err != nil {
		return nil, err
	}
	if cloud == nil {
		cloud = NewWordCloud(assets.CloudFont, assets.Mask, DefaultWordCloudOptions())
	}
	return &Composer{theme: theme, assets: assets, cloud: cloud}, nil
}

// Spec returns the draw instructions of an image kind
func (c *Composer) Spec(kind entity.ImageKind, p Payload) (RenderSpec, error) {
	switch kind {
	case entity.KindHighestMetrics:
		return c.highestMetricsSpec(p), nil
	case entity.KindWordCloud:
		return c.wordCloudSpec(p)
	case entity.KindReactionPerformance:
		return c.reactionPerformanceSpec(p), nil
	case entity.KindSentiment:
		return c.sentimentSpec(p)
	default:
		return RenderSpec{}, fmt.Errorf("%d: %w", int(kind), entity.ErrUnknownKind)
	}
}

// Render draws one image
func (c *Composer) Render(kind entity.ImageKind, p Payload) (image.Image, error) {
	dc, err := c.draw(kind, p)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// RenderPNG draws one image and encodes it as PNG
func (c *Composer) RenderPNG(kind entity.ImageKind, p Payload) ([]byte, error) {
	dc, err := c.draw(kind, p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

func (c *Composer) draw(kind entity.ImageKind, p Payload) (*gg.Context, error) {
	spec, err := c.Spec(kind, p)
	if err != nil {
		return nil, err
	}

	faces, err := c.theme.Faces()
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	return spec.Draw(c.theme, faces)
}

func (c *Composer) watermark() Block {
	return Block{
		Text:  c.theme.Watermark(),
		Align: AlignAbsolute,
		X:     CanvasWidth - 350,
		Y:     CanvasHeight - 60,
		Font:  RoleWatermark,
		Color: RoleWatermark,
	}
}

func title(text string, row float64) Block {
	return Block{Text: text, Align: AlignStart, Row: row, Font: RoleTitle, Color: RoleTitle}
}

func (c *Composer) highestMetricsSpec(p Payload) RenderSpec {
	s := p.Summary
	rows := []struct {
		label string
		value int
		row   float64
	}{
		{p.Vocabulary.MostLikes, s.MostLikes, 3},
		{p.Vocabulary.MostReposts, s.MostReposts, 4.5},
		{p.Vocabulary.MostQuotes, s.MostQuotes, 6},
	}

	blocks := []Block{
		title(p.Username+",", 0),
		title(entity.PopularityTier(s.MostLikes), 1.1),
	}
	for _, r := range rows {
		blocks = append(blocks,
			Block{Text: r.label, Align: AlignStart, Row: r.row, Font: RoleText, Color: RoleText},
			Block{Text: strconv.Itoa(r.value), Align: AlignEnd, Row: r.row, Font: RoleNumber, Color: RoleNumber},
		)
	}
	blocks = append(blocks, c.watermark())

	return RenderSpec{Kind: entity.KindHighestMetrics, Background: c.assets.Template, Blocks: blocks}
}

func (c *Composer) wordCloudSpec(p Payload) (RenderSpec, error) {
	layer, err := c.cloud.Render(p.Corpus)
	if err != nil {
		return RenderSpec{}, fmt.Errorf("rendering word cloud: %w", err)
	}

	return RenderSpec{
		Kind:       entity.KindWordCloud,
		Background: layer,
		Blocks: []Block{
			// pulled up and left, away from the cloud
			{Text: p.Vocabulary.WordCloudTitle, Align: AlignStart, DX: -25, DY: -25, Font: RoleTitle, Color: RoleTitle},
			c.watermark(),
		},
	}, nil
}

// label rows of the reaction-performance image; values sit slightly higher
var (
	performanceLabelRows = [4]float64{1.8, 3.3, 4.8, 6.3}
	performanceValueRows = [4]float64{1.75, 3.25, 4.75, 6.25}
)

func (c *Composer) reactionPerformanceSpec(p Payload) RenderSpec {
	blocks := []Block{title(p.Vocabulary.PerformanceQ, 0)}

	titleRole := RoleTitle
	for i, bc := range p.Summary.ThresholdCounts {
		if i >= len(performanceLabelRows) {
			break
		}
		blocks = append(blocks,
			// the suffix after a value is spaced by the value's width in the title font
			Block{
				Text: strconv.Itoa(bc.Count), Align: AlignStart, Row: performanceValueRows[i],
				Font: RoleNumber, Color: RoleNumber, Measure: &titleRole,
			},
			Block{Text: p.Vocabulary.PostNoun, Align: AlignFlow, Gap: 50, Row: performanceLabelRows[i], Font: RoleText, Color: RoleText},
			Block{Text: bc.Bucket.Label(), Align: AlignEnd, Row: performanceLabelRows[i], Font: RoleText, Color: RoleText},
		)
	}
	blocks = append(blocks, c.watermark())

	return RenderSpec{Kind: entity.KindReactionPerformance, Background: c.assets.Template, Blocks: blocks}
}

func (c *Composer) sentimentSpec(p Payload) (RenderSpec, error) {
	mood := entity.MoodTier(p.Sentiment)
	emoji, ok := c.assets.Emojis[mood.Emoji]
	if !ok {
		return RenderSpec{}, fmt.Errorf("emoji %s: %w", mood.Emoji, entity.ErrMissingAsset)
	}

	blocks := []Block{
		title("How were you feeling?", 0),
		title("Happy or Sad?", 1.1),
		{Text: p.Vocabulary.SentimentLine, Align: AlignStart, Row: 3, Font: RoleText, Color: RoleText},
		{Text: "scored", Align: AlignStart, Row: 4.25, Font: RoleText, Color: RoleText},
		{Text: p.Sentiment.String(), Align: AlignFlow, Gap: 25, Row: 4.2, Font: RoleNumber, Color: RoleNumber},
		{Text: "meaning  you", Align: AlignFlow, Gap: 25, Row: 4.25, Font: RoleText, Color: RoleText},
		{Text: "were...", Align: AlignStart, Row: 5.5, Font: RoleText, Color: RoleText},
		{Text: mood.Label, Align: AlignFlow, Gap: 25, Row: 5.5, Font: RoleNumber, Color: RoleNumber},
	}
	if mood.Long {
		blocks = append(blocks, Block{Image: emoji, Align: AlignStart, Row: 6.8})
	} else {
		blocks = append(blocks, Block{Image: emoji, Align: AlignFlow, Gap: 25, Row: 5.5})
	}
	blocks = append(blocks, c.watermark())

	return RenderSpec{Kind: entity.KindSentiment, Background: c.assets.Template, Blocks: blocks}, nil
}
