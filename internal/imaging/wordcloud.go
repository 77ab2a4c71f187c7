package imaging

import (
	"image"
	"image/color"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

var (
	cloudBackground = color.RGBA{R: 80, G: 54, B: 89, A: 255}
	cloudText       = color.RGBA{R: 199, G: 219, B: 115, A: 255}
)

// words of two or more characters, apostrophes allowed after the first
var cloudWordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z']+`)

// WordCloudOptions tune the word cloud layout
type WordCloudOptions struct {
	MaxWords    int
	MaxFontSize float64
	MinFontSize float64
	FontStep    float64
	// Cell is the side of an occupancy cell in pixels
	Cell int
}

// DefaultWordCloudOptions returns the two-tone look used on every card
func DefaultWordCloudOptions() WordCloudOptions {
	return WordCloudOptions{
		MaxWords:    200,
		MaxFontSize: 160,
		MinFontSize: 12,
		FontStep:    4,
		Cell:        4,
	}
}

// WordFrequency is a word and how often it occurs
type WordFrequency struct {
	Word  string
	Count int
}

// WordCloud renders word frequencies onto a masked canvas.
// Placement is deterministic: the same text always gives the same image.
type WordCloud struct {
	font      *opentype.Font
	mask      image.Image
	stopwords map[string]bool
	opts      WordCloudOptions
}

// NewWordCloud creates a renderer. A nil mask allows the whole canvas.
func NewWordCloud(f *opentype.Font, mask image.Image, opts WordCloudOptions) *WordCloud {
	def := DefaultWordCloudOptions()
	if opts.MaxWords <= 0 {
		opts.MaxWords = def.MaxWords
	}
	if opts.MaxFontSize <= 0 {
		opts.MaxFontSize = def.MaxFontSize
	}
	if opts.MinFontSize <= 0 {
		opts.MinFontSize = def.MinFontSize
	}
	if opts.FontStep <= 0 {
		opts.FontStep = def.FontStep
	}
	if opts.Cell <= 0 {
		opts.Cell = def.Cell
	}

	return &WordCloud{
		font:      f,
		mask:      mask,
		stopwords: Stopwords(),
		opts:      opts,
	}
}

// Frequencies counts the words of text that are not stopwords, most frequent first.
// Ties are broken alphabetically.
func (w *WordCloud) Frequencies(text string) []WordFrequency {
	counts := make(map[string]int)
	for _, tok := range cloudWordPattern.FindAllString(text, -1) {
		word := strings.ToLower(tok)
		word = strings.TrimSuffix(word, "'s")
		word = strings.Trim(word, "'")
		if len(word) < 2 || w.stopwords[word] {
			continue
		}
		counts[word]++
	}

	out := make([]WordFrequency, 0, len(counts))
	for word, n := range counts {
		out = append(out, WordFrequency{Word: word, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > w.opts.MaxWords {
		out = out[:w.opts.MaxWords]
	}
	return out
}

// Render draws the cloud for text on a canvas-sized layer filled with the
// background colour. Words that do not fit at the minimum size are skipped.
func (w *WordCloud) Render(text string) (image.Image, error) {
	dc := gg.NewContext(CanvasWidth, CanvasHeight)
	dc.SetColor(cloudBackground)
	dc.Clear()
	dc.SetColor(cloudText)

	freqs := w.Frequencies(text)
	if len(freqs) == 0 {
		return dc.Image(), nil
	}

	grid := newOccupancy(CanvasWidth, CanvasHeight, w.opts.Cell, w.scaledMask())
	faces := make(map[float64]font.Face)
	defer func() {
		for _, f := range faces {
			f.Close()
		}
	}()
	faceFor := func(size float64) (font.Face, error) {
		if f, ok := faces[size]; ok {
			return f, nil
		}
		f, err := opentype.NewFace(w.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
		if err != nil {
			return nil, err
		}
		faces[size] = f
		return f, nil
	}

	maxCount := float64(freqs[0].Count)
	for _, wf := range freqs {
		// half linear in frequency, half constant
		size := math.Round(w.opts.MaxFontSize * (0.5 + 0.5*float64(wf.Count)/maxCount))

		for ; size >= w.opts.MinFontSize; size -= w.opts.FontStep {
			face, err := faceFor(size)
			if err != nil {
				return nil, err
			}
			m := face.Metrics()
			bw := font.MeasureString(face, wf.Word).Ceil()
			bh := (m.Ascent + m.Descent).Ceil()

			x, y, ok := grid.find(bw, bh)
			if !ok {
				continue
			}
			grid.fill(x, y, bw, bh)
			dc.SetFontFace(face)
			dc.DrawString(wf.Word, float64(x), float64(y+m.Ascent.Ceil()))
			break
		}
	}

	return dc.Image(), nil
}

// scaledMask stretches the mask to the canvas when their sizes differ
func (w *WordCloud) scaledMask() image.Image {
	if w.mask == nil {
		return nil
	}
	b := w.mask.Bounds()
	if b.Dx() == CanvasWidth && b.Dy() == CanvasHeight {
		return w.mask
	}
	dst := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), w.mask, b, draw.Src, nil)
	return dst
}

// occupancy tracks which cells of the canvas are taken or masked out
type occupancy struct {
	cols, rows int
	cell       int
	taken      []bool
	// boxes that found no room; cells only ever fill, so any box at least
	// as large in both dimensions cannot fit either
	failed []image.Point
}

func newOccupancy(width, height, cell int, mask image.Image) *occupancy {
	o := &occupancy{
		cols: (width + cell - 1) / cell,
		rows: (height + cell - 1) / cell,
		cell: cell,
	}
	o.taken = make([]bool, o.cols*o.rows)
	if mask == nil {
		return o
	}

	// A cell is blocked if any of its pixels is white in the mask.
	b := mask.Bounds()
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			if masked(mask.At(b.Min.X+px, b.Min.Y+py)) {
				o.taken[(py/cell)*o.cols+px/cell] = true
			}
		}
	}
	return o
}

func masked(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	const white = 0xf0f0
	return r >= white && g >= white && b >= white
}

func (o *occupancy) free(cx, cy, cw, ch int) bool {
	if cx < 0 || cy < 0 || cx+cw > o.cols || cy+ch > o.rows {
		return false
	}
	for y := cy; y < cy+ch; y++ {
		row := o.taken[y*o.cols : y*o.cols+o.cols]
		for x := cx; x < cx+cw; x++ {
			if row[x] {
				return false
			}
		}
	}
	return true
}

// find walks an Archimedean spiral out from the centre and returns the
// top-left pixel of the first free box of the given size.
func (o *occupancy) find(w, h int) (int, int, bool) {
	cw := (w + o.cell - 1) / o.cell
	ch := (h + o.cell - 1) / o.cell
	if cw > o.cols || ch > o.rows {
		return 0, 0, false
	}
	for _, f := range o.failed {
		if cw >= f.X && ch >= f.Y {
			return 0, 0, false
		}
	}

	centreX := float64(o.cols-cw) / 2
	centreY := float64(o.rows-ch) / 2
	maxRadius := math.Hypot(float64(o.cols), float64(o.rows))

	for t := 0.0; ; {
		r := 0.5 * t
		if r > maxRadius {
			o.failed = append(o.failed, image.Point{X: cw, Y: ch})
			return 0, 0, false
		}
		cx := int(math.Round(centreX + r*math.Cos(t)))
		cy := int(math.Round(centreY + r*math.Sin(t)))
		if o.free(cx, cy, cw, ch) {
			return cx * o.cell, cy * o.cell, true
		}
		// roughly two cells of arc per step
		t += 2 / math.Max(r, 1)
	}
}

func (o *occupancy) fill(x, y, w, h int) {
	cx, cy := x/o.cell, y/o.cell
	cw := (w + o.cell - 1) / o.cell
	ch := (h + o.cell - 1) / o.cell
	for yy := cy; yy < cy+ch && yy < o.rows; yy++ {
		for xx := cx; xx < cx+cw && xx < o.cols; xx++ {
			o.taken[yy*o.cols+xx] = true
		}
	}
}
