// Package imaging renders the four Wrapped images onto fixed-size canvases.
package imaging

import (
	"fmt"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// Role selects a font and a colour from the theme
type Role int

const (
	RoleTitle Role = iota
	RoleText
	RoleNumber
	RoleWatermark
)

func (r Role) String() string {
	switch r {
	case RoleTitle:
		return "title"
	case RoleText:
		return "text"
	case RoleNumber:
		return "number"
	case RoleWatermark:
		return "watermark"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

var roles = []Role{RoleTitle, RoleText, RoleNumber, RoleWatermark}

// Canvas size of every output image
const (
	CanvasWidth  = 1000
	CanvasHeight = 1000
)

// Default text sizes in pixels
const (
	TitleSize     = 70
	TextSize      = 60
	NumberSize    = 100
	WatermarkSize = 40
)

// DefaultWatermark is stamped in the bottom-right corner when nothing is configured
const DefaultWatermark = "@BarkWrapped"

var (
	colorTitle  = color.RGBA{R: 228, G: 179, B: 143, A: 255}
	colorText   = color.RGBA{R: 179, G: 145, B: 143, A: 255}
	colorNumber = color.RGBA{R: 192, G: 222, B: 106, A: 255}
)

type fontSpec struct {
	font *opentype.Font
	size float64
}

// Theme is the immutable font and colour configuration shared by all renders.
// Font faces are not safe for concurrent use, so a Theme only keeps parsed
// fonts and hands out fresh faces for every canvas.
type Theme struct {
	fonts     map[Role]fontSpec
	colors    map[Role]color.RGBA
	x, y      float64
	spacer    float64
	watermark string
}

// NewTheme builds the default theme: a bold display font for titles, numbers
// and the watermark and a regular font for body text.
func NewTheme(bold, regular *opentype.Font, watermark string) (*Theme, error) {
	if bold == nil || regular == nil {
		return nil, fmt.Errorf("theme fonts: %w", errMissingFont)
	}
	if watermark == "" {
		watermark = DefaultWatermark
	}

	return &Theme{
		fonts: map[Role]fontSpec{
			RoleTitle:     {font: bold, size: TitleSize},
			RoleText:      {font: regular, size: TextSize},
			RoleNumber:    {font: bold, size: NumberSize},
			RoleWatermark: {font: bold, size: WatermarkSize},
		},
		colors: map[Role]color.RGBA{
			RoleTitle:     colorTitle,
			RoleText:      colorText,
			RoleNumber:    colorNumber,
			RoleWatermark: colorTitle,
		},
		x:         100,
		y:         100,
		spacer:    100,
		watermark: watermark,
	}, nil
}

// Color returns the colour of a role
func (t *Theme) Color(r Role) color.RGBA {
	return t.colors[r]
}

// Origin returns the top-left text origin
func (t *Theme) Origin() (x, y float64) {
	return t.x, t.y
}

// Spacer returns the vertical unit that row multiples are expressed in
func (t *Theme) Spacer() float64 {
	return t.spacer
}

// Watermark returns the branding text
func (t *Theme) Watermark() string {
	return t.watermark
}

// Faces creates one face per role for a single render
func (t *Theme) Faces() (Faces, error) {
	faces := make(Faces, len(roles))
	for _, r := range roles {
		spec := t.fonts[r]
		face, err := opentype.NewFace(spec.font, &opentype.FaceOptions{
			Size:    spec.size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			faces.Close()
			return nil, fmt.Errorf("creating %s face: %w", r, err)
		}
		faces[r] = face
	}
	return faces, nil
}

// Faces are the per-render font faces keyed by role
type Faces map[Role]font.Face

// Width returns the advance width of s in the face of role r
func (f Faces) Width(r Role, s string) float64 {
	return float64(font.MeasureString(f[r], s)) / 64
}

// Ascent returns the distance from the top of a line to its baseline
func (f Faces) Ascent(r Role) float64 {
	return float64(f[r].Metrics().Ascent) / 64
}

// Close releases every face
func (f Faces) Close() {
	for _, face := range f {
		if face != nil {
			face.Close()
		}
	}
}
