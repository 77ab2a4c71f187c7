package imaging

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// Align decides how a block's x coordinate is computed
type Align int

const (
	// AlignStart places the block at the theme's left origin plus DX
	AlignStart Align = iota
	// AlignEnd places the block flush against the right margin
	AlignEnd
	// AlignFlow places the block Gap pixels after the end of the previous block
	AlignFlow
	// AlignAbsolute uses X and Y as given
	AlignAbsolute
)

// Block is one text or image draw instruction
type Block struct {
	Text  string
	Image image.Image // drawn instead of Text when set

	Align Align
	Row   float64 // y = origin y + Row * spacer
	DX    float64 // added to the computed x for AlignStart
	DY    float64 // added to the computed y
	Gap   float64 // AlignFlow distance from the previous block
	X, Y  float64 // AlignAbsolute position

	Font  Role
	Color Role
	// Measure is the font role used for this block's width, Font when nil
	Measure *Role
}

func (b Block) measureRole() Role {
	if b.Measure != nil {
		return *b.Measure
	}
	return b.Font
}

// RenderSpec is the full set of draw instructions for one image
type RenderSpec struct {
	Kind       entity.ImageKind
	Background image.Image // drawn first at the top-left corner
	Blocks     []Block
}

// Placement is the resolved top-left corner and measured width of a block
type Placement struct {
	X, Y  float64
	Width float64
}

// Resolve computes the position of every block without drawing
func (s RenderSpec) Resolve(theme *Theme, faces Faces) ([]Placement, error) {
	ox, oy := theme.Origin()
	spacer := theme.Spacer()

	out := make([]Placement, 0, len(s.Blocks))
	for i, b := range s.Blocks {
		width := blockWidth(b, faces)

		var x, y float64
		switch b.Align {
		case AlignStart:
			x, y = ox+b.DX, oy+b.Row*spacer
		case AlignEnd:
			x, y = CanvasWidth-ox-width, oy+b.Row*spacer
		case AlignFlow:
			if i == 0 {
				return nil, fmt.Errorf("block %d of %s flows after nothing", i, s.Kind)
			}
			prev := out[i-1]
			x, y = prev.X+prev.Width+b.Gap, oy+b.Row*spacer
		case AlignAbsolute:
			x, y = b.X, b.Y
		default:
			return nil, fmt.Errorf("block %d of %s: unknown alignment %d", i, s.Kind, b.Align)
		}
		y += b.DY

		out = append(out, Placement{X: x, Y: y, Width: width})
	}
	return out, nil
}

// Draw renders the spec onto a fresh canvas
func (s RenderSpec) Draw(theme *Theme, faces Faces) (*gg.Context, error) {
	placements, err := s.Resolve(theme, faces)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(CanvasWidth, CanvasHeight)
	if s.Background != nil {
		dc.DrawImage(s.Background, 0, 0)
	}

	for i, b := range s.Blocks {
		p := placements[i]
		if b.Image != nil {
			dc.DrawImage(b.Image, int(p.X), int(p.Y))
			continue
		}
		dc.SetFontFace(faces[b.Font])
		dc.SetColor(theme.Color(b.Color))
		// Y is the top of the line; gg draws on the baseline
		dc.DrawString(b.Text, p.X, p.Y+faces.Ascent(b.Font))
	}

	return dc, nil
}

func blockWidth(b Block, faces Faces) float64 {
	if b.Image != nil {
		return float64(b.Image.Bounds().Dx())
	}
	return faces.Width(b.measureRole(), b.Text)
}
