package imaging

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/opentype"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

var errMissingFont = errors.New("font is nil")

// AssetPaths locates the asset files relative to the asset directory
type AssetPaths struct {
	Template  string
	Mask      string
	BoldFont  string
	TextFont  string
	CloudFont string
	Emojis    map[entity.Emoji]string
}

// DefaultAssetPaths returns the layout of the bundled assets directory
func DefaultAssetPaths() AssetPaths {
	return AssetPaths{
		Template:  "templates/purple_1000x1000.png",
		Mask:      "masks/logo_1000x1000.png",
		BoldFont:  "fonts/theboldfont.ttf",
		TextFont:  "fonts/coolvetica-rg.otf",
		CloudFont: "fonts/SFProDisplay-Light.ttf",
		Emojis: map[entity.Emoji]string{
			entity.EmojiGrinningSweat: "emojis/grinning-face-with-sweat_1f605.png",
			entity.EmojiBeaming:       "emojis/beaming-face-with-smiling-eyes_1f601.png",
			entity.EmojiUpsideDown:    "emojis/upside-down-face_1f643.png",
			entity.EmojiHeadBandage:   "emojis/face-with-head-bandage_1f915.png",
			entity.EmojiSleepy:        "emojis/sleepy-face_1f62a.png",
		},
	}
}

// Assets are the decoded template images and fonts. They are read-only after loading.
type Assets struct {
	Template  image.Image
	Mask      image.Image // optional, nil means the whole canvas
	BoldFont  *opentype.Font
	TextFont  *opentype.Font
	CloudFont *opentype.Font
	Emojis    map[entity.Emoji]image.Image // already scaled to half size
}

// LoadAssets reads every asset under dir. A missing file fails with ErrMissingAsset.
func LoadAssets(dir string, paths AssetPaths) (*Assets, error) {
	var a Assets
	var err error

	if a.Template, err = loadImage(dir, paths.Template); err != nil {
		return nil, err
	}
	if paths.Mask != "" {
		if a.Mask, err = loadImage(dir, paths.Mask); err != nil {
			return nil, err
		}
	}
	if a.BoldFont, err = loadFont(dir, paths.BoldFont); err != nil {
		return nil, err
	}
	if a.TextFont, err = loadFont(dir, paths.TextFont); err != nil {
		return nil, err
	}
	if a.CloudFont, err = loadFont(dir, paths.CloudFont); err != nil {
		return nil, err
	}

	a.Emojis = make(map[entity.Emoji]image.Image, len(entity.AllEmojis))
	for _, e := range entity.AllEmojis {
		rel, ok := paths.Emojis[e]
		if !ok {
			return nil, fmt.Errorf("emoji %s: %w", e, entity.ErrMissingAsset)
		}
		img, err := loadImage(dir, rel)
		if err != nil {
			return nil, err
		}
		a.Emojis[e] = HalfSize(img)
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks that every required asset is present
func (a *Assets) Validate() error {
	switch {
	case a.Template == nil:
		return fmt.Errorf("template: %w", entity.ErrMissingAsset)
	case a.BoldFont == nil, a.TextFont == nil:
		return fmt.Errorf("fonts: %w", entity.ErrMissingAsset)
	case a.CloudFont == nil:
		return fmt.Errorf("word cloud font: %w", entity.ErrMissingAsset)
	}
	for _, e := range entity.AllEmojis {
		if a.Emojis[e] == nil {
			return fmt.Errorf("emoji %s: %w", e, entity.ErrMissingAsset)
		}
	}
	return nil
}

// HalfSize returns a copy of img scaled to half its width and height
func HalfSize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := max(b.Dx()/2, 1), max(b.Dy()/2, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func loadImage(dir, rel string) (image.Image, error) {
	path := filepath.Join(dir, rel)
	img, err := gg.LoadImage(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, entity.ErrMissingAsset)
		}
		return nil, fmt.Errorf("loading image %s: %w", path, err)
	}
	return img, nil
}

func loadFont(dir, rel string) (*opentype.Font, error) {
	path := filepath.Join(dir, rel)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, entity.ErrMissingAsset)
		}
		return nil, fmt.Errorf("reading font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", path, err)
	}
	return f, nil
}
