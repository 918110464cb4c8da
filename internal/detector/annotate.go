package detector

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/tphakala/ppe-go/internal/detection"
)

var (
	colorPerson  = color.NRGBA{R: 33, G: 150, B: 243, A: 255}
	colorPresent = color.NRGBA{R: 46, G: 175, B: 80, A: 255}
	colorMissing = color.NRGBA{R: 229, G: 57, B: 53, A: 255}
	colorOther   = color.NRGBA{R: 255, G: 179, B: 0, A: 255}
	colorText    = color.White
)

var (
	labelFont     *truetype.Font
	labelFontErr  error
	labelFontOnce sync.Once
)

func loadLabelFont() (*truetype.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = truetype.Parse(goregular.TTF)
	})
	return labelFont, labelFontErr
}

// boxColor picks a colour by what the class means for compliance.
func boxColor(name string) color.Color {
	switch {
	case name == detection.ClassPerson:
		return colorPerson
	case strings.HasPrefix(name, "no-"):
		return colorMissing
	case name == detection.ClassHardhat, name == detection.ClassVest,
		name == detection.ClassGloves, name == detection.ClassShoes:
		return colorPresent
	default:
		return colorOther
	}
}

// annotate draws every detection with a "name conf" label onto a copy of img.
func annotate(img image.Image, dets []detection.Detection) image.Image {
	dc := gg.NewContextForImage(img)
	b := img.Bounds()
	shortSide := float64(min(b.Dx(), b.Dy()))
	lineWidth := math.Max(2, shortSide/320)

	var face font.Face
	if f, err := loadLabelFont(); err == nil {
		face = truetype.NewFace(f, &truetype.Options{Size: math.Max(11, shortSide/45)})
		dc.SetFontFace(face)
		defer face.Close()
	} else {
		GetLogger().Warn("label font unavailable, drawing boxes only")
	}

	// gg draws in image-relative coordinates
	offX, offY := float64(b.Min.X), float64(b.Min.Y)

	for _, d := range dets {
		c := boxColor(d.ClassName)
		x, y := d.Box.X1-offX, d.Box.Y1-offY

		dc.SetColor(c)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(x, y, d.Box.Width(), d.Box.Height())
		dc.Stroke()

		if face == nil {
			continue
		}
		label := fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
		tw, th := dc.MeasureString(label)
		pad := 3.0
		ly := y - th - 2*pad
		if ly < 0 {
			ly = y
		}
		dc.SetColor(c)
		dc.DrawRectangle(x, ly, tw+2*pad, th+2*pad)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawString(label, x+pad, ly+pad+th)
	}
	return dc.Image()
}
