package detector

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// letterboxPad is the grey used by YOLO training pipelines for padding.
var letterboxPad = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox records how a source image was fitted into the model input so
// boxes can be mapped back to source pixels.
type letterbox struct {
	scale      float64
	padX, padY float64
	srcBounds  image.Rectangle
}

// toSource maps a point in model input pixels back to source image pixels.
func (lb letterbox) toSource(x, y float64) (float64, float64) {
	sx := (x-lb.padX)/lb.scale + float64(lb.srcBounds.Min.X)
	sy := (y-lb.padY)/lb.scale + float64(lb.srcBounds.Min.Y)
	return sx, sy
}

// prepareInput resizes img to fit width x height keeping aspect ratio, pads
// the remainder and returns the canvas. img is not modified.
func prepareInput(img image.Image, width, height int) (*image.NRGBA, letterbox) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
	newW := max(1, int(math.Round(float64(srcW)*scale)))
	newH := max(1, int(math.Round(float64(srcH)*scale)))
	padX := (width - newW) / 2
	padY := (height - newH) / 2

	canvas := imaging.New(width, height, letterboxPad)
	var resized *image.NRGBA
	if newW == srcW && newH == srcH {
		resized = imaging.Clone(img)
	} else {
		resized = imaging.Resize(img, newW, newH, imaging.Linear)
	}
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, letterbox{
		scale:     scale,
		padX:      float64(padX),
		padY:      float64(padY),
		srcBounds: b,
	}
}

// fillTensor writes the canvas into dst as NHWC float32 RGB in [0,1].
func fillTensor(dst []float32, canvas *image.NRGBA) {
	w, h := canvas.Rect.Dx(), canvas.Rect.Dy()
	i := 0
	for y := range h {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			if i+2 >= len(dst) {
				return
			}
			dst[i] = float32(row[x]) / 255
			dst[i+1] = float32(row[x+1]) / 255
			dst[i+2] = float32(row[x+2]) / 255
			i += 3
		}
	}
}
