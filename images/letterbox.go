// Package images - Letterbox (resize-with-pad) preprocessing.
package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// Kernel selects the interpolation used for the aspect-preserving resize.
type Kernel int

const (
	// KernelNearest uses nearest-neighbor interpolation (fastest; the
	// default for batch throughput).
	KernelNearest Kernel = iota
	// KernelBilinear uses bilinear interpolation.
	KernelBilinear
	// KernelLanczos uses Lanczos resampling with a=3 (slowest, best quality).
	KernelLanczos
)

func (k Kernel) interpolation() resize.InterpolationFunction {
	switch k {
	case KernelBilinear:
		return resize.Bilinear
	case KernelLanczos:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

// Transform records the letterbox mapping from source pixel space into model
// input space. It travels with every preprocessed frame so detections can be
// mapped back without re-deriving geometry later.
type Transform struct {
	// Scale is the uniform factor applied to both axes.
	Scale float32
	// PadX is the left padding added after scaling.
	PadX float32
	// PadY is the top padding added after scaling.
	PadY float32
}

// Apply maps a source-space point into letterboxed space.
func (t Transform) Apply(x, y float32) (float32, float32) {
	return x*t.Scale + t.PadX, y*t.Scale + t.PadY
}

// Invert maps a letterboxed-space point back into source space.
func (t Transform) Invert(x, y float32) (float32, float32) {
	return (x - t.PadX) / t.Scale, (y - t.PadY) / t.Scale
}

// InvertRect maps a letterboxed-space box back into source space.
func (t Transform) InvertRect(r Rect) Rect {
	x1, y1 := t.Invert(r.X1, r.Y1)
	x2, y2 := t.Invert(r.X2, r.Y2)
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Letterbox resizes img into a targetW x targetH canvas preserving aspect
// ratio: scale = min(targetW/srcW, targetH/srcH), centre the scaled image and
// pad the remainder with fill. The returned Transform is the exact mapping
// used, suitable for inverting detections back into source coordinates.
func Letterbox(img image.Image, targetW, targetH int, kernel Kernel, fill uint8) (*image.RGBA, Transform) {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	scale := math32.Min(
		float32(targetW)/float32(srcW),
		float32(targetH)/float32(srcH),
	)
	newW := int(float32(srcW) * scale)
	newH := int(float32(srcH) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := resize.Resize(uint(newW), uint(newH), img, kernel.interpolation())

	padX := (targetW - newW) / 2
	padY := (targetH - newH) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{color.RGBA{fill, fill, fill, 255}}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padX, padY, padX+newW, padY+newH), resized, image.Point{}, draw.Src)

	return canvas, Transform{Scale: scale, PadX: float32(padX), PadY: float32(padY)}
}

// ToTensor converts an RGBA image into a planar CHW float32 buffer scaled by
// norm (1/255 maps pixels into [0,1]). The layout matches the common deep
// learning input format [channels, height, width].
func ToTensor(img *image.RGBA, norm float32) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	channelSize := width * height
	data := make([]float32, 3*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	// Canvases produced by Letterbox are zero-origin, so Pix can be walked
	// directly by stride.
	i := 0
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			red[i] = float32(px[0]) * norm
			green[i] = float32(px[1]) * norm
			blue[i] = float32(px[2]) * norm
			i++
		}
	}
	return data
}

// ToTensorHWC converts an RGBA image into an interleaved HWC float32 buffer
// scaled by norm, for models declaring channels-last input.
func ToTensorHWC(img *image.RGBA, norm float32) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	data := make([]float32, 3*width*height)
	i := 0
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			data[i] = float32(px[0]) * norm
			data[i+1] = float32(px[1]) * norm
			data[i+2] = float32(px[2]) * norm
			i += 3
		}
	}
	return data
}
